package random

import (
	"math/rand/v2"
	"sync"
)

// Source picks uniformly distributed indexes so selection stays testable.
type Source interface {
	IntN(n int) int
}

type Locked struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewLocked(seed uint64) *Locked {
	return &Locked{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.IntN(n)
}
