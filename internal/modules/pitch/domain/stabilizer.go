package domain

import (
	"math"
	"sort"
)

const (
	DefaultStabilizerWindow   = 5
	DefaultStabilizerMaxShift = 0.1
)

// FrequencyStabilizer clamps each value to within maxShift of the median of the
// last window values, the current one included.
type FrequencyStabilizer struct {
	window   int
	maxShift float64
	history  []float64
}

func NewFrequencyStabilizer(window int, maxShift float64) *FrequencyStabilizer {
	if window < 1 {
		window = DefaultStabilizerWindow
	}
	if maxShift <= 0 {
		maxShift = DefaultStabilizerMaxShift
	}
	return &FrequencyStabilizer{window: window, maxShift: maxShift, history: make([]float64, 0, window)}
}

func (s *FrequencyStabilizer) Stabilize(hz float64) float64 {
	if len(s.history) == s.window {
		copy(s.history, s.history[1:])
		s.history = s.history[:len(s.history)-1]
	}
	s.history = append(s.history, hz)
	if len(s.history) < 2 {
		return hz
	}
	median := s.Median()
	limit := s.maxShift * median
	diff := hz - median
	if math.Abs(diff) <= limit {
		return hz
	}
	if diff > 0 {
		return median + limit
	}
	return median - limit
}

func (s *FrequencyStabilizer) Median() float64 {
	return Median(s.history)
}

func (s *FrequencyStabilizer) Len() int {
	return len(s.history)
}

func (s *FrequencyStabilizer) Full() bool {
	return len(s.history) == s.window
}

func (s *FrequencyStabilizer) Reset() {
	s.history = s.history[:0]
}

func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
