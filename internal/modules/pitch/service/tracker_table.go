package service

import (
	"fmt"
	"sync"

	apperrors "reltone/internal/platform/errors"
)

// TrackerID addresses a slot in a TrackerTable. Zero is never issued.
type TrackerID uint32

type trackerSlot struct {
	tracker *Tracker
	payload any
	gen     uint32
	used    bool
}

// TrackerTable is an arena of trackers addressed by typed ids. Removed slots are
// reused; the id carries a generation so a stale id cannot reach a new tracker.
type TrackerTable struct {
	mu    sync.Mutex
	slots []trackerSlot
	free  []int
	count int
}

func NewTrackerTable() *TrackerTable {
	return &TrackerTable{}
}

func (t *TrackerTable) Create(tracker *Tracker, payload any) TrackerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var idx int
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, trackerSlot{})
		idx = len(t.slots) - 1
	}
	slot := &t.slots[idx]
	slot.gen++
	slot.tracker = tracker
	slot.payload = payload
	slot.used = true
	t.count++
	return makeID(idx, slot.gen)
}

func (t *TrackerTable) Get(id TrackerID) (*Tracker, any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot, err := t.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	return slot.tracker, slot.payload, nil
}

// Remove frees the slot and returns its payload so the caller can release it.
func (t *TrackerTable) Remove(id TrackerID) (any, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	slot, err := t.lookup(id)
	if err != nil {
		return nil, err
	}
	payload := slot.payload
	slot.tracker = nil
	slot.payload = nil
	slot.used = false
	t.free = append(t.free, int(id&0xffff)-1)
	t.count--
	return payload, nil
}

func (t *TrackerTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *TrackerTable) lookup(id TrackerID) (*trackerSlot, error) {
	idx := int(id&0xffff) - 1
	gen := uint32(id >> 16)
	if idx < 0 || idx >= len(t.slots) {
		return nil, fmt.Errorf("%w: tracker %d", apperrors.ErrNotFound, id)
	}
	slot := &t.slots[idx]
	if !slot.used || slot.gen&0xffff != gen {
		return nil, fmt.Errorf("%w: tracker %d", apperrors.ErrNotFound, id)
	}
	return slot, nil
}

func makeID(idx int, gen uint32) TrackerID {
	return TrackerID((gen&0xffff)<<16 | uint32(idx+1)&0xffff)
}
