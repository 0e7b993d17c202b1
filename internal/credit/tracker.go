// Package credit bounds how many records a partition may hold between
// admission and completion.
package credit

import (
	"context"
	"sync"
)

// Tracker is a credit window of capacity slots. Admission takes a slot and
// completion returns it. Shrinking the capacity never revokes slots already
// handed out; the window stays over-subscribed until completions bring it
// back under the new bound.
type Tracker struct {
	mu          sync.Mutex
	capacity    int
	outstanding int
	paused      bool

	resume chan struct{}
}

func NewTracker(capacity int) *Tracker {
	return &Tracker{
		capacity: capacity,
		resume:   make(chan struct{}, 1),
	}
}

// TryAdmit takes a slot if one is free. A refusal marks the window paused so
// that the release which frees a slot signals Resumed.
func (t *Tracker) TryAdmit() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outstanding < t.capacity {
		t.outstanding++
		return true
	}

	t.paused = true
	return false
}

// Release returns a slot. Releasing with nothing outstanding is a no-op.
func (t *Tracker) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.outstanding == 0 {
		return
	}
	t.outstanding--
	t.signalLocked()
}

// Resize changes the capacity. Outstanding slots are left alone.
func (t *Tracker) Resize(capacity int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.capacity = capacity
	t.signalLocked()
}

func (t *Tracker) signalLocked() {
	if !t.paused || t.outstanding >= t.capacity {
		return
	}

	t.paused = false
	select {
	case t.resume <- struct{}{}:
	default:
	}
}

// Resumed delivers a value each time a paused window regains a free slot.
func (t *Tracker) Resumed() <-chan struct{} {
	return t.resume
}

// Acquire blocks until a slot is admitted or ctx is done.
func (t *Tracker) Acquire(ctx context.Context) error {
	for {
		if t.TryAdmit() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.resume:
		}
	}
}

func (t *Tracker) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outstanding
}

func (t *Tracker) Capacity() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.capacity
}

// Paused reports whether the last admission attempt was refused and no slot
// has been freed since.
func (t *Tracker) Paused() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paused
}
