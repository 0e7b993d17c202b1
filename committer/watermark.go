package committer

import (
	"sync"
)

// Watermark tracks the highest offset O of one partition such that every
// offset admitted up to and including O has completed. Only admitted
// offsets count, so gaps left by compaction or transaction markers never
// hold the watermark back.
type Watermark struct {
	mu sync.Mutex

	// admitted holds tracked offsets above the watermark in ascending order
	admitted []int64
	done     map[int64]bool

	mark    int64
	hasMark bool

	last    int64
	tracked bool
	closed  bool
}

func NewWatermark() *Watermark {
	return &Watermark{
		done: make(map[int64]bool),
	}
}

// Track records that offset was admitted. Offsets must be tracked in
// increasing order; anything else is ignored and false is returned.
func (w *Watermark) Track(offset int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || (w.tracked && offset <= w.last) {
		return false
	}

	w.last = offset
	w.tracked = true
	w.admitted = append(w.admitted, offset)
	w.done[offset] = false
	return true
}

// Complete marks a tracked offset as done and advances the watermark as far
// as contiguity allows. It returns false for offsets that were never tracked,
// were already completed, or arrive after Close.
func (w *Watermark) Complete(offset int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}

	completed, ok := w.done[offset]
	if !ok || completed {
		return false
	}
	w.done[offset] = true

	n := 0
	for n < len(w.admitted) && w.done[w.admitted[n]] {
		w.mark = w.admitted[n]
		w.hasMark = true
		delete(w.done, w.admitted[n])
		n++
	}
	if n > 0 {
		w.admitted = append(w.admitted[:0], w.admitted[n:]...)
	}

	return true
}

// Watermark returns the highest contiguously completed offset. ok is false
// until the first tracked offset completes.
func (w *Watermark) Watermark() (offset int64, ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mark, w.hasMark
}

// Pending returns how many tracked offsets sit above the watermark, completed
// or not.
func (w *Watermark) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.admitted)
}

// Close freezes the watermark. Completions of abandoned tasks that arrive
// later are ignored.
func (w *Watermark) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
}
