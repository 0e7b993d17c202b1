package task

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hugolhafner/go-lanes/kafka"
)

// DoneFunc is told how a task ended: completed, or abandoned without its
// offset becoming committable.
type DoneFunc func(t *Task, completed bool)

// Task is one admitted record on its way through a partition. It belongs to
// the partition that admitted it until it is done.
type Task struct {
	Record     kafka.ConsumerRecord
	Lane       int
	AdmittedAt time.Time

	once      sync.Once
	completed atomic.Bool
	onDone    DoneFunc

	mu         sync.Mutex
	deferred   bool
	generation uint64
}

// New creates a task for rec. onDone runs exactly once, on whichever
// goroutine finishes the task first.
func New(rec kafka.ConsumerRecord, onDone DoneFunc) *Task {
	return &Task{
		Record:     rec,
		AdmittedAt: time.Now(),
		onDone:     onDone,
	}
}

func (t *Task) TopicPartition() kafka.TopicPartition {
	return t.Record.TopicPartition()
}

func (t *Task) Offset() int64 {
	return t.Record.Offset
}

// Complete marks the task done. Calls after the first, and calls after
// Abandon, are ignored.
func (t *Task) Complete() {
	t.finish(true)
}

// Abandon ends the task without completing it.
func (t *Task) Abandon() {
	t.finish(false)
}

func (t *Task) finish(completed bool) {
	t.once.Do(
		func() {
			t.completed.Store(completed)
			if t.onDone != nil {
				t.onDone(t, completed)
			}
		},
	)
}

func (t *Task) Completed() bool {
	return t.completed.Load()
}

// Defer hands completion of the current attempt over to the caller:
// returning from processing no longer completes the task. The returned
// Deferral stays valid until ClearDeferred ends the attempt.
func (t *Task) Defer() *Deferral {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.deferred = true
	return &Deferral{task: t, generation: t.generation}
}

// ClearDeferred hands completion back to the processing loop and voids every
// Deferral handed out so far. It is called when an attempt fails.
func (t *Task) ClearDeferred() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.deferred = false
	t.generation++
}

func (t *Task) Deferred() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.deferred
}

// Deferral completes a task on behalf of one processing attempt.
type Deferral struct {
	task       *Task
	generation uint64
}

// Complete completes the task unless the attempt that deferred it has since
// failed. Safe to call more than once and from any goroutine.
func (d *Deferral) Complete() {
	t := d.task

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.generation != d.generation {
		return
	}
	t.finish(true)
}
