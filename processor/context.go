package processor

import (
	"time"

	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/hugolhafner/go-lanes/task"
)

// Completion finishes a deferred record. Complete is safe to call more than
// once and from any goroutine.
type Completion interface {
	Complete()
}

// Context exposes the record being processed to a Processor.
type Context interface {
	Key() []byte
	Topic() string
	Partition() int32
	Offset() int64
	Headers() []kafka.Header
	Timestamp() time.Time

	// Attempt is 1 on the first run and grows with every retry
	Attempt() int

	// Deferred takes over completion of the record. After it is called,
	// returning nil from Process no longer completes the record and the
	// returned Completion must be used instead. The lane moves on to its
	// next record immediately; drains still wait for the completion. If
	// Process returns an error anyway, the Completion is void and the record
	// goes to the error handler.
	Deferred() Completion
}

var _ Context = (*taskContext)(nil)

type taskContext struct {
	task    *task.Task
	attempt int
}

// NewContext builds the Context handed to a Processor for one attempt at t.
func NewContext(t *task.Task, attempt int) Context {
	return &taskContext{task: t, attempt: attempt}
}

func (c *taskContext) Key() []byte {
	return c.task.Record.Key
}

func (c *taskContext) Topic() string {
	return c.task.Record.Topic
}

func (c *taskContext) Partition() int32 {
	return c.task.Record.Partition
}

func (c *taskContext) Offset() int64 {
	return c.task.Record.Offset
}

func (c *taskContext) Headers() []kafka.Header {
	return c.task.Record.Headers
}

func (c *taskContext) Timestamp() time.Time {
	return c.task.Record.Timestamp
}

func (c *taskContext) Attempt() int {
	return c.attempt
}

func (c *taskContext) Deferred() Completion {
	return c.task.Defer()
}
