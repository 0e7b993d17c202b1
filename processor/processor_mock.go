package processor

import (
	"time"

	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/stretchr/testify/mock"
)

var _ Context = (*MockContext)(nil)

type MockContext struct {
	mock.Mock
}

func NewMockContext() *MockContext {
	return &MockContext{}
}

func (c *MockContext) Key() []byte {
	args := c.Called()
	b, _ := args.Get(0).([]byte)
	return b
}

func (c *MockContext) Topic() string {
	return c.Called().String(0)
}

func (c *MockContext) Partition() int32 {
	return c.Called().Get(0).(int32)
}

func (c *MockContext) Offset() int64 {
	return c.Called().Get(0).(int64)
}

func (c *MockContext) Headers() []kafka.Header {
	h, _ := c.Called().Get(0).([]kafka.Header)
	return h
}

func (c *MockContext) Timestamp() time.Time {
	return c.Called().Get(0).(time.Time)
}

func (c *MockContext) Attempt() int {
	return c.Called().Int(0)
}

func (c *MockContext) Deferred() Completion {
	comp, _ := c.Called().Get(0).(Completion)
	return comp
}
