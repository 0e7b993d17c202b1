package errorhandler

import (
	"context"
)

// ActionType identifies what the partition processor does with a failed
// record once the handler has decided.
type ActionType int

const (
	ActionTypeContinue  ActionType = iota // complete the record and move on
	ActionTypeRetry                       // run the record again on the same lane
	ActionTypeFail                        // halt the partition, record stays uncommitted
	ActionTypeSendToDLQ                   // produce to a dead-letter topic, then complete
)

func (a ActionType) String() string {
	switch a {
	case ActionTypeContinue:
		return "Continue"
	case ActionTypeRetry:
		return "Retry"
	case ActionTypeFail:
		return "Fail"
	case ActionTypeSendToDLQ:
		return "SendToDLQ"
	default:
		return "Unknown"
	}
}

var _ Action = ActionContinue{}
var _ Action = ActionRetry{}
var _ Action = ActionFail{}
var _ Action = ActionSendToDLQ{}

// Action is a handler's verdict for one failed attempt. The partition
// processor applies it on the lane that ran the attempt.
type Action interface {
	Type() ActionType
}

// ActionContinue gives up on the record and completes it, so the commit
// watermark may move past its offset.
type ActionContinue struct{}

func (a ActionContinue) Type() ActionType {
	return ActionTypeContinue
}

// ActionRetry runs the record again before anything else queued on its
// lane. Other lanes of the partition keep going.
type ActionRetry struct{}

func (a ActionRetry) Type() ActionType {
	return ActionTypeRetry
}

// ActionFail halts the partition. The record stays incomplete, so the
// watermark stops below it and it is redelivered after the next assignment.
type ActionFail struct{}

func (a ActionFail) Type() ActionType {
	return ActionTypeFail
}

// ActionSendToDLQ produces the record to a dead-letter topic and completes it
// once the send succeeds.
type ActionSendToDLQ struct {
	topic string
}

// SendToDLQ routes the record to topic with its key and value unchanged.
func SendToDLQ(topic string) ActionSendToDLQ {
	return ActionSendToDLQ{topic: topic}
}

func (a ActionSendToDLQ) Type() ActionType {
	return ActionTypeSendToDLQ
}

func (a ActionSendToDLQ) Topic() string {
	return a.topic
}

// Handler decides what happens to a record whose processing failed. It runs
// on the lane that processed the record, so blocking in Handle delays every
// later record of that lane.
type Handler interface {
	Handle(ctx context.Context, ec ErrorContext) Action
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ec ErrorContext) Action

func (f HandlerFunc) Handle(ctx context.Context, ec ErrorContext) Action {
	return f(ctx, ec)
}
