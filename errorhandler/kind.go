package errorhandler

import (
	"context"
	"errors"

	"github.com/hugolhafner/go-lanes/serde"
	"github.com/hugolhafner/go-lanes/task"
)

// ErrorKind tells what part of processing a record failed
type ErrorKind int

const (
	KindUnknown    ErrorKind = iota
	KindDecode               // payload could not be deserialised
	KindProcessing           // user logic returned an error
	KindPanic                // user logic panicked
)

func (k ErrorKind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindProcessing:
		return "processing"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	if _, ok := task.AsPanicError(err); ok {
		return KindPanic
	}

	var serr *serde.Error
	if errors.As(err, &serr) {
		return KindDecode
	}

	return KindProcessing
}

var _ Handler = (*KindRouter)(nil)

// KindRouter dispatches to a handler per error kind, falling back to the
// default handler for kinds without one.
type KindRouter struct {
	handler  Handler
	handlers map[ErrorKind]Handler
}

// NewKindRouter builds a router. Nil kind handlers fall back to handler, a
// nil handler to SilentContinue.
func NewKindRouter(handler Handler, decode Handler, processing Handler, panics Handler) *KindRouter {
	if handler == nil {
		handler = SilentContinue()
	}

	r := &KindRouter{
		handler:  handler,
		handlers: make(map[ErrorKind]Handler, 3),
	}
	for kind, h := range map[ErrorKind]Handler{KindDecode: decode, KindProcessing: processing, KindPanic: panics} {
		if h != nil {
			r.handlers[kind] = h
		}
	}

	return r
}

func (r *KindRouter) Handle(ctx context.Context, ec ErrorContext) Action {
	if h, ok := r.handlers[ec.Kind]; ok {
		return h.Handle(ctx, ec)
	}
	return r.handler.Handle(ctx, ec)
}
