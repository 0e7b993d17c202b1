package errorhandler

import (
	"context"
	"time"

	"github.com/hugolhafner/dskit/backoff"
	"github.com/hugolhafner/go-lanes/logger"
)

func recordFields(ec ErrorContext) []any {
	return []any{
		"error", ec.Error,
		"key", string(ec.Record.Key),
		"topic", ec.Record.Topic,
		"partition", ec.Record.Partition,
		"offset", ec.Record.Offset,
		"attempt", ec.Attempt,
		"lane", ec.Lane,
		"kind", ec.Kind.String(),
	}
}

// LogAndContinue logs error and continues processing
func LogAndContinue(logger logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			logger.Error("error processing record, skipping", recordFields(ec)...)
			return ActionContinue{}
		},
	)
}

// LogAndFail logs error and halts the partition
func LogAndFail(logger logger.Logger) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			logger.Error("error processing record, failing", recordFields(ec)...)
			return ActionFail{}
		},
	)
}

func SilentContinue() Handler {
	return HandlerFunc(
		func(context.Context, ErrorContext) Action {
			return ActionContinue{}
		},
	)
}

func SilentFail() Handler {
	return HandlerFunc(
		func(context.Context, ErrorContext) Action {
			return ActionFail{}
		},
	)
}

// WithMaxAttempts retries a record until maxAttempts attempts were made, then
// defers to fallback. The backoff wait happens on the record's lane and is cut
// short with ActionFail when ctx is done.
func WithMaxAttempts(maxAttempts int, b backoff.Backoff, fallback Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			if ec.Attempt >= maxAttempts {
				return fallback.Handle(ctx, ec)
			}

			select {
			case <-ctx.Done():
				return ActionFail{}
			case <-time.After(b.Next(uint(ec.Attempt))):
			}

			return ActionRetry{}
		},
	)
}

// WithDLQ returns SendToDLQ action when inner would Continue
// Useful for: WithMaxAttempts(3, backoff, WithDLQ(topic, nil))
func WithDLQ(topic string, inner Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			var action Action = ActionContinue{}
			if inner != nil {
				action = inner.Handle(ctx, ec)
			}

			if action.Type() == ActionTypeContinue {
				return SendToDLQ(topic)
			}

			return action
		},
	)
}

// ActionLogger logs the action decided by the next handler
func ActionLogger(l logger.Logger, level logger.LogLevel, next Handler) Handler {
	return HandlerFunc(
		func(ctx context.Context, ec ErrorContext) Action {
			action := next.Handle(ctx, ec)

			l.Log(level, "Error handler decision", append([]any{"action", action.Type().String()}, recordFields(ec)...)...)
			return action
		},
	)
}
