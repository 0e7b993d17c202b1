package processor

import (
	"context"
	"fmt"

	"github.com/hugolhafner/go-lanes/serde"
)

// Processor is the user logic run for every record. Returning nil completes
// the record unless Context.Deferred was called. A returned error is handed
// to the configured error handler.
type Processor interface {
	Process(ctx context.Context, pc Context, payload []byte) error
}

// Func adapts a function to Processor
type Func func(ctx context.Context, pc Context, payload []byte) error

func (f Func) Process(ctx context.Context, pc Context, payload []byte) error {
	return f(ctx, pc, payload)
}

// Typed decodes every payload with d before calling fn. Decoding failures
// are returned like any other processing error.
func Typed[T any](d serde.Deserialiser[T], fn func(ctx context.Context, pc Context, value T) error) Processor {
	return Func(
		func(ctx context.Context, pc Context, payload []byte) error {
			v, err := d.Deserialise(pc.Topic(), payload)
			if err != nil {
				return fmt.Errorf("offset %d: %w", pc.Offset(), err)
			}
			return fn(ctx, pc, v)
		},
	)
}
