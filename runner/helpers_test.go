//go:build unit

package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/hugolhafner/go-lanes/logger"
	"github.com/hugolhafner/go-lanes/processor"
	"github.com/hugolhafner/go-lanes/property"
	"github.com/stretchr/testify/require"
)

var (
	tp0 = kafka.TopicPartition{Topic: "input", Partition: 0}
	tp1 = kafka.TopicPartition{Topic: "input", Partition: 1}
	tp2 = kafka.TopicPartition{Topic: "input", Partition: 2}
)

type seenRecord struct {
	Key    string
	Value  string
	Offset int64
}

// recorder is a processor that remembers every record it completed.
type recorder struct {
	mu   sync.Mutex
	seen []seenRecord
	fn   func(ctx context.Context, pc processor.Context, payload []byte) error
}

func newRecorder(fn func(ctx context.Context, pc processor.Context, payload []byte) error) *recorder {
	return &recorder{fn: fn}
}

func (r *recorder) Process(ctx context.Context, pc processor.Context, payload []byte) error {
	if r.fn != nil {
		if err := r.fn(ctx, pc, payload); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.seen = append(r.seen, seenRecord{Key: string(pc.Key()), Value: string(payload), Offset: pc.Offset()})
	r.mu.Unlock()
	return nil
}

func (r *recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

func (r *recorder) Seen() []seenRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]seenRecord, len(r.seen))
	copy(out, r.seen)
	return out
}

func (r *recorder) Keys() []string {
	seen := r.Seen()
	keys := make([]string, len(seen))
	for i, s := range seen {
		keys[i] = s.Key
	}
	return keys
}

func newTestProperties(t *testing.T, concurrency, maxPending int) *property.Processing {
	t.Helper()

	props := property.NewProcessing(logger.NewNoopLogger())
	require.NoError(t, props.Concurrency.Set(concurrency))
	require.NoError(t, props.MaxPending.Set(maxPending))
	return props
}

func testOptions(props *property.Processing, extra ...Option) []Option {
	opts := []Option{
		WithLogger(logger.NewNoopLogger()),
		WithProperties(props),
		WithCommitInterval(20 * time.Millisecond),
		WithShutdownTimeout(2 * time.Second),
		WithResizeTimeout(2 * time.Second),
	}
	return append(opts, extra...)
}

// runSubscription runs s in the background and returns a function that
// cancels it and returns the error Run returned.
func runSubscription(t *testing.T, s *Subscription) func() error {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx)
	}()

	var once sync.Once
	var runErr error
	stop := func() error {
		once.Do(
			func() {
				cancel()
				select {
				case runErr = <-errCh:
				case <-time.After(10 * time.Second):
					t.Fatal("timeout waiting for subscription to stop")
				}
			},
		)
		return runErr
	}
	t.Cleanup(func() { _ = stop() })

	return stop
}

func eventuallyCommitted(t *testing.T, c interface {
	CommittedOffset(kafka.TopicPartition) (kafka.Offset, bool)
}, tp kafka.TopicPartition, offset int64) {
	t.Helper()

	require.Eventually(
		t, func() bool {
			o, ok := c.CommittedOffset(tp)
			return ok && o.Offset == offset
		}, 5*time.Second, 10*time.Millisecond, "expected offset %d committed for %s", offset, tp,
	)
}
