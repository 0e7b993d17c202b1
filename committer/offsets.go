package committer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/hugolhafner/go-lanes/logger"
	"github.com/sony/gobreaker"
)

var ErrCommitsSuspended = errors.New("offset commits suspended after repeated failures")

// Transport is the part of the consumer that stores committed offsets.
type Transport interface {
	CommitOffsets(ctx context.Context, offsets map[kafka.TopicPartition]kafka.Offset) error
}

type OffsetCommitterConfig struct {
	// FailureThreshold consecutive failures open the breaker
	FailureThreshold uint32
	// BreakerTimeout is how long the breaker stays open before a trial
	BreakerTimeout time.Duration
	Logger         logger.Logger
}

type OffsetCommitterOption func(*OffsetCommitterConfig)

func WithFailureThreshold(n uint32) OffsetCommitterOption {
	return func(cfg *OffsetCommitterConfig) {
		if n > 0 {
			cfg.FailureThreshold = n
		}
	}
}

func WithBreakerTimeout(d time.Duration) OffsetCommitterOption {
	return func(cfg *OffsetCommitterConfig) {
		if d > 0 {
			cfg.BreakerTimeout = d
		}
	}
}

func WithLogger(l logger.Logger) OffsetCommitterOption {
	return func(cfg *OffsetCommitterConfig) {
		cfg.Logger = l
	}
}

// OffsetCommitter turns watermarks into transport commits. Partitions whose
// watermark has not moved since their last successful commit are skipped.
// The committed value is the watermark plus one, the next offset to consume.
type OffsetCommitter struct {
	transport Transport
	breaker   *gobreaker.CircuitBreaker
	logger    logger.Logger

	mu        sync.Mutex
	committed map[kafka.TopicPartition]int64
}

func NewOffsetCommitter(transport Transport, opts ...OffsetCommitterOption) *OffsetCommitter {
	cfg := OffsetCommitterConfig{
		FailureThreshold: 5,
		BreakerTimeout:   10 * time.Second,
		Logger:           logger.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	l := cfg.Logger.With("component", "offset-committer")
	c := &OffsetCommitter{
		transport: transport,
		logger:    l,
		committed: make(map[kafka.TopicPartition]int64),
	}

	c.breaker = gobreaker.NewCircuitBreaker(
		gobreaker.Settings{
			Name:        "offset-commit",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.FailureThreshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				l.Warn("Commit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
			},
		},
	)

	return c
}

// Commit commits every watermark in marks that moved since its last
// successful commit and returns the offsets it sent. On failure nothing is
// recorded as committed so the same watermarks are retried next time.
func (c *OffsetCommitter) Commit(ctx context.Context, marks map[kafka.TopicPartition]int64) (
	map[kafka.TopicPartition]kafka.Offset, error,
) {
	offsets := c.changed(marks)
	if len(offsets) == 0 {
		return nil, nil
	}

	_, err := c.breaker.Execute(
		func() (interface{}, error) {
			return nil, c.transport.CommitOffsets(ctx, offsets)
		},
	)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("commit %d partitions: %w", len(offsets), ErrCommitsSuspended)
		}
		return nil, fmt.Errorf("commit %d partitions: %w", len(offsets), err)
	}

	c.mu.Lock()
	for tp, o := range offsets {
		c.committed[tp] = o.Offset - 1
	}
	c.mu.Unlock()

	c.logger.Debug("Committed offsets", "partitions", len(offsets))
	return offsets, nil
}

func (c *OffsetCommitter) changed(marks map[kafka.TopicPartition]int64) map[kafka.TopicPartition]kafka.Offset {
	c.mu.Lock()
	defer c.mu.Unlock()

	offsets := make(map[kafka.TopicPartition]kafka.Offset, len(marks))
	for tp, mark := range marks {
		if last, ok := c.committed[tp]; ok && last >= mark {
			continue
		}
		offsets[tp] = kafka.Offset{Offset: mark + 1, LeaderEpoch: -1}
	}
	return offsets
}

// Committed returns the last watermark successfully committed for tp.
func (c *OffsetCommitter) Committed(tp kafka.TopicPartition) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	mark, ok := c.committed[tp]
	return mark, ok
}

// Forget drops the bookkeeping of partitions no longer owned.
func (c *OffsetCommitter) Forget(tps ...kafka.TopicPartition) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, tp := range tps {
		delete(c.committed, tp)
	}
}

func (c *OffsetCommitter) BreakerState() gobreaker.State {
	return c.breaker.State()
}
