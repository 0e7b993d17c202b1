package committer

import (
	"sync"
	"sync/atomic"
	"time"
)

var _ Trigger = (*PeriodicCommitter)(nil)

type PeriodicCommitterConfig struct {
	MaxInterval time.Duration
	MaxCount    int
}

type PeriodicCommitterOption func(*PeriodicCommitterConfig)

func WithMaxInterval(d time.Duration) PeriodicCommitterOption {
	return func(cfg *PeriodicCommitterConfig) {
		cfg.MaxInterval = d
	}
}

func WithMaxCount(c int) PeriodicCommitterOption {
	return func(cfg *PeriodicCommitterConfig) {
		cfg.MaxCount = c
	}
}

// PeriodicCommitter is due once MaxInterval elapsed or MaxCount records
// completed since the last successful commit. A non-positive MaxCount
// disables the count trigger.
type PeriodicCommitter struct {
	cfg        PeriodicCommitterConfig
	count      atomic.Int64
	lastCommit time.Time
	now        func() time.Time

	mu sync.Mutex
}

func NewPeriodicCommitter(opts ...PeriodicCommitterOption) *PeriodicCommitter {
	cfg := PeriodicCommitterConfig{
		MaxInterval: 5 * time.Second,
		MaxCount:    1000,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	return &PeriodicCommitter{
		cfg:        cfg,
		lastCommit: time.Now(),
		now:        time.Now,
	}
}

// RecordProcessed counts completions. It never blocks on a commit in
// progress.
func (p *PeriodicCommitter) RecordProcessed(count int) {
	p.count.Add(int64(count))
}

func (p *PeriodicCommitter) due() bool {
	if p.cfg.MaxCount > 0 && p.count.Load() >= int64(p.cfg.MaxCount) {
		return true
	}
	return p.now().Sub(p.lastCommit) >= p.cfg.MaxInterval
}

func (p *PeriodicCommitter) TryCommit() bool {
	p.mu.Lock()
	if !p.due() {
		p.mu.Unlock()
		return false
	}

	return true
}

func (p *PeriodicCommitter) UnlockCommit(ok bool) {
	defer p.mu.Unlock()

	if ok {
		p.count.Store(0)
		p.lastCommit = p.now()
	}
}
