package runner

import (
	"context"
	"sync"

	"github.com/hugolhafner/go-lanes/property"
	"golang.org/x/time/rate"
)

// throttle applies the per-partition processing rate before each task runs.
// A rate of property.RatePaused holds every lane until the rate changes;
// property.RateUnlimited (or any negative value) disables the limit.
type throttle struct {
	mu      sync.Mutex
	perSec  int64
	limiter *rate.Limiter
	changed chan struct{}
}

func newThrottle(perSec int64) *throttle {
	t := &throttle{changed: make(chan struct{})}
	t.set(perSec)
	return t
}

func (t *throttle) Set(perSec int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if perSec == t.perSec {
		return
	}
	t.set(perSec)

	close(t.changed)
	t.changed = make(chan struct{})
}

func (t *throttle) set(perSec int64) {
	t.perSec = perSec
	switch {
	case perSec > 0:
		// burst is one second of tokens. The limiter is replaced rather than
		// retuned so a new rate starts with a full bucket.
		t.limiter = rate.NewLimiter(rate.Limit(perSec), int(perSec))
	default:
		t.limiter = nil
	}
}

func (t *throttle) Rate() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.perSec
}

// Wait blocks until the task may run or ctx is done.
func (t *throttle) Wait(ctx context.Context) error {
	for {
		t.mu.Lock()
		perSec, limiter, changed := t.perSec, t.limiter, t.changed
		t.mu.Unlock()

		if perSec == property.RatePaused {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-changed:
				continue
			}
		}

		if limiter == nil {
			return nil
		}
		return limiter.Wait(ctx)
	}
}
