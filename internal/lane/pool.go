package lane

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hugolhafner/go-lanes/logger"
	"github.com/hugolhafner/go-lanes/task"
)

// ErrRouteOutOfRange is returned by Submit when the router picks a lane the
// pool does not have.
var ErrRouteOutOfRange = errors.New("router returned a lane outside the pool")

// Executor runs a single task. It is called from the lane goroutine and must
// return before the lane moves on to its next task.
type Executor func(t *task.Task)

// Pool is a fixed arena of lanes addressed by index. A pool is never resized;
// callers build a new one instead.
type Pool struct {
	lanes  []*lane
	router Router
	wg     sync.WaitGroup
	logger logger.Logger
}

func NewPool(size int, router Router, exec Executor, l logger.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if router == nil {
		router = HashRouter{}
	}

	p := &Pool{
		lanes:  make([]*lane, size),
		router: router,
		logger: l.With("lanes", size),
	}

	for i := range p.lanes {
		ln := &lane{
			id:     i,
			exec:   exec,
			signal: make(chan struct{}, 1),
		}
		p.lanes[i] = ln

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			ln.run()
		}()
	}

	p.logger.Debug("Lane pool started")
	return p
}

func (p *Pool) Size() int {
	return len(p.lanes)
}

// Route returns the lane a key would be submitted to.
func (p *Pool) Route(key []byte) int {
	return p.router.Route(key, len(p.lanes))
}

// Submit enqueues t on the lane owning its key and returns the lane id.
// Tasks submitted after Close or Abort are dropped and -1 is returned.
func (p *Pool) Submit(t *task.Task) (int, error) {
	id := p.Route(t.Record.Key)
	if id < 0 || id >= len(p.lanes) {
		return -1, fmt.Errorf("%w: lane %d of %d", ErrRouteOutOfRange, id, len(p.lanes))
	}

	t.Lane = id
	if !p.lanes[id].push(t) {
		return -1, nil
	}
	return id, nil
}

// Close lets every lane finish its queue and exit.
func (p *Pool) Close() {
	for _, ln := range p.lanes {
		ln.close(false)
	}
}

// Abort makes every lane exit after its current task and returns the queued
// tasks that will never run.
func (p *Pool) Abort() []*task.Task {
	var dropped []*task.Task
	for _, ln := range p.lanes {
		dropped = append(dropped, ln.close(true)...)
	}

	if len(dropped) > 0 {
		p.logger.Warn("Dropped queued tasks", "count", len(dropped))
	}
	return dropped
}

// Wait blocks until every lane goroutine exited or ctx is done. Lanes only
// exit after Close or Abort.
func (p *Pool) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("Lane pool stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepths returns the number of queued, not yet started tasks per lane.
func (p *Pool) QueueDepths() []int {
	depths := make([]int, len(p.lanes))
	for i, ln := range p.lanes {
		depths[i] = ln.depth()
	}
	return depths
}

type lane struct {
	id   int
	exec Executor

	mu     sync.Mutex
	queue  []*task.Task
	closed bool
	signal chan struct{}
}

func (l *lane) push(t *task.Task) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, t)
	l.mu.Unlock()

	l.wake()
	return true
}

func (l *lane) wake() {
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

func (l *lane) close(abort bool) []*task.Task {
	l.mu.Lock()
	l.closed = true
	var dropped []*task.Task
	if abort {
		dropped = l.queue
		l.queue = nil
	}
	l.mu.Unlock()

	l.wake()
	return dropped
}

func (l *lane) next() (*task.Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil, l.closed
	}

	t := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return t, false
}

func (l *lane) run() {
	for {
		t, closed := l.next()
		if t != nil {
			l.exec(t)
			continue
		}
		if closed {
			return
		}
		<-l.signal
	}
}

func (l *lane) depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}
