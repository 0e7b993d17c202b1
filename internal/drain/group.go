// Package drain provides the wait-for-idle primitive shared by pool resizes
// and partition shutdown.
package drain

import (
	"context"
	"sync"
)

// Group counts in-flight work. Unlike sync.WaitGroup, Wait takes a context so
// callers can bound how long they are willing to wait, and Add may be called
// again after the group went idle.
type Group struct {
	mu   sync.Mutex
	n    int
	idle chan struct{}
}

func NewGroup() *Group {
	idle := make(chan struct{})
	close(idle)
	return &Group{idle: idle}
}

func (g *Group) Add(delta int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.n
	g.n += delta
	if g.n < 0 {
		panic("drain: negative counter")
	}

	switch {
	case prev == 0 && g.n > 0:
		g.idle = make(chan struct{})
	case prev > 0 && g.n == 0:
		close(g.idle)
	}
}

func (g *Group) Done() {
	g.Add(-1)
}

func (g *Group) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// Wait blocks until the counter reaches zero or ctx is done.
func (g *Group) Wait(ctx context.Context) error {
	g.mu.Lock()
	idle := g.idle
	g.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
