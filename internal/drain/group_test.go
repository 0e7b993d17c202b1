//go:build unit

package drain_test

import (
	"context"
	"testing"
	"time"

	"github.com/hugolhafner/go-lanes/internal/drain"
	"github.com/stretchr/testify/require"
)

func TestGroup_WaitIdleReturnsImmediately(t *testing.T) {
	t.Parallel()
	g := drain.NewGroup()
	require.NoError(t, g.Wait(context.Background()))
}

func TestGroup_WaitBlocksUntilDone(t *testing.T) {
	t.Parallel()
	g := drain.NewGroup()
	g.Add(2)

	done := make(chan error, 1)
	go func() {
		done <- g.Wait(context.Background())
	}()

	g.Done()
	select {
	case <-done:
		t.Fatal("wait returned with work in flight")
	case <-time.After(20 * time.Millisecond):
	}

	g.Done()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after drain")
	}
}

func TestGroup_WaitTimeout(t *testing.T) {
	t.Parallel()
	g := drain.NewGroup()
	g.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, g.Wait(ctx), context.DeadlineExceeded)
	require.Equal(t, 1, g.Len())
}

func TestGroup_ReusableAfterIdle(t *testing.T) {
	t.Parallel()
	g := drain.NewGroup()
	g.Add(1)
	g.Done()
	g.Add(0)
	g.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, g.Wait(ctx))

	g.Done()
	require.NoError(t, g.Wait(context.Background()))
}

func TestGroup_NegativePanics(t *testing.T) {
	t.Parallel()
	g := drain.NewGroup()
	require.Panics(t, func() { g.Done() })
}
