//go:build unit

package lane_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hugolhafner/go-lanes/internal/lane"
	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/hugolhafner/go-lanes/logger"
	"github.com/hugolhafner/go-lanes/task"
	"github.com/stretchr/testify/require"
)

func newTask(key string, offset int64) *task.Task {
	return task.New(kafka.ConsumerRecord{Key: []byte(key), Offset: offset}, nil)
}

func TestPool_PerLaneOrder(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[string][]int64)

	p := lane.NewPool(
		4, lane.NewHashRouter(), func(tk *task.Task) {
			mu.Lock()
			defer mu.Unlock()
			key := string(tk.Record.Key)
			seen[key] = append(seen[key], tk.Offset())
		}, logger.NewNoopLogger(),
	)

	for i := int64(0); i < 400; i++ {
		id, err := p.Submit(newTask(fmt.Sprintf("k%d", i%10), i))
		require.NoError(t, err)
		require.GreaterOrEqual(t, id, 0)
	}

	p.Close()
	require.NoError(t, p.Wait(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 10)
	for key, offsets := range seen {
		require.Len(t, offsets, 40, key)
		for i := 1; i < len(offsets); i++ {
			require.Less(t, offsets[i-1], offsets[i], "key %s out of order", key)
		}
	}
}

func TestPool_SubmitSetsLane(t *testing.T) {
	router := lane.RouterFunc(func(key []byte, lanes int) int { return lanes - 1 })
	p := lane.NewPool(3, router, func(*task.Task) {}, logger.NewNoopLogger())
	defer func() {
		p.Close()
		_ = p.Wait(context.Background())
	}()

	tk := newTask("a", 1)
	id, err := p.Submit(tk)
	require.NoError(t, err)
	require.Equal(t, 2, id)
	require.Equal(t, 2, tk.Lane)
	require.Equal(t, 3, p.Size())
}

func TestPool_SubmitRejectsRouteOutsidePool(t *testing.T) {
	var ran atomic.Int32
	for _, route := range []int{2, -1} {
		router := lane.RouterFunc(func([]byte, int) int { return route })
		p := lane.NewPool(2, router, func(*task.Task) { ran.Add(1) }, logger.NewNoopLogger())

		id, err := p.Submit(newTask("a", 0))
		require.ErrorIs(t, err, lane.ErrRouteOutOfRange)
		require.Equal(t, -1, id)
		require.Equal(t, []int{0, 0}, p.QueueDepths())

		p.Close()
		require.NoError(t, p.Wait(context.Background()))
	}
	require.Equal(t, int32(0), ran.Load())
}

func TestPool_OneTaskAtATimePerLane(t *testing.T) {
	var running, maxRunning atomic.Int32
	p := lane.NewPool(
		1, nil, func(*task.Task) {
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
		}, logger.NewNoopLogger(),
	)

	for i := int64(0); i < 20; i++ {
		p.Submit(newTask(fmt.Sprintf("k%d", i), i))
	}
	p.Close()
	require.NoError(t, p.Wait(context.Background()))
	require.Equal(t, int32(1), maxRunning.Load())
}

func TestPool_AbortDropsQueued(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var ran atomic.Int32

	p := lane.NewPool(
		1, nil, func(*task.Task) {
			if ran.Add(1) == 1 {
				close(started)
				<-release
			}
		}, logger.NewNoopLogger(),
	)

	for i := int64(0); i < 5; i++ {
		p.Submit(newTask("same", i))
	}
	<-started

	require.Equal(t, []int{4}, p.QueueDepths())
	dropped := p.Abort()
	require.Len(t, dropped, 4)
	require.Equal(t, int64(1), dropped[0].Offset())

	close(release)
	require.NoError(t, p.Wait(context.Background()))
	require.Equal(t, int32(1), ran.Load())
}

func TestPool_SubmitAfterCloseIsDropped(t *testing.T) {
	p := lane.NewPool(2, nil, func(*task.Task) {}, logger.NewNoopLogger())
	p.Close()
	id, err := p.Submit(newTask("a", 0))
	require.NoError(t, err)
	require.Equal(t, -1, id)
	require.NoError(t, p.Wait(context.Background()))
}

func TestPool_WaitHonoursContext(t *testing.T) {
	block := make(chan struct{})
	p := lane.NewPool(1, nil, func(*task.Task) { <-block }, logger.NewNoopLogger())
	p.Submit(newTask("a", 0))
	p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)

	close(block)
	require.NoError(t, p.Wait(context.Background()))
}
