//go:build unit

package task_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hugolhafner/go-lanes/kafka"
	"github.com/hugolhafner/go-lanes/task"
	"github.com/stretchr/testify/require"
)

func TestTask_CompleteRunsOnce(t *testing.T) {
	var calls atomic.Int32
	tk := task.New(
		kafka.ConsumerRecord{Topic: "input", Partition: 2, Offset: 7}, func(done *task.Task, completed bool) {
			calls.Add(1)
			require.True(t, completed)
			require.Equal(t, int64(7), done.Offset())
		},
	)

	require.False(t, tk.Completed())
	require.Equal(t, kafka.TopicPartition{Topic: "input", Partition: 2}, tk.TopicPartition())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk.Complete()
		}()
	}
	wg.Wait()

	require.True(t, tk.Completed())
	require.Equal(t, int32(1), calls.Load())
}

func TestTask_AbandonWinsOverLaterComplete(t *testing.T) {
	var outcomes []bool
	tk := task.New(
		kafka.ConsumerRecord{}, func(_ *task.Task, completed bool) {
			outcomes = append(outcomes, completed)
		},
	)

	tk.Abandon()
	tk.Complete()

	require.Equal(t, []bool{false}, outcomes)
	require.False(t, tk.Completed())
}

func TestTask_Defer(t *testing.T) {
	tk := task.New(kafka.ConsumerRecord{}, nil)
	require.False(t, tk.Deferred())
	tk.Defer()
	require.True(t, tk.Deferred())
	tk.ClearDeferred()
	require.False(t, tk.Deferred())

	tk.Complete()
	require.True(t, tk.Completed())
}

func TestTask_ClearDeferredVoidsEarlierDeferrals(t *testing.T) {
	var outcomes []bool
	tk := task.New(
		kafka.ConsumerRecord{Offset: 3}, func(_ *task.Task, completed bool) {
			outcomes = append(outcomes, completed)
		},
	)

	first := tk.Defer()
	tk.ClearDeferred()

	first.Complete()
	require.False(t, tk.Completed())
	require.Empty(t, outcomes)

	second := tk.Defer()
	first.Complete()
	require.False(t, tk.Completed())

	second.Complete()
	second.Complete()
	require.True(t, tk.Completed())
	require.Equal(t, []bool{true}, outcomes)
}
