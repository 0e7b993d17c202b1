//go:build unit

package property_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/hugolhafner/go-lanes/logger"
	mocklogger "github.com/hugolhafner/go-lanes/logger/mock"
	"github.com/hugolhafner/go-lanes/property"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDynamicProperty_SetNotifiesInRegistrationOrder(t *testing.T) {
	t.Parallel()
	p := property.New("concurrency", 1)

	var calls []string
	p.Listen(
		func(o, n int) error {
			calls = append(calls, "first")
			require.Equal(t, 1, o)
			require.Equal(t, 3, n)
			return nil
		},
	)
	p.Listen(
		func(o, n int) error {
			calls = append(calls, "second")
			return nil
		},
	)

	require.NoError(t, p.Set(3))
	require.Equal(t, 3, p.Get())
	require.Equal(t, []string{"first", "second"}, calls)
}

func TestDynamicProperty_FailingListenerIsIsolated(t *testing.T) {
	t.Parallel()
	l := mocklogger.New()
	p := property.New("concurrency", 1, property.WithLogger[int](l))

	var reached []int
	p.Listen(func(_, _ int) error { return errors.New("listener broke") })
	p.Listen(func(_, _ int) error { panic("listener exploded") })
	p.Listen(
		func(_, n int) error {
			reached = append(reached, n)
			return nil
		},
	)

	require.NoError(t, p.Set(2))
	require.Equal(t, 2, p.Get())
	require.Equal(t, []int{2}, reached)
	l.AssertCalledWithLevelAndMessage(t, logger.ErrorLevel, "Property listener failed")
}

func TestDynamicProperty_SameValueStillNotifies(t *testing.T) {
	t.Parallel()
	p := property.New("records", 10)

	notified := 0
	p.Listen(
		func(o, n int) error {
			notified++
			require.Equal(t, o, n)
			return nil
		},
	)

	require.NoError(t, p.Set(10))
	require.Equal(t, 1, notified)
}

func TestDynamicProperty_RejectsInvalidValue(t *testing.T) {
	t.Parallel()
	l := mocklogger.New()
	p := property.New(
		property.MaxPendingRecords, 10,
		property.WithValidator(property.Positive[int]()), property.WithLogger[int](l),
	)

	notified := false
	p.Listen(
		func(_, _ int) error {
			notified = true
			return nil
		},
	)

	err := p.Set(0)
	require.ErrorIs(t, err, property.ErrInvalidValue)

	var verr *property.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, property.MaxPendingRecords, verr.Property)

	require.Equal(t, 10, p.Get())
	require.False(t, notified)
	l.AssertCalledWithLevelAndMessage(t, logger.WarnLevel, "Rejected property value, keeping previous")

	require.ErrorIs(t, p.Set(-4), property.ErrInvalidValue)
	require.Equal(t, 10, p.Get())
}

func TestDynamicProperty_ListenCancel(t *testing.T) {
	t.Parallel()
	p := property.New("x", 0)

	count := 0
	cancel := p.Listen(
		func(_, _ int) error {
			count++
			return nil
		},
	)

	require.NoError(t, p.Set(1))
	cancel()
	require.NoError(t, p.Set(2))
	require.Equal(t, 1, count)
}

func TestDynamicProperty_ConcurrentGetSet(t *testing.T) {
	t.Parallel()
	p := property.New("x", 1, property.WithValidator(property.Positive[int]()))

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = p.Set(v)
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				assert.Positive(t, p.Get())
			}
		}()
	}
	wg.Wait()
}

func TestDynamicProperty_SetValueCoerces(t *testing.T) {
	t.Parallel()
	procs := property.NewProcessing(nil)

	require.NoError(t, procs.Concurrency.SetValue(float64(4)))
	require.Equal(t, 4, procs.Concurrency.Get())

	require.NoError(t, procs.ProcessingRate.SetValue(100))
	require.Equal(t, int64(100), procs.ProcessingRate.Get())

	require.NoError(t, procs.IgnoreKeys.SetValue([]any{"a", "b"}))
	require.Equal(t, []string{"a", "b"}, procs.IgnoreKeys.Get())

	require.ErrorIs(t, procs.Concurrency.SetValue(2.5), property.ErrInvalidValue)
	require.ErrorIs(t, procs.Concurrency.SetValue("three"), property.ErrInvalidValue)
	require.Equal(t, 4, procs.Concurrency.Get())

	require.ErrorIs(t, procs.ProcessingRate.SetValue(-2), property.ErrInvalidValue)
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	procs := property.NewProcessing(nil)
	reg := procs.Registry()

	require.Equal(
		t, []string{
			property.IgnoreKeys, property.MaxPendingRecords, property.PartitionConcurrency, property.ProcessingRate,
		}, reg.Names(),
	)

	var seen int
	cancel, err := property.Subscribe(
		reg, property.PartitionConcurrency, func(_, n int) error {
			seen = n
			return nil
		},
	)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, reg.SetValue(property.PartitionConcurrency, 5))
	require.Equal(t, 5, seen)

	_, err = property.Subscribe(reg, property.PartitionConcurrency, func(_, _ string) error { return nil })
	require.ErrorIs(t, err, property.ErrTypeMismatch)

	_, err = property.Subscribe(reg, "missing", func(_, _ int) error { return nil })
	require.ErrorIs(t, err, property.ErrUnknownProperty)

	require.ErrorIs(t, reg.SetValue("missing", 1), property.ErrUnknownProperty)
	require.ErrorIs(t, reg.Register(procs.Concurrency), property.ErrDuplicateProperty)
}
