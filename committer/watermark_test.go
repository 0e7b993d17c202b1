//go:build unit

package committer_test

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/hugolhafner/go-lanes/committer"
	"github.com/stretchr/testify/require"
)

func requireMark(t *testing.T, w *committer.Watermark, expected int64) {
	t.Helper()
	mark, ok := w.Watermark()
	require.True(t, ok)
	require.Equal(t, expected, mark)
}

func TestWatermark_Empty(t *testing.T) {
	w := committer.NewWatermark()
	_, ok := w.Watermark()
	require.False(t, ok)
	require.Equal(t, 0, w.Pending())
}

func TestWatermark_WaitsForLowestOutstanding(t *testing.T) {
	w := committer.NewWatermark()
	for o := int64(5); o <= 7; o++ {
		require.True(t, w.Track(o))
	}

	require.True(t, w.Complete(6))
	require.True(t, w.Complete(7))
	_, ok := w.Watermark()
	require.False(t, ok, "offset 5 still outstanding")

	require.True(t, w.Complete(5))
	requireMark(t, w, 7)
	require.Equal(t, 0, w.Pending())
}

func TestWatermark_CrashWithGapResumesAtGap(t *testing.T) {
	w := committer.NewWatermark()
	for o := int64(5); o <= 14; o++ {
		w.Track(o)
	}

	for _, o := range []int64{5, 6, 7, 9, 10} {
		require.True(t, w.Complete(o))
	}

	requireMark(t, w, 7)
	mark, _ := w.Watermark()
	require.Equal(t, int64(8), mark+1, "restart resumes at the first incomplete offset")
	require.Equal(t, 7, w.Pending())
}

func TestWatermark_SkipsTransportGaps(t *testing.T) {
	w := committer.NewWatermark()
	for _, o := range []int64{10, 13, 20} {
		w.Track(o)
	}

	w.Complete(10)
	w.Complete(13)
	requireMark(t, w, 13)

	w.Complete(20)
	requireMark(t, w, 20)
}

func TestWatermark_RejectsUnknownAndDuplicate(t *testing.T) {
	w := committer.NewWatermark()
	w.Track(1)
	w.Track(2)

	require.False(t, w.Complete(99))
	require.True(t, w.Complete(2))
	require.False(t, w.Complete(2))
	require.True(t, w.Complete(1))
	require.False(t, w.Complete(1))
	requireMark(t, w, 2)
}

func TestWatermark_IgnoresNonIncreasingTrack(t *testing.T) {
	w := committer.NewWatermark()
	require.True(t, w.Track(5))
	require.False(t, w.Track(5))
	require.False(t, w.Track(3))
	require.Equal(t, 1, w.Pending())
}

func TestWatermark_CloseIgnoresLateCompletions(t *testing.T) {
	w := committer.NewWatermark()
	w.Track(0)
	w.Track(1)
	w.Complete(0)
	w.Close()

	require.False(t, w.Complete(1))
	require.False(t, w.Track(2))
	requireMark(t, w, 0)
}

func TestWatermark_ConcurrentCompletionNeverExceedsCompleted(t *testing.T) {
	const n = 2000
	w := committer.NewWatermark()
	for o := int64(0); o < n; o++ {
		w.Track(o)
	}

	offsets := rand.Perm(n)
	var completed sync.Map
	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; i < n; i += 8 {
				o := int64(offsets[i])
				completed.Store(o, true)
				w.Complete(o)

				if mark, ok := w.Watermark(); ok {
					for check := int64(0); check <= mark; check += 97 {
						_, done := completed.Load(check)
						if !done {
							t.Errorf("watermark %d passed incomplete offset %d", mark, check)
							return
						}
					}
				}
			}
		}(worker)
	}
	wg.Wait()

	requireMark(t, w, n-1)
}
