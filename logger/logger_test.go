//go:build unit

package logger_test

import (
	"testing"

	"github.com/hugolhafner/go-lanes/logger"
	mocklogger "github.com/hugolhafner/go-lanes/logger/mock"
	"github.com/stretchr/testify/require"
)

type recordingBase struct {
	kv [][]any
}

func (r *recordingBase) Level() logger.LogLevel { return logger.DebugLevel }

func (r *recordingBase) Log(_ logger.LogLevel, _ string, kv ...any) {
	r.kv = append(r.kv, kv)
}

func TestLevelWrapper_WithPrependsFields(t *testing.T) {
	t.Parallel()
	base := &recordingBase{}
	l := logger.WrapLogger(base).With("component", "test").With("partition", 3)

	l.Info("hello", "offset", 10)

	require.Len(t, base.kv, 1)
	require.Equal(t, []any{"component", "test", "partition", 3, "offset", 10}, base.kv[0])
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	require.Equal(t, logger.DebugLevel, logger.ParseLevel("debug"))
	require.Equal(t, logger.WarnLevel, logger.ParseLevel("warning"))
	require.Equal(t, logger.ErrorLevel, logger.ParseLevel("error"))
	require.Equal(t, logger.InfoLevel, logger.ParseLevel("nonsense"))
}

func TestMockLogger_ChildrenShareEntries(t *testing.T) {
	t.Parallel()
	m := mocklogger.New()
	child := m.With("component", "child")

	child.Warn("child message")

	m.AssertCalledWithLevelAndMessage(t, logger.WarnLevel, "child message")
	require.Equal(t, []any{"component", "child"}, m.Entries()[0].KV)
}
