package mocklogger

import (
	"sync"

	"github.com/hugolhafner/go-lanes/logger"
)

var _ logger.Logger = (*MockLogger)(nil)

// LogEntry is one recorded call with scoped fields first.
type LogEntry struct {
	Level   logger.LogLevel
	Message string
	KV      []any
}

type store struct {
	mu      sync.Mutex
	entries []LogEntry
}

// MockLogger records every entry so tests can assert on what a partition
// processor or property logged. Loggers derived with With share the
// parent's entries and carry the scoped fields in KV.
type MockLogger struct {
	store *store
	args  []any
}

func New() *MockLogger {
	return &MockLogger{store: &store{}}
}

func (m *MockLogger) Log(level logger.LogLevel, msg string, kv ...any) {
	all := make([]any, 0, len(m.args)+len(kv))
	all = append(all, m.args...)
	all = append(all, kv...)

	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.entries = append(
		m.store.entries, LogEntry{
			Level:   level,
			Message: msg,
			KV:      all,
		},
	)
}

func (m *MockLogger) Level() logger.LogLevel {
	return logger.DebugLevel
}

func (m *MockLogger) With(kv ...any) logger.Logger {
	args := make([]any, 0, len(m.args)+len(kv))
	args = append(args, m.args...)
	args = append(args, kv...)
	return &MockLogger{
		store: m.store,
		args:  args,
	}
}

func (m *MockLogger) Debug(msg string, kv ...any) {
	m.Log(logger.DebugLevel, msg, kv...)
}

func (m *MockLogger) Info(msg string, kv ...any) {
	m.Log(logger.InfoLevel, msg, kv...)
}

func (m *MockLogger) Warn(msg string, kv ...any) {
	m.Log(logger.WarnLevel, msg, kv...)
}

func (m *MockLogger) Error(msg string, kv ...any) {
	m.Log(logger.ErrorLevel, msg, kv...)
}

// Entries returns a snapshot of the recorded entries
func (m *MockLogger) Entries() []LogEntry {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	out := make([]LogEntry, len(m.store.entries))
	copy(out, m.store.entries)
	return out
}
