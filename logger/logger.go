// Package logger is the structured logging seam used by every lanes
// component. Components scope their logger with With, for example by
// partition or property name, and the zap plugin supplies the backend.
package logger

// LogLevel orders log severity. Resizes log at Info and rejected property
// values at Warn.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "debug"
	case InfoLevel:
		return "info"
	case WarnLevel:
		return "warn"
	case ErrorLevel:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel maps a textual level to a LogLevel, defaulting to InfoLevel
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Base is the minimum a backend implements. WrapLogger builds the rest.
type Base interface {
	Level() LogLevel
	Log(level LogLevel, msg string, kv ...any)
}

// Logger takes alternating key/value pairs after the message.
type Logger interface {
	Base
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
	With(kv ...any) Logger
}

// NoopLogger discards everything. It is the default when no logger is
// configured.
type NoopLogger struct{}

func (n *NoopLogger) Log(level LogLevel, msg string, kv ...any) {
	// no operation
}

func (n *NoopLogger) Level() LogLevel {
	return InfoLevel
}

func NewNoopLogger() Logger {
	return WrapLogger(&NoopLogger{})
}
