package sfcgo

import (
	"log/slog"

	"github.com/hupe1980/sfcgo/logging"
)

// Logger is the structured logger the index strategies emit their
// warnings through. See the logging package for the context helpers.
type Logger = logging.Logger

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	return logging.NewLogger(handler)
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return logging.NewJSONLogger(level)
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return logging.NewTextLogger(level)
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return logging.NoopLogger()
}

// DefaultLogger returns the process-wide default Logger.
func DefaultLogger() *Logger {
	return logging.Default()
}

// SetDefaultLogger replaces the process-wide default Logger. Strategies
// without an explicit logger pick the new default up immediately.
func SetDefaultLogger(l *Logger) {
	logging.SetDefault(l)
}
