// Package observability provides logging and metrics.
package observability

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	var handler slog.Handler
	if os.Getenv("APP_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// StoreLogger provides structured logging for persistence operations. Both
// backends use it for the skip-and-log paths where a malformed stored record
// is tolerated instead of failing the request.
type StoreLogger struct {
	backend string
	logger  *Logger
}

// NewStoreLogger creates a StoreLogger for the given backend name.
func NewStoreLogger(backend string) *StoreLogger {
	return &StoreLogger{backend: backend, logger: GlobalLogger}
}

// SkippedRecord records a malformed stored record that a listing path skipped.
func (l *StoreLogger) SkippedRecord(entity, id string, err error) {
	l.logger.Warn("skipping malformed record",
		slog.String("backend", l.backend),
		slog.String("entity", entity),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
}

// RepairedRecord records a malformed single record that was replaced by a
// default placeholder.
func (l *StoreLogger) RepairedRecord(entity, id string, err error) {
	l.logger.Warn("replaced malformed record with placeholder",
		slog.String("backend", l.backend),
		slog.String("entity", entity),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
}

// Error records a backend failure that will bubble up to the caller.
func (l *StoreLogger) Error(op string, err error) {
	l.logger.Error("store operation failed",
		slog.String("backend", l.backend),
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}
