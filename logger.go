package blockcache

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with cache-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithDevice adds a device field to the logger.
func (l *Logger) WithDevice(dev uint64) *Logger {
	return &Logger{
		Logger: l.Logger.With("device", dev),
	}
}

// LogOwnershipTimeout logs an ownership wait that gave up.
func (l *Logger) LogOwnershipTimeout(ctx context.Context, dev, cluster uint64, owner, holder OwnerID, waited time.Duration) {
	l.WarnContext(ctx, "buffer ownership wait timed out",
		"device", dev,
		"cluster", cluster,
		"owner", uint64(owner),
		"holder", uint64(holder),
		"waited", waited,
	)
}

// LogEviction logs a trim pass that removed entries.
func (l *Logger) LogEviction(ctx context.Context, evicted int, bytes int64, entries int, total int64) {
	l.DebugContext(ctx, "cache trimmed",
		"evicted", evicted,
		"evicted_bytes", bytes,
		"entries", entries,
		"bytes", total,
	)
}

// LogIOError logs a failed raw read or write.
func (l *Logger) LogIOError(ctx context.Context, op string, dev, cluster uint64, err error) {
	l.ErrorContext(ctx, "raw "+op+" failed",
		"device", dev,
		"cluster", cluster,
		"error", err,
	)
}

// LogLeak logs standalone buffers still outstanding at teardown.
func (l *Logger) LogLeak(ctx context.Context, buffers, bytes int64) {
	l.ErrorContext(ctx, "standalone buffers leaked at close",
		"buffers", buffers,
		"bytes", bytes,
	)
}
