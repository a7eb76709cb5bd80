package vecqueue

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with queue-specific context.
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
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
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
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
	}
}

// WithPath adds the database path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// LogOpen logs opening the queue and the counters reconstructed from disk.
func (l *Logger) LogOpen(ctx context.Context, inserts, deletes uint64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "queue opened",
			"insert_len", inserts,
			"delete_len", deletes,
		)
	}
}

// LogPush logs a push into one of the queues.
func (l *Logger) LogPush(ctx context.Context, kind Kind, id string, ts int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "push failed",
			"queue", kind.String(),
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "push completed",
			"queue", kind.String(),
			"id", id,
			"ts", ts,
		)
	}
}

// LogPop logs a pop from one of the queues. Not-found pops are routine and
// logged at debug level.
func (l *Logger) LogPop(ctx context.Context, kind Kind, id string, err error) {
	switch {
	case err == nil:
		l.DebugContext(ctx, "pop completed",
			"queue", kind.String(),
			"id", id,
		)
	case isNotFound(err):
		l.DebugContext(ctx, "pop missed",
			"queue", kind.String(),
			"id", id,
		)
	default:
		l.ErrorContext(ctx, "pop failed",
			"queue", kind.String(),
			"id", id,
			"error", err,
		)
	}
}

// LogInconsistency logs an index entry whose data entry is missing.
func (l *Logger) LogInconsistency(ctx context.Context, kind Kind, id string, ts int64) {
	l.WarnContext(ctx, "index entry without data entry",
		"queue", kind.String(),
		"id", id,
		"ts", ts,
	)
}

// LogDrainBatch logs one drain batch.
func (l *Logger) LogDrainBatch(ctx context.Context, now int64, inserts, deletes, emitted int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "drain batch failed",
			"cutoff", now,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "drain batch completed",
			"cutoff", now,
			"removed_inserts", inserts,
			"removed_deletes", deletes,
			"emitted", emitted,
		)
	}
}

// LogRange logs the end of a range scan.
func (l *Logger) LogRange(ctx context.Context, emitted, skipped int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "range failed",
			"emitted", emitted,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "range completed",
			"emitted", emitted,
			"skipped", skipped,
		)
	}
}

// LogBackup logs a backup operation.
func (l *Logger) LogBackup(ctx context.Context, name string, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "backup failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "backup saved",
			"name", name,
			"records", records,
		)
	}
}

// LogRestore logs a restore operation.
func (l *Logger) LogRestore(ctx context.Context, name string, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"name", name,
			"records_restored", records,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "restore completed",
			"name", name,
			"records_restored", records,
		)
	}
}
