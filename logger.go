package litecore

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with storage-stack-specific context helpers.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDrive adds a drive identifier field to the logger.
func (l *Logger) WithDrive(drive uint8) *Logger {
	return &Logger{
		Logger: l.Logger.With("drive", drive),
	}
}

// WithBlock adds a block number field to the logger.
func (l *Logger) WithBlock(blockNum uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("block", blockNum),
	}
}
