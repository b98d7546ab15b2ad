package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
)

// NewDefaultLogger creates a logger with default configuration using zap
func NewDefaultLogger() Logger {
	logger, err := NewZapLogger(DefaultLogConfig())
	if err != nil {
		panic(fmt.Sprintf("failed to initialize default zap logger: %v", err))
	}
	return logger
}

// NewNopLogger returns a logger that discards everything. Used by tests and
// by constructors that receive a nil logger.
func NewNopLogger() Logger {
	return &ZapAdapter{logger: zap.NewNop()}
}

// InitGlobalLogger builds the process logger from level, format and an
// optional log file. An empty file name logs to stdout. The returned closer
// releases the file, if any.
func InitGlobalLogger(level, format, file string) (io.Closer, error) {
	cfg := LogConfig{
		Level:      ParseLevel(level),
		Format:     ParseFormat(format),
		TimeFormat: time.RFC3339,
	}

	var closer io.Closer = nopCloser{}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", file, err)
		}
		cfg.Output = f
		closer = f
	}

	logger, err := NewZapLogger(cfg)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}
	SetGlobalLogger(logger)

	logger.Info("Logger initialized",
		Field{"level", cfg.Level.String()},
		Field{"format", string(cfg.Format)},
		Field{"log_file", file},
	)
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// MustSync flushes any buffered log entries for zap loggers
// This should be called before application exit
func MustSync() {
	if zapLogger, ok := GetGlobalLogger().(*ZapAdapter); ok {
		_ = zapLogger.Sync()
	}
}

// WithContext is a convenience function to add context to the global logger
func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithFields is a convenience function to add fields to the global logger
func WithFields(fields ...Field) Logger {
	return GetGlobalLogger().WithFields(fields...)
}

// Err creates an error field with key "error"
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
