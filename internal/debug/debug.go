// Package debug provides context-based debug mode with structured logging.
package debug

import (
	"context"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

type contextKey string

const debugKey contextKey = "debug_enabled"

// Rotation limits for --log-file.
const (
	logFileMaxSizeMB  = 10
	logFileMaxBackups = 3
	logFileMaxAgeDays = 28
)

// WithDebug returns a context with debug mode enabled/disabled.
func WithDebug(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, debugKey, enabled)
}

// IsEnabled returns true if debug mode is enabled in the context.
func IsEnabled(ctx context.Context) bool {
	if v, ok := ctx.Value(debugKey).(bool); ok {
		return v
	}
	return false
}

// SetupLogger configures slog based on debug mode. When logFile is set, log
// lines are also written to that file with size-based rotation; the returned
// closer releases it.
func SetupLogger(debugEnabled bool, logFile string) io.Closer {
	return setupLogger(os.Stderr, debugEnabled, logFile)
}

func setupLogger(stderr io.Writer, debugEnabled bool, logFile string) io.Closer {
	var level slog.Level
	if debugEnabled {
		level = slog.LevelDebug
	} else {
		level = slog.LevelWarn
	}

	out := stderr
	var closer io.Closer = nopCloser{}
	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    logFileMaxSizeMB,
			MaxBackups: logFileMaxBackups,
			MaxAge:     logFileMaxAgeDays,
		}
		out = io.MultiWriter(stderr, rotating)
		closer = rotating
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
