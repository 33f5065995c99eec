// Package logger provides the shared logging surface for tangent.
// It wraps log/slog so packages can log without holding a concrete handler.
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

// Logger is the logging interface used across the library.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// New creates a Logger from a slog handler.
func New(handler slog.Handler) Logger {
	return &slogLogger{l: slog.New(handler)}
}

// Text creates a Logger with a text handler.
func Text(w io.Writer, level slog.Level) Logger {
	return New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Discard creates a Logger that drops everything.
func Discard() Logger {
	return New(slog.DiscardHandler)
}

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }
func (s *slogLogger) With(args ...any) Logger       { return &slogLogger{l: s.l.With(args...)} }

var defaultLogger atomic.Value

func init() {
	defaultLogger.Store(Text(os.Stderr, slog.LevelWarn))
}

// Default returns the process-wide logger.
func Default() Logger {
	return defaultLogger.Load().(Logger)
}

// SetDefault replaces the process-wide logger.
func SetDefault(l Logger) {
	defaultLogger.Store(l)
}
