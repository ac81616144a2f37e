// Package logger provides structured logging on top of log/slog with
// typed field constructors and per-component child loggers.
package logger

import (
	"io"
	"log/slog"
	"time"
)

// LogLevel controls the minimum severity a logger emits.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Field is a typed key/value pair attached to a log record.
type Field = slog.Attr

// String returns a string field.
func String(key, value string) Field { return slog.String(key, value) }

// Int returns an int field.
func Int(key string, value int) Field { return slog.Int(key, value) }

// Int64 returns an int64 field.
func Int64(key string, value int64) Field { return slog.Int64(key, value) }

// Uint64 returns a uint64 field.
func Uint64(key string, value uint64) Field { return slog.Uint64(key, value) }

// Float64 returns a float64 field.
func Float64(key string, value float64) Field { return slog.Float64(key, value) }

// Bool returns a bool field.
func Bool(key string, value bool) Field { return slog.Bool(key, value) }

// Duration returns a duration field.
func Duration(key string, value time.Duration) Field { return slog.Duration(key, value) }

// Time returns a time field.
func Time(key string, value time.Time) Field { return slog.Time(key, value) }

// Any returns a field holding an arbitrary value.
func Any(key string, value any) Field { return slog.Any(key, value) }

// Error returns a field holding an error under the conventional "error" key.
// A nil error logs as an empty string rather than panicking.
func Error(err error) Field {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Logger is the logging interface used throughout the application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger that includes the given fields on every record.
	With(fields ...Field) Logger
}

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	sl *slog.Logger
}

// NewSlogLogger creates a Logger writing text-formatted records to w at the
// given minimum level. Optional attrs are attached to every record, typically
// a "component" field.
func NewSlogLogger(w io.Writer, level LogLevel, attrs []Field) Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level.slogLevel()})
	sl := slog.New(handler)
	if len(attrs) > 0 {
		sl = sl.With(attrsToArgs(attrs)...)
	}
	return &slogLogger{sl: sl}
}

// NewJSONLogger creates a Logger writing JSON records to w at the given
// minimum level. Used when logs are shipped to an aggregator.
func NewJSONLogger(w io.Writer, level LogLevel, attrs []Field) Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level.slogLevel()})
	sl := slog.New(handler)
	if len(attrs) > 0 {
		sl = sl.With(attrsToArgs(attrs)...)
	}
	return &slogLogger{sl: sl}
}

func (l *slogLogger) Debug(msg string, fields ...Field) {
	l.sl.Debug(msg, attrsToArgs(fields)...)
}

func (l *slogLogger) Info(msg string, fields ...Field) {
	l.sl.Info(msg, attrsToArgs(fields)...)
}

func (l *slogLogger) Warn(msg string, fields ...Field) {
	l.sl.Warn(msg, attrsToArgs(fields)...)
}

func (l *slogLogger) Error(msg string, fields ...Field) {
	l.sl.Error(msg, attrsToArgs(fields)...)
}

func (l *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{sl: l.sl.With(attrsToArgs(fields)...)}
}

func attrsToArgs(fields []Field) []any {
	args := make([]any, len(fields))
	for i := range fields {
		args[i] = fields[i]
	}
	return args
}
