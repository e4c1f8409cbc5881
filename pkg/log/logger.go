// Package log provides the structured logging system for Warren components.
package log

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Level represents the severity level of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name ("debug", "info", ...) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, errors.New("log: unknown level " + s)
	}
}

// Field is one structured key/value attached to a log message.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Logger is the logging interface Warren components depend on.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// Fatal logs at error severity and exits the process.
	Fatal(msg string, fields ...Field)

	// With returns a logger that attaches fields to every message.
	With(fields ...Field) Logger
	// WithComponent tags messages with a component name.
	WithComponent(component string) Logger
	// WithError attaches an error field.
	WithError(err error) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// BaseLogger implements Logger over log/slog.
type BaseLogger struct {
	level *slog.LevelVar
	sl    *slog.Logger
	exit  func(int)
}

// LoggerOption configures NewLogger.
type LoggerOption func(*loggerConfig)

type loggerConfig struct {
	level  Level
	out    io.Writer
	json   bool
	source bool
}

// WithLevel sets the minimum level.
func WithLevel(level Level) LoggerOption {
	return func(c *loggerConfig) { c.level = level }
}

// WithOutput directs log output to w.
func WithOutput(w io.Writer) LoggerOption {
	return func(c *loggerConfig) { c.out = w }
}

// WithJSONFormat emits records as JSON instead of logfmt-style text.
func WithJSONFormat() LoggerOption {
	return func(c *loggerConfig) { c.json = true }
}

// NewLogger constructs a logger writing to stderr unless configured
// otherwise.
func NewLogger(opts ...LoggerOption) *BaseLogger {
	cfg := loggerConfig{level: InfoLevel, out: os.Stderr}
	for _, o := range opts {
		o(&cfg)
	}
	lv := &slog.LevelVar{}
	lv.Set(toSlogLevel(cfg.level))
	ho := &slog.HandlerOptions{Level: lv}
	var h slog.Handler
	if cfg.json {
		h = slog.NewJSONHandler(cfg.out, ho)
	} else {
		h = slog.NewTextHandler(cfg.out, ho)
	}
	return &BaseLogger{level: lv, sl: slog.New(h), exit: os.Exit}
}

func (l *BaseLogger) log(level slog.Level, msg string, fields []Field) {
	l.sl.LogAttrs(context.Background(), level, msg, attrs(fields)...)
}

// Debug logs at debug severity.
func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }

// Info logs at info severity.
func (l *BaseLogger) Info(msg string, fields ...Field) { l.log(slog.LevelInfo, msg, fields) }

// Warn logs at warn severity.
func (l *BaseLogger) Warn(msg string, fields ...Field) { l.log(slog.LevelWarn, msg, fields) }

// Error logs at error severity.
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

// Fatal logs at error severity and exits with status 1.
func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.log(slog.LevelError, msg, fields)
	l.exit(1)
}

// With returns a logger carrying extra fields on every message.
func (l *BaseLogger) With(fields ...Field) Logger {
	nl := *l
	nl.sl = l.sl.With(attrsToAny(attrs(fields))...)
	return &nl
}

// WithComponent tags messages with a component name.
func (l *BaseLogger) WithComponent(component string) Logger {
	return l.With(F("component", component))
}

// WithError attaches err to every message.
func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.With(F("error", err.Error()))
}

// SetLevel sets the minimum log level.
func (l *BaseLogger) SetLevel(level Level) { l.level.Set(toSlogLevel(level)) }

// GetLevel returns the current minimum log level.
func (l *BaseLogger) GetLevel() Level { return fromSlogLevel(l.level.Level()) }

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level <= slog.LevelDebug:
		return DebugLevel
	case level == slog.LevelInfo:
		return InfoLevel
	case level == slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func attrs(fields []Field) []slog.Attr {
	if len(fields) == 0 {
		return nil
	}
	out := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func attrsToAny(attrs []slog.Attr) []any {
	out := make([]any, len(attrs))
	for i := range attrs {
		out[i] = attrs[i]
	}
	return out
}
