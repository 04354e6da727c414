// Package logging wraps log/slog with the conventions every pipeline stage
// shares: JSON or text output on stderr and the run ID taken from the context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type runIDKey struct{}

// WithRunID returns a context carrying the reconciliation run ID.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// GetRunID returns the run ID stored in ctx, or "".
func GetRunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// Logger is a slog.Logger whose *Context methods add the run ID.
type Logger struct {
	*slog.Logger
}

// New logs to stderr, leaving stdout to command output.
func New(level slog.Level, format string) *Logger {
	return NewWithWriter(os.Stderr, level, format)
}

// NewWithWriter builds a logger on w. format is "text" or "json"; anything
// else means json. Records at error level carry their source location.
func NewWithWriter(w io.Writer, level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: level, AddSource: level >= slog.LevelError}
	if strings.EqualFold(format, "text") {
		return &Logger{Logger: slog.New(slog.NewTextHandler(w, opts))}
	}
	return &Logger{Logger: slog.New(slog.NewJSONHandler(w, opts))}
}

// Default wraps slog.Default().
func Default() *Logger {
	return &Logger{Logger: slog.Default()}
}

// Discard drops every record.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.DiscardHandler)}
}

// WithContext returns the underlying logger, tagged with the run ID from ctx
// when there is one.
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	id := GetRunID(ctx)
	if id == "" {
		return l.Logger
	}
	return l.Logger.With(RunID(id))
}

func (l *Logger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).DebugContext(ctx, msg, args...)
}

func (l *Logger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).InfoContext(ctx, msg, args...)
}

func (l *Logger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).WarnContext(ctx, msg, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.WithContext(ctx).ErrorContext(ctx, msg, args...)
}

// With returns a Logger carrying args on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithGroup nests subsequent attributes under name.
func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{Logger: l.Logger.WithGroup(name)}
}

// ParseLevel maps debug, info, warn (or warning) and error, in any case, to
// a slog.Level. Anything else is info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetDefault installs l as slog's default, which the log package also uses.
func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
