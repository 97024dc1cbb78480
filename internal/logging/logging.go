// Package logging builds the structured logger shared by every component.
// Components receive a *slog.Logger and derive their own with
// logger.With("component", name).
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a text logger in dev and a JSON logger everywhere else.
// LOG_LEVEL (debug, info, warn, error) overrides the default level.
func New(env string) *slog.Logger {
	return NewWithWriter(os.Stdout, env, os.Getenv("LOG_LEVEL"))
}

// NewWithWriter is New with an explicit destination and level.
func NewWithWriter(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(env, "dev") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard returns a logger that drops everything, for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
