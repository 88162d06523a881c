package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup configures and returns a structured logger writing to stderr, which
// keeps stdout free for command output
func Setup() *slog.Logger {
	return New(os.Stderr, os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
}

// New builds a logger writing to w. JSON is used when env is "production".
func New(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	// Use JSON handler for production, text handler for development
	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info
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
