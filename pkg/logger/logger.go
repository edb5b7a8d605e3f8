// Package logger builds the process-wide structured logger.
package logger

import (
	"os"
	"strings"

	"log/slog"
)

// New returns a JSON slog logger tagged with the service name. Components
// derive their own loggers from it via With.
func New(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", service)
}

// ParseLevel maps a configuration string to a slog level, defaulting to
// info for unknown values.
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
