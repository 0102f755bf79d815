// Package observability provides the slog logger and Prometheus metrics
// shared by the reconcile and serve binaries.
package observability

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds a structured logger writing to stderr. Format is "json"
// or "text"; level is one of debug, info, warn, error. Unrecognized values
// fall back to JSON at info level.
func NewLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
