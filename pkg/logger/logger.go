package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const serverService = "bio-generator"

// New constructs the JSON slog logger used by the HTTP server.
func New() *slog.Logger {
	return NewWithWriter(os.Stdout, serverService)
}

// NewWithWriter builds a JSON logger writing to w, tagged with the given service name.
func NewWithWriter(w io.Writer, service string) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", service)
}

func parseLevel(level string) slog.Leveler {
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
