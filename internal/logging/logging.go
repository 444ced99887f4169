// Package logging builds the process logger on top of foundation's core/logger
// and adds the chat-specific attributes.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/dmitrymomot/foundation/core/logger"
)

// New returns a logger writing to w. format is "json" or "text" (default);
// level is one of debug, info, warn, error (default info).
func New(level, format string, w io.Writer) *slog.Logger {
	lvl := ParseLevel(level)
	if strings.EqualFold(format, "json") {
		return logger.New(logger.WithLevel(lvl), logger.WithOutput(w), logger.WithJSONFormatter())
	}
	return logger.New(logger.WithLevel(lvl), logger.WithOutput(w))
}

// ParseLevel maps a level name to slog.Level, falling back to info.
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

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func Username(name string) slog.Attr {
	return slog.String("username", name)
}

func SessionID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("session_id", id)
}

func RemoteAddr(addr string) slog.Attr {
	return slog.String("remote_addr", addr)
}
