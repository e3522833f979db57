package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a stdout logger with a fixed level.
func New(lvl string, addSource bool, environment string) *slog.Logger {
	log, _ := NewLeveled(os.Stdout, lvl, addSource, environment)
	return log
}

// NewLeveled returns a logger whose level can be changed at runtime through
// the returned LevelVar.
func NewLeveled(w io.Writer, lvl string, addSource bool, environment string) (*slog.Logger, *slog.LevelVar) {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(lvl))

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
	}
	var handler slog.Handler

	if strings.ToLower(environment) == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With(
		slog.String("environment", environment),
	), level
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
