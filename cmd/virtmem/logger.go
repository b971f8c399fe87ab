package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// newLogger builds a text logger on w at the given level. An unknown level
// falls back to warn and is reported once through the new logger.
func newLogger(w io.Writer, levelStr string) *slog.Logger {
	level, err := parseLogLevel(levelStr)
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	if err != nil {
		logger.Warn(err.Error())
	}
	return logger
}

func parseLogLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("unknown log level %q, using warn", levelStr)
	}
}
