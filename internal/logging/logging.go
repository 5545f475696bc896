package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup builds the root logger, installs it as slog's default and
// returns it; callers derive component loggers from it with With.
// level accepts "debug", "info", "warn" or "error" (case-insensitive,
// typically from LARDER_LOG_LEVEL) and falls back to info.
func Setup(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: lvl,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
