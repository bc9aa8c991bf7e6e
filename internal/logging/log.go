// Package logging initializes the process-wide structured logger.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Log is the shared logger. It defaults to a text handler at Info level so
// packages can log before Init runs.
var Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Init replaces the shared logger honoring the provided level string. An
// empty level falls back to the SHAREBOARD_LOG_LEVEL environment variable,
// then to Info.
func Init(level string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("SHAREBOARD_LOG_LEVEL")))
	}
	var l slog.Level
	switch lvl {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(Log)
}
