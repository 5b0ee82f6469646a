package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values yield
// fallback.
func ParseLevel(value string, fallback slog.Level) slog.Level {
	switch strings.ToLower(value) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return fallback
}

// Init installs a text handler on stderr as the default logger. The level
// comes from LOG_LEVEL, falling back to defaultLevel.
func Init(defaultLevel slog.Level) *slog.Logger {
	return InitWriter(os.Stderr, defaultLevel)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, defaultLevel slog.Level) *slog.Logger {
	level := ParseLevel(os.Getenv("LOG_LEVEL"), defaultLevel)

	logger := slog.New(
		slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
	return logger
}
