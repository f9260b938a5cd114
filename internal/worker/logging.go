package worker

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a structured logger with configurable level and format.
// level: "debug", "info", "warn", "error" (defaults to info if invalid)
// format: "json" for JSON output, anything else for human-readable text
// file: when set, output is also written to a size-rotated log file
func NewLogger(level, format, file string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var out io.Writer = os.Stdout
	if file != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	return slog.New(newHandler(out, format, opts))
}

func newHandler(out io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
