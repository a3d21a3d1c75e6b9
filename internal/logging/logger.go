package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup initializes the global slog logger with JSON output to stdout.
// Extra handlers (the PG sink) receive every record as well.
func Setup(level string, extra ...slog.Handler) *slog.Logger {
	return setup(os.Stdout, level, extra...)
}

// SetupWriter is Setup with JSON output to w.
func SetupWriter(w io.Writer, level string, extra ...slog.Handler) *slog.Logger {
	return setup(w, level, extra...)
}

func setup(w io.Writer, level string, extra ...slog.Handler) *slog.Logger {
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	if len(extra) > 0 {
		handler = NewMultiHandler(append([]slog.Handler{handler}, extra...)...)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

// Attach fans the current default logger out to h as well.
func Attach(h slog.Handler) *slog.Logger {
	logger := slog.New(NewMultiHandler(slog.Default().Handler(), h))
	slog.SetDefault(logger)
	return logger
}
