package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler and minimum level of a logger.
type Options struct {
	Level  string
	Format string
}

var defaultLogger *slog.Logger

// New builds a logger writing to w. Format "json" selects the JSON handler,
// anything else the text handler.
func New(w io.Writer, opts Options) *slog.Logger {
	ho := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}
	if strings.EqualFold(opts.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, ho))
	}
	return slog.New(slog.NewTextHandler(w, ho))
}

// ParseLevel maps debug, info, warn and error onto slog levels; unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Init installs the process logger on stdout and makes it the slog default.
func Init(opts Options) {
	defaultLogger = New(os.Stdout, opts)
	slog.SetDefault(defaultLogger)
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		Init(Options{Level: "debug", Format: "text"})
	}
	return defaultLogger
}
