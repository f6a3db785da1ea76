package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Log is the global logger instance. It defaults to a text logger on stdout
// so packages can log before Setup runs (tests, CLI subcommands).
var Log = slog.New(slog.NewTextHandler(os.Stdout, nil))

// Setup initializes the global logger based on the environment and level
func Setup(env, level string) {
	SetupWithWriter(os.Stdout, env, level)
}

// SetupWithWriter is Setup with an explicit destination
func SetupWithWriter(w io.Writer, env, level string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	Log = slog.New(handler).With(slog.String("service", "ledger-api"))
	slog.SetDefault(Log)
}

func parseLevel(level string) slog.Level {
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

// Info logs an info message
func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}
