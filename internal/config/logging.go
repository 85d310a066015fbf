package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	slogmulti "github.com/samber/slog-multi"
)

// SetupLogger creates the process logger: text to stderr, JSON to the log file.
// An empty file name or a file that cannot be opened leaves stderr only.
// Returns the logger and a cleanup function to close the file.
func SetupLogger(cfg LogConfig) (*slog.Logger, func() error) {
	level := cfg.LogLevel()
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	noop := func() error { return nil }

	if cfg.File == "" {
		return slog.New(stderrHandler), noop
	}

	if dir := filepath.Dir(cfg.File); dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}
	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := slog.New(stderrHandler)
		logger.Error("failed to open log file, using stderr only", "error", err, "file", cfg.File)
		return logger, noop
	}

	var console io.Writer
	if cfg.Console {
		console = os.Stderr
	}
	return SetupLoggerWithWriters(console, file, level), file.Close
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
// A nil console writer disables the text handler.
func SetupLoggerWithWriters(console, file io.Writer, level slog.Level) *slog.Logger {
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	if console == nil {
		return slog.New(fileHandler)
	}
	consoleHandler := slog.NewTextHandler(console, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(consoleHandler, fileHandler))
}
