// Package logging wires the process-wide slog setup: JSON output for
// machine consumption plus rotating per-run file logs.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

var structuredLogger *slog.Logger

// Default rotation settings for file loggers.
const (
	defaultMaxSizeMB  = 100
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

// Init initializes the logging system. Structured JSON output goes to
// stdout and becomes the process default logger.
func Init(level slog.Level) {
	structuredLogger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(structuredLogger)
}

// ForService creates a new logger instance with the 'service' attribute
// added, using the global structured logger as the base. Returns a discard
// logger when Init() has not been called so components never need nil checks.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return structuredLogger.With("service", serviceName)
}

// NewFileLogger creates a new slog.Logger writing JSON logs to the given
// file path, rotated by lumberjack. It includes a 'service' attribute in all
// logs and returns the logger plus a function to close the underlying writer.
func NewFileLogger(filePath, serviceName string, level slog.Level) (*slog.Logger, func() error, error) {
	// lumberjack doesn't create directories
	logDir := filepath.Dir(filePath)
	if logDir != "." {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
		}
	}

	logWriter := &lumberjack.Logger{
		Filename:   filePath,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAgeDays,
		Compress:   false,
	}

	fileHandler := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(fileHandler).With("service", serviceName)

	closeFunc := func() error {
		return logWriter.Close()
	}

	return logger, closeFunc, nil
}
