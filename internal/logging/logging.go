// Package logging provides structured logging for the basin data service.
//
// It wraps log/slog so every component logs with the same handler, level and
// format. Components receive their own logger at construction time:
//
//	log := logging.Component("ingest")
//	log.Info("year processed", "year", 2023, "status", "SUCCESS")
package logging

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger is the process logger. Init replaces it.
var Logger *slog.Logger

// Init initializes the process logger with the given level and format.
// If jsonFormat is true, logs are written as JSON; otherwise as text.
func Init(level slog.Level, jsonFormat bool) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if jsonFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	InitWithHandler(handler)
}

// InitWithHandler initializes the process logger with a custom handler.
func InitWithHandler(handler slog.Handler) {
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Unknown values fall back to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// Component returns a logger tagged with the component name.
func Component(name string) *slog.Logger {
	if Logger == nil {
		Init(slog.LevelInfo, false)
	}
	return Logger.With("component", name)
}

// Discard returns a logger that drops everything. Used by tests and as the
// fallback when a constructor receives a nil logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Timed runs fn, logging its start, its outcome and how long it took.
// The result and error of fn are returned untouched.
func Timed[T any](log *slog.Logger, operation string, fn func() (T, error)) (T, error) {
	if log == nil {
		log = Component("timed")
	}

	start := time.Now()
	log.Info("starting execution", "operation", operation)

	result, err := fn()
	elapsed := time.Since(start)
	if err != nil {
		log.Error("execution failed", "operation", operation, "elapsed", elapsed, "error", err)
		return result, err
	}

	log.Info("execution finished", "operation", operation, "elapsed", elapsed)
	return result, nil
}
