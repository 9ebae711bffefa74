// Package logging builds the process logger: human-readable text on stderr
// and, optionally, JSON records in a size-rotated log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultLevel is the log level used when not configured.
const DefaultLevel = slog.LevelInfo

// Options configures New.
type Options struct {
	Level  slog.Level
	File   string    // empty disables file logging
	Stderr io.Writer // defaults to os.Stderr
}

// New returns a logger and a closer for the rotating file, if any.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	w := opts.Stderr
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}
	text := slog.NewTextHandler(w, hopts)
	if opts.File == "" {
		return slog.New(text), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return slog.New(text), nopCloser{}, err
	}
	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	h := Fanout(text, slog.NewJSONHandler(file, hopts))
	return slog.New(h), file, nil
}

// ParseLevel converts a string log level to slog.Level.
// Supported values: "debug", "info", "warn", "error" (case-insensitive).
// Returns (DefaultLevel, false) if the string is not recognized.
func ParseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return DefaultLevel, false
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
