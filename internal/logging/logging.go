// Package logging builds the process logger: structured JSON onto a
// size-rotated file, optionally mirrored to stderr.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where log output goes.
type Options struct {
	Path     string // rotated log file; empty means stderr only
	ToStderr bool
	Debug    bool
}

// New returns a JSON slog.Logger per opts.
func New(opts Options) *slog.Logger {
	var writers []io.Writer
	if opts.Path != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
		})
	}
	if opts.ToStderr || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level}))
}
