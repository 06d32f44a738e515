// Package logging builds the client logger: JSON records to a rotating file
// and human-readable records on stderr.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New. Zero rotation values take lumberjack's defaults
// except MaxSizeMB, which defaults to 10.
type Options struct {
	File       string
	Level      slog.Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Console receives the text handler output. Defaults to os.Stderr.
	Console io.Writer
	// ConsoleLevel filters console records separately so command output
	// stays readable. Defaults to Level.
	ConsoleLevel *slog.Level
}

// New returns the logger and a closer for the log file. With an empty File
// only the console handler is installed.
func New(opts Options) (*slog.Logger, io.Closer, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	consoleLevel := opts.Level
	if opts.ConsoleLevel != nil {
		consoleLevel = *opts.ConsoleLevel
	}
	text := slog.NewTextHandler(console, &slog.HandlerOptions{Level: consoleLevel})

	if opts.File == "" {
		return slog.New(text), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, nil, err
	}

	size := opts.MaxSizeMB
	if size <= 0 {
		size = 10
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    size,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}
	file := slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: opts.Level, AddSource: opts.Level <= slog.LevelDebug})
	return slog.New(slog.NewMultiHandler(file, text)), rotator, nil
}
