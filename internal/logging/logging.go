// Package logging builds the component loggers used across coachsync.
//
// Every component gets a *log.Logger with a bracketed prefix ("[queue] ",
// "[reconcile] ", ...). Output goes to stderr and, when a log file is
// configured, to a size-rotated file managed by lumberjack.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lhn-coaching/coachsync/internal/config"
)

// Sink is the shared destination of all component loggers.
type Sink struct {
	out  io.Writer
	file *lumberjack.Logger
}

// NewSink creates the log destination described by cfg. Console output goes
// to console (typically os.Stderr); pass nil to log to the file only.
func NewSink(cfg config.LogConfig, console io.Writer) (*Sink, error) {
	s := &Sink{}

	var writers []io.Writer
	if console != nil {
		writers = append(writers, console)
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("logging: ensure log dir: %w", err)
		}
		s.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		writers = append(writers, s.file)
	}

	switch len(writers) {
	case 0:
		s.out = io.Discard
	case 1:
		s.out = writers[0]
	default:
		s.out = io.MultiWriter(writers...)
	}
	return s, nil
}

// Discard returns a sink that drops everything. Useful in tests.
func Discard() *Sink {
	return &Sink{out: io.Discard}
}

// Logger returns a logger for the named component.
func (s *Sink) Logger(component string) *log.Logger {
	if s == nil {
		return log.New(io.Discard, "", 0)
	}
	return log.New(s.out, "["+component+"] ", log.LstdFlags)
}

// Close releases the log file, if any.
func (s *Sink) Close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}
