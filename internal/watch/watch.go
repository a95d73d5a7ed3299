// Package watch re-runs the sync whenever the workbook file changes.
//
// The watcher:
//  1. Runs the sync once on start
//  2. Watches the workbook's directory (editors often save by replacing the file)
//  3. Debounces bursts of events into a single run
//  4. Ignores events caused by the sync's own writes (see Watcher.MarkSaved)
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RunFunc performs one sync pass. Errors are logged; watching continues.
type RunFunc func(ctx context.Context) error

// Config holds configuration for the watcher.
type Config struct {
	// DebounceInterval is how long the workbook must stay quiet after a
	// change before a run starts.
	DebounceInterval time.Duration

	// Logger for watcher activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 1500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// stamp identifies a version of the workbook file.
type stamp struct {
	modTime time.Time
	size    int64
}

func fileStamp(info fs.FileInfo) stamp {
	return stamp{modTime: info.ModTime(), size: info.Size()}
}

func statStamp(path string) (stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return stamp{}, err
	}
	return fileStamp(info), nil
}

// Watcher runs a RunFunc each time the workbook changes.
type Watcher struct {
	path   string
	run    RunFunc
	config *Config

	watcher *fsnotify.Watcher

	// changedAt is when the last relevant event arrived; zero when idle.
	changedAt time.Time
	// seen is the workbook version the last run left behind: its own final
	// save, or the version it started from when it saved nothing.
	seen stamp

	mu sync.Mutex
	// saved is the stamp of the current run's latest save, if any.
	saved *stamp
}

// New creates a watcher for the workbook at path.
func New(path string, run RunFunc, config *Config) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if run == nil {
		return nil, fmt.Errorf("run cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		path:    abs,
		run:     run,
		config:  config,
		watcher: watcher,
	}, nil
}

// Run performs an initial sync, then syncs after every change of the
// workbook until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.config.Logger.Printf("Watching: %s", w.path)

	w.runOnce(ctx)

	tick := w.config.DebounceInterval / 4
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.config.Logger.Println("Shutdown signal received")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.changedAt = time.Now()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.config.Logger.Printf("Watcher error: %v", err)

		case now := <-ticker.C:
			if w.changedAt.IsZero() || now.Sub(w.changedAt) < w.config.DebounceInterval {
				continue
			}
			w.changedAt = time.Time{}

			current, err := statStamp(w.path)
			if err != nil {
				// Mid-save: the file is being replaced. Try again later.
				w.config.Logger.Printf("Workbook not readable yet: %v", err)
				w.changedAt = now
				continue
			}
			if current == w.seen {
				continue
			}
			w.config.Logger.Printf("Workbook changed, syncing")
			w.runOnce(ctx)
		}
	}
}

// relevant reports whether event concerns the workbook file itself.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return abs == w.path
}

// MarkSaved tells the watcher the running sync saved the workbook, leaving
// the file described by info. Later events for that version are ignored; a
// save by anyone else after it triggers another run.
func (w *Watcher) MarkSaved(info fs.FileInfo) {
	s := fileStamp(info)
	w.mu.Lock()
	w.saved = &s
	w.mu.Unlock()
}

func (w *Watcher) runOnce(ctx context.Context) {
	before, statErr := statStamp(w.path)

	w.mu.Lock()
	w.saved = nil
	w.mu.Unlock()

	if err := w.run(ctx); err != nil {
		w.config.Logger.Printf("Sync failed: %v", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.saved != nil:
		w.seen = *w.saved
	case statErr == nil:
		w.seen = before
	default:
		w.seen = stamp{}
	}
}
