package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lhn-coaching/coachsync/internal/config"
	"github.com/lhn-coaching/coachsync/internal/logging"
	"github.com/lhn-coaching/coachsync/internal/reconcile"
	"github.com/lhn-coaching/coachsync/internal/roster"
	"github.com/lhn-coaching/coachsync/internal/sheets"
)

// Recorder receives the result of every entry the walker attempted.
// Entries skipped because they were already synced are not recorded.
type Recorder interface {
	Record(ctx context.Context, e reconcile.Entry, res reconcile.Result) error
}

// Summary is the end-of-run report. It is produced for every run, including
// runs that stopped early, and covers the entries processed so far.
type Summary struct {
	// Total is the number of non-blank queue rows visited.
	Total int
	// Synced counts entries applied and marked synced in this run.
	Synced int
	// Skipped counts entries that were already synced.
	Skipped int
	// Invalid counts entries rejected before any roster edit.
	Invalid int
	// Failed counts entries left pending after a store error.
	Failed int

	Added    int
	Removed  int
	Warnings int

	// Failures lists the results of every invalid or failed entry.
	Failures []reconcile.Result

	Started time.Time
	Elapsed time.Duration
}

// Pending returns the number of entries that remain unsynced.
func (s Summary) Pending() int {
	return s.Invalid + s.Failed
}

// String returns the one-line form used in logs.
func (s Summary) String() string {
	return fmt.Sprintf("synced=%d added=%d removed=%d skipped=%d invalid=%d failed=%d warnings=%d",
		s.Synced, s.Added, s.Removed, s.Skipped, s.Invalid, s.Failed, s.Warnings)
}

// Walker runs the sync queue against a sheet store.
type Walker struct {
	store    sheets.Store
	cfg      *config.Config
	sink     *logging.Sink
	logger   *log.Logger
	recorder Recorder
}

// New creates a Walker. The store should already apply the retry policy
// (see sheets.Retrying); the walker itself never retries.
//
// Component loggers for the roster and reconciler are taken from sink.
// A nil sink discards all log output.
func New(store sheets.Store, cfg *config.Config, sink *logging.Sink) *Walker {
	return &Walker{
		store:  store,
		cfg:    cfg,
		sink:   sink,
		logger: sink.Logger("queue"),
	}
}

// WithRecorder makes the walker report every attempted entry to r.
// Recording failures are logged and never affect the run.
func (w *Walker) WithRecorder(r Recorder) *Walker {
	w.recorder = r
	return w
}

// Run processes the whole queue once.
//
// The returned error is non-nil only when the run could not start (wrapping
// ErrConfiguration for a malformed workbook) or was cancelled through ctx.
// Per-entry failures are reported in the Summary.
func (w *Walker) Run(ctx context.Context) (Summary, error) {
	s := Summary{Started: time.Now()}

	entries, err := ReadEntries(ctx, w.store, w.cfg)
	if err != nil {
		s.Elapsed = time.Since(s.Started)
		return s, err
	}

	r, err := roster.Build(ctx, w.store, w.cfg, w.sink.Logger("roster"))
	if err != nil {
		s.Elapsed = time.Since(s.Started)
		if errors.Is(err, sheets.ErrColumnNotFound) || errors.Is(err, sheets.ErrSheetNotFound) ||
			errors.Is(err, sheets.ErrTabCollision) {
			return s, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return s, fmt.Errorf("failed to build roster: %w", err)
	}

	rc := reconcile.New(w.cfg, r, w.sink.Logger("reconcile"))
	w.logger.Printf("Processing %d queue entries from %q", len(entries), w.cfg.Queue.Sheet)

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			w.logger.Printf("Run interrupted after %d of %d entries: %v", s.Total, len(entries), err)
			s.Elapsed = time.Since(s.Started)
			return s, err
		}
		s.Total++

		if e.Synced {
			s.Skipped++
			continue
		}

		if !e.Timestamp.IsZero() {
			w.logger.Printf("Row %d: %s -> %s, requested %s", e.Row, e.FullName, e.NewCoachTag,
				e.Timestamp.Format("2006-01-02 15:04"))
		}
		res := rc.Reconcile(ctx, e)
		if res.Synced() {
			res = w.markSynced(ctx, e, res)
		}
		w.tally(&s, res)
		w.record(ctx, e, res)
	}

	s.Elapsed = time.Since(s.Started)
	w.logger.Printf("Sync complete: %s (%v)", s, s.Elapsed.Round(time.Millisecond))
	return s, nil
}

// markSynced writes the synced marker for e. When the marker cannot be
// written the entry stays pending; the roster edits already made are kept
// and the next run sees the client in place.
func (w *Walker) markSynced(ctx context.Context, e reconcile.Entry, res reconcile.Result) reconcile.Result {
	q := w.cfg.Queue
	if err := w.store.SetCell(ctx, q.Sheet, e.Row, q.SyncedColumn, q.SyncedMarker); err != nil {
		w.logger.Printf("WARNING: Failed to mark row %d synced: %v", e.Row, err)
		res.Outcome = reconcile.Failed
		res.Reason = reconcile.ReasonWriteError
		res.Err = fmt.Errorf("failed to mark row %d synced: %w", e.Row, err)
		return res
	}
	w.logger.Printf("Row %d synced: %s -> %s (%s)", e.Row, res.Client, res.NewCoach, res.Outcome)
	return res
}

func (w *Walker) tally(s *Summary, res reconcile.Result) {
	s.Added += res.Added
	s.Removed += res.Removed
	s.Warnings += len(res.Warnings)

	switch {
	case res.Synced():
		s.Synced++
	case res.Reason == reconcile.ReasonWriteError:
		s.Failed++
		s.Failures = append(s.Failures, res)
	default:
		s.Invalid++
		s.Failures = append(s.Failures, res)
	}
}

func (w *Walker) record(ctx context.Context, e reconcile.Entry, res reconcile.Result) {
	if w.recorder == nil {
		return
	}
	if err := w.recorder.Record(ctx, e, res); err != nil {
		w.logger.Printf("WARNING: Failed to record row %d: %v", e.Row, err)
	}
}
