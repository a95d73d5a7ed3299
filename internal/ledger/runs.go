package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lhn-coaching/coachsync/internal/queue"
	"github.com/lhn-coaching/coachsync/internal/reconcile"
)

// Run statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Run is one recorded sync run.
type Run struct {
	ID         string
	Workbook   string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time

	Total    int
	Synced   int
	Skipped  int
	Invalid  int
	Failed   int
	Added    int
	Removed  int
	Warnings int

	Error string
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Entry is one recorded queue entry of a run.
type Entry struct {
	RunID       string
	Row         int
	Client      string
	NewCoachTag string
	OldCoach    string
	NewCoach    string
	Outcome     string
	Reason      string
	Added       int
	Removed     int
	Error       string

	// RequestedAt is when the queue row was submitted; zero when its
	// timestamp could not be read. RequestedRaw is the cell as written.
	RequestedAt  time.Time
	RequestedRaw string

	RecordedAt time.Time
}

// Requested returns the request time for display: the parsed time in
// layout, else the raw cell text.
func (e Entry) Requested(layout string) string {
	if !e.RequestedAt.IsZero() {
		return e.RequestedAt.Local().Format(layout)
	}
	return e.RequestedRaw
}

// BeginRun records the start of a run against workbook and returns its ID.
func (db *DB) BeginRun(ctx context.Context, workbook string) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO runs (id, workbook, status, started_at) VALUES (?, ?, ?, ?)`,
		id, workbook, StatusRunning, timeToNullString(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	return id, nil
}

// FinishRun stores the summary of a run. runErr is the error the run ended
// with, if any; context cancellation marks the run interrupted.
func (db *DB) FinishRun(ctx context.Context, runID string, s queue.Summary, runErr error) error {
	status := StatusCompleted
	switch {
	case errors.Is(runErr, context.Canceled), errors.Is(runErr, context.DeadlineExceeded):
		status = StatusInterrupted
	case runErr != nil:
		status = StatusFailed
	}

	finished := s.Started.Add(s.Elapsed)
	if s.Started.IsZero() {
		finished = time.Now()
	}

	// The run's own context may be the one that was cancelled.
	ctx = context.WithoutCancel(ctx)

	res, err := db.conn.ExecContext(ctx, `
	UPDATE runs SET
		status = ?, started_at = COALESCE(?, started_at), finished_at = ?,
		total = ?, synced = ?, skipped = ?, invalid = ?, failed = ?,
		added = ?, removed = ?, warnings = ?, error = ?
	WHERE id = ?`,
		status, timeToNullString(s.Started), timeToNullString(finished),
		s.Total, s.Synced, s.Skipped, s.Invalid, s.Failed,
		s.Added, s.Removed, s.Warnings, errorString(runErr),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// RecordEntry stores the result of one queue entry of run runID.
func (db *DB) RecordEntry(ctx context.Context, runID string, e reconcile.Entry, res reconcile.Result) error {
	var reason sql.NullString
	if res.Reason != "" {
		reason = sql.NullString{String: string(res.Reason), Valid: true}
	}

	_, err := db.conn.ExecContext(ctx, `
	INSERT INTO entries (
		run_id, queue_row, client, new_coach_tag, old_coach, new_coach,
		outcome, reason, added, removed, error,
		requested_at, requested_raw, recorded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, e.Row, e.FullName, e.NewCoachTag, res.OldCoach, res.NewCoach,
		res.Outcome.String(), reason, res.Added, res.Removed, errorString(res.Err),
		timeToNullString(e.Timestamp), e.RawTimestamp, timeToNullString(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to record row %d of run %s: %w", e.Row, runID, err)
	}
	return nil
}

// Recorder returns a queue.Recorder that writes entries to run runID.
func (db *DB) Recorder(runID string) queue.Recorder {
	return &runRecorder{db: db, runID: runID}
}

type runRecorder struct {
	db    *DB
	runID string
}

func (r *runRecorder) Record(ctx context.Context, e reconcile.Entry, res reconcile.Result) error {
	return r.db.RecordEntry(ctx, r.runID, e, res)
}

const runColumns = `id, workbook, status, started_at, finished_at,
	total, synced, skipped, invalid, failed, added, removed, warnings, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		r        Run
		started  sql.NullString
		finished sql.NullString
		errText  sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Workbook, &r.Status, &started, &finished,
		&r.Total, &r.Synced, &r.Skipped, &r.Invalid, &r.Failed,
		&r.Added, &r.Removed, &r.Warnings, &errText); err != nil {
		return r, err
	}

	var err error
	if r.StartedAt, err = nullStringToTime(started); err != nil {
		return r, fmt.Errorf("invalid started_at for run %s: %w", r.ID, err)
	}
	if r.FinishedAt, err = nullStringToTime(finished); err != nil {
		return r, fmt.Errorf("invalid finished_at for run %s: %w", r.ID, err)
	}
	r.Error = errText.String
	return r, nil
}

// RecentRuns returns up to n runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, n int) ([]Run, error) {
	if n <= 0 {
		n = 10
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}

// FindRun returns the run whose ID equals or starts with id.
func (db *DB) FindRun(ctx context.Context, id string) (Run, error) {
	if id == "" {
		return Run{}, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? || '%' LIMIT 2`, id, id)
	if err != nil {
		return Run{}, fmt.Errorf("failed to query run %s: %w", id, err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return Run{}, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.ID == id {
			return r, nil
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return Run{}, fmt.Errorf("failed to read run %s: %w", id, err)
	}

	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %s", ErrAmbiguousRun, id)
	}
}

// Entries returns the recorded entries of run runID in queue order.
func (db *DB) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := db.conn.QueryContext(ctx, `
	SELECT run_id, queue_row, client, new_coach_tag, old_coach, new_coach,
		outcome, reason, added, removed, error,
		requested_at, requested_raw, recorded_at
	FROM entries WHERE run_id = ? ORDER BY queue_row, recorded_at`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries of run %s: %w", runID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                          Entry
			oldCoach, newCoach, reason sql.NullString
			errText, recorded          sql.NullString
			requested, requestedRaw    sql.NullString
		)
		if err := rows.Scan(&e.RunID, &e.Row, &e.Client, &e.NewCoachTag, &oldCoach, &newCoach,
			&e.Outcome, &reason, &e.Added, &e.Removed, &errText,
			&requested, &requestedRaw, &recorded); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		e.OldCoach = oldCoach.String
		e.NewCoach = newCoach.String
		e.Reason = reason.String
		e.Error = errText.String
		e.RequestedRaw = requestedRaw.String
		if e.RequestedAt, err = nullStringToTime(requested); err != nil {
			return nil, fmt.Errorf("invalid requested_at in run %s: %w", runID, err)
		}
		if e.RecordedAt, err = nullStringToTime(recorded); err != nil {
			return nil, fmt.Errorf("invalid recorded_at in run %s: %w", runID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read entries: %w", err)
	}
	return entries, nil
}
