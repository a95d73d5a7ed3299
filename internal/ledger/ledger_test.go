package ledger

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lhn-coaching/coachsync/internal/queue"
	"github.com/lhn-coaching/coachsync/internal/reconcile"
)

// openTestDB opens a ledger in a temporary directory.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "ledger.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// beginRun starts a run and fails the test on error.
func beginRun(t *testing.T, db *DB) string {
	t.Helper()
	id, err := db.BeginRun(context.Background(), "roster.xlsx")
	if err != nil {
		t.Fatalf("BeginRun() failed: %v", err)
	}
	return id
}

// TestOpen_CreatesSchema tests that Open creates both tables
func TestOpen_CreatesSchema(t *testing.T) {
	db := openTestDB(t)

	for _, table := range []string{"runs", "entries"} {
		var count int
		err := db.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}

	if err := db.InitSchema(context.Background()); err != nil {
		t.Errorf("Second InitSchema() failed: %v", err)
	}
}

// TestInitSchema_AddsRequestColumns tests upgrading a ledger created before
// request times were recorded
func TestInitSchema_AddsRequestColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	_, err = conn.Exec(`CREATE TABLE entries (
		run_id TEXT NOT NULL, queue_row INTEGER NOT NULL, client TEXT NOT NULL,
		new_coach_tag TEXT NOT NULL, old_coach TEXT, new_coach TEXT,
		outcome TEXT NOT NULL, reason TEXT, added INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0, error TEXT, recorded_at TEXT NOT NULL)`)
	if err != nil {
		t.Fatalf("Failed to create old table: %v", err)
	}
	conn.Close()

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	id := beginRun(t, db)
	e := reconcile.Entry{Row: 2, FullName: "Jane Smith", NewCoachTag: "Coach: A", RawTimestamp: "not a date"}
	if err := db.RecordEntry(context.Background(), id, e, reconcile.Result{Outcome: reconcile.Moved}); err != nil {
		t.Fatalf("RecordEntry() on upgraded ledger failed: %v", err)
	}
}

// TestClose_Twice tests that Close is idempotent
func TestClose_Twice(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("First Close() failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("Second Close() failed: %v", err)
	}
}

// TestRunLifecycle tests begin, record and finish of a run
func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	id := beginRun(t, db)
	if id == "" {
		t.Fatal("BeginRun() returned an empty ID")
	}

	requested := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	rec := db.Recorder(id)
	err := rec.Record(ctx,
		reconcile.Entry{Row: 3, FullName: "Jane Smith", NewCoachTag: "Coach: A",
			Timestamp: requested, RawTimestamp: "10/14/2026 09:30:00"},
		reconcile.Result{Outcome: reconcile.Moved, OldCoach: "Coach: B", NewCoach: "Coach: A", Added: 1, Removed: 1},
	)
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	err = rec.Record(ctx,
		reconcile.Entry{Row: 2, FullName: "", NewCoachTag: "Coach: A", RawTimestamp: "last tuesday-ish"},
		reconcile.Result{Outcome: reconcile.Failed, Reason: reconcile.ReasonInvalidRow, Err: errors.New("row 2: empty name")},
	)
	if err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	started := time.Now().Add(-time.Second)
	summary := queue.Summary{Total: 3, Synced: 1, Skipped: 1, Invalid: 1, Added: 1, Removed: 1, Started: started, Elapsed: time.Second}
	if err := db.FinishRun(ctx, id, summary, nil); err != nil {
		t.Fatalf("FinishRun() failed: %v", err)
	}

	run, err := db.FindRun(ctx, id)
	if err != nil {
		t.Fatalf("FindRun() failed: %v", err)
	}
	if run.Status != StatusCompleted {
		t.Errorf("Status = %q, want %q", run.Status, StatusCompleted)
	}
	if run.Workbook != "roster.xlsx" {
		t.Errorf("Workbook = %q, want %q", run.Workbook, "roster.xlsx")
	}
	if run.Total != 3 || run.Synced != 1 || run.Invalid != 1 {
		t.Errorf("counts = total %d synced %d invalid %d, want 3/1/1", run.Total, run.Synced, run.Invalid)
	}
	if run.Error != "" {
		t.Errorf("Error = %q, want empty", run.Error)
	}
	if got := run.Duration().Round(time.Millisecond); got != time.Second {
		t.Errorf("Duration() = %v, want 1s", got)
	}

	entries, err := db.Entries(ctx, id)
	if err != nil {
		t.Fatalf("Entries() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Entries() returned %d entries, want 2", len(entries))
	}

	invalid := entries[0]
	if invalid.Row != 2 || invalid.Outcome != "failed" || invalid.Reason != "invalid-row" {
		t.Errorf("entries[0] = row %d %s/%s, want row 2 failed/invalid-row", invalid.Row, invalid.Outcome, invalid.Reason)
	}
	if invalid.Error != "row 2: empty name" {
		t.Errorf("entries[0].Error = %q", invalid.Error)
	}
	if !invalid.RequestedAt.IsZero() {
		t.Errorf("entries[0].RequestedAt = %v, want zero", invalid.RequestedAt)
	}
	if got := invalid.Requested(time.DateTime); got != "last tuesday-ish" {
		t.Errorf("entries[0].Requested() = %q, want the raw cell", got)
	}

	moved := entries[1]
	if moved.Row != 3 || moved.Outcome != "moved" {
		t.Errorf("entries[1] = row %d %s, want row 3 moved", moved.Row, moved.Outcome)
	}
	if moved.OldCoach != "Coach: B" || moved.NewCoach != "Coach: A" {
		t.Errorf("entries[1] coaches = %q -> %q", moved.OldCoach, moved.NewCoach)
	}
	if moved.Reason != "" {
		t.Errorf("entries[1].Reason = %q, want empty", moved.Reason)
	}
	if !moved.RequestedAt.Equal(requested) {
		t.Errorf("entries[1].RequestedAt = %v, want %v", moved.RequestedAt, requested)
	}
	if moved.RequestedRaw != "10/14/2026 09:30:00" {
		t.Errorf("entries[1].RequestedRaw = %q", moved.RequestedRaw)
	}
	if moved.RecordedAt.IsZero() {
		t.Error("entries[1].RecordedAt is zero")
	}
}

// TestFinishRun_Status tests the status stored for each kind of run error
func TestFinishRun_Status(t *testing.T) {
	db := openTestDB(t)

	// The run's context is often the one that was cancelled.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		err  error
		want string
	}{
		{nil, StatusCompleted},
		{context.Canceled, StatusInterrupted},
		{errors.New("configuration error: column not found"), StatusFailed},
	}

	for _, tt := range tests {
		id := beginRun(t, db)
		if err := db.FinishRun(cancelled, id, queue.Summary{}, tt.err); err != nil {
			t.Fatalf("FinishRun(%v) failed: %v", tt.err, err)
		}

		run, err := db.FindRun(context.Background(), id)
		if err != nil {
			t.Fatalf("FindRun() failed: %v", err)
		}
		if run.Status != tt.want {
			t.Errorf("FinishRun(%v): Status = %q, want %q", tt.err, run.Status, tt.want)
		}
		if tt.err != nil && run.Error != tt.err.Error() {
			t.Errorf("FinishRun(%v): Error = %q", tt.err, run.Error)
		}
	}
}

// TestFinishRun_Unknown tests finishing a run that was never begun
func TestFinishRun_Unknown(t *testing.T) {
	db := openTestDB(t)
	err := db.FinishRun(context.Background(), "missing", queue.Summary{}, nil)
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("FinishRun() error = %v, want ErrRunNotFound", err)
	}
}

// TestRecentRuns_NewestFirst tests ordering and limit of RecentRuns
func TestRecentRuns_NewestFirst(t *testing.T) {
	db := openTestDB(t)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, beginRun(t, db))
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := db.RecentRuns(context.Background(), 2)
	if err != nil {
		t.Fatalf("RecentRuns() failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("RecentRuns(2) returned %d runs", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("RecentRuns() = %s, %s; want %s, %s", runs[0].ID, runs[1].ID, ids[2], ids[1])
	}
	if runs[0].Status != StatusRunning {
		t.Errorf("Status = %q, want %q", runs[0].Status, StatusRunning)
	}
	if d := runs[0].Duration(); d != 0 {
		t.Errorf("Duration() of an unfinished run = %v, want 0", d)
	}
}

// TestFindRun_Prefix tests lookup by a unique ID prefix
func TestFindRun_Prefix(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	id := beginRun(t, db)

	run, err := db.FindRun(ctx, id[:8])
	if err != nil {
		t.Fatalf("FindRun(prefix) failed: %v", err)
	}
	if run.ID != id {
		t.Errorf("FindRun(prefix) = %s, want %s", run.ID, id)
	}

	for _, missing := range []string{"zzzz", ""} {
		if _, err := db.FindRun(ctx, missing); !errors.Is(err, ErrRunNotFound) {
			t.Errorf("FindRun(%q) error = %v, want ErrRunNotFound", missing, err)
		}
	}
}
