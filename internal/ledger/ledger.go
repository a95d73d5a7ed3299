// Package ledger keeps a local history of sync runs in SQLite.
//
// The workbook stays the source of truth; the ledger only records what each
// run did so that "coachsync history" can answer when a client was moved and
// why an entry keeps failing.
//
// Architecture:
//   - Database file: .coachsync/ledger.db (configurable, "off" disables it)
//   - WAL mode: history can be read while a watch-mode run is writing
//   - Schema: runs, entries
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrRunNotFound is returned when no run matches a run ID.
var ErrRunNotFound = errors.New("run not found")

// ErrAmbiguousRun is returned when a run ID prefix matches several runs.
var ErrAmbiguousRun = errors.New("ambiguous run id")

// DB is the run ledger.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the ledger at path and initializes its
// schema.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	l, err := ledger.Open(".coachsync/ledger.db")
//	if err != nil {
//	    return err
//	}
//	defer l.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ledger: %w", err)
	}

	// A single writer at a time; the CLI never needs more.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, path: path}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.conn.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := db.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close checkpoints the WAL and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint ledger WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	db.conn = nil
	return nil
}

// InitSchema creates the ledger tables if they don't exist. It is
// idempotent.
func (db *DB) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		workbook TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',  -- running, completed, failed, interrupted
		started_at TEXT NOT NULL,
		finished_at TEXT,
		total INTEGER NOT NULL DEFAULT 0,
		synced INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		invalid INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		added INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		warnings INTEGER NOT NULL DEFAULT 0,
		error TEXT
	);

	CREATE TABLE IF NOT EXISTS entries (
		run_id TEXT NOT NULL,
		queue_row INTEGER NOT NULL,
		client TEXT NOT NULL,
		new_coach_tag TEXT NOT NULL,
		old_coach TEXT,
		new_coach TEXT,
		outcome TEXT NOT NULL,
		reason TEXT,
		added INTEGER NOT NULL DEFAULT 0,
		removed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		requested_at TEXT,   -- parsed queue timestamp
		requested_raw TEXT,  -- queue timestamp as written in the sheet
		recorded_at TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_entries_run ON entries(run_id);
	CREATE INDEX IF NOT EXISTS idx_entries_client ON entries(client);
	`

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize ledger schema: %w", err)
	}
	return db.addMissingColumns(ctx, "entries", map[string]string{
		"requested_at":  "TEXT",
		"requested_raw": "TEXT",
	})
}

// addMissingColumns adds columns introduced after a ledger was created.
func (db *DB) addMissingColumns(ctx context.Context, table string, columns map[string]string) error {
	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf("SELECT name FROM pragma_table_info('%s')", table))
	if err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	existing := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to inspect table %s: %w", table, err)
		}
		existing[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect table %s: %w", table, err)
	}

	for name, typ := range columns {
		if existing[name] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, name, typ)
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", table, name, err)
		}
	}
	return nil
}

// timeLayout is fixed-width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timeToNullString(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func nullStringToTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s.String)
}

func errorString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
