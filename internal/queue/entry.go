package queue

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/xuri/excelize/v2"

	"github.com/lhn-coaching/coachsync/internal/config"
	"github.com/lhn-coaching/coachsync/internal/reconcile"
	"github.com/lhn-coaching/coachsync/internal/sheets"
)

// ErrConfiguration marks errors that abort a run before any entry is
// processed: a missing queue sheet or column, or an unusable coach sheet.
var ErrConfiguration = errors.New("configuration error")

// checkboxTrue is what a ticked checkbox cell reads as.
const checkboxTrue = "TRUE"

// IsSynced reports whether a synced-column cell marks its row as processed.
func IsSynced(cell, marker string) bool {
	v := strings.TrimSpace(cell)
	if v == "" {
		return false
	}
	return v == strings.TrimSpace(marker) || strings.EqualFold(v, checkboxTrue)
}

// timestampLayouts are tried in order before natural-language parsing.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"1/2/06 15:04",
	"01-02-06",
	"Jan 2, 2006 3:04 PM",
	"January 2, 2006",
}

// ParseTimestamp reads a queue timestamp cell. It accepts the layouts
// spreadsheets commonly produce, Excel date serials, and phrases such as
// "yesterday 5pm" relative to now. It reports false when raw holds no
// recognizable time.
func ParseTimestamp(raw string, now time.Time) (time.Time, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, now.Location()); err == nil {
			return t, true
		}
	}

	if serial, err := strconv.ParseFloat(v, 64); err == nil {
		if serial <= 0 {
			return time.Time{}, false
		}
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(v, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}

// columns holds the resolved positions of the queue columns.
type columns struct {
	name      int
	tag       int
	timestamp int
	synced    int
}

func resolveColumns(t *sheets.Table, cfg config.QueueConfig) (columns, error) {
	cols := columns{
		name:      t.Column(cfg.NameColumn),
		tag:       t.Column(cfg.TagColumn),
		timestamp: t.Column(cfg.TimestampColumn),
		synced:    t.Column(cfg.SyncedColumn),
	}

	for _, c := range []struct {
		pos   int
		label string
	}{
		{cols.name, cfg.NameColumn},
		{cols.tag, cfg.TagColumn},
		{cols.synced, cfg.SyncedColumn},
	} {
		if c.pos < 0 {
			return cols, fmt.Errorf("%w: queue sheet %q: %w: %q", ErrConfiguration, cfg.Sheet, sheets.ErrColumnNotFound, c.label)
		}
	}
	return cols, nil
}

// ReadEntries reads every non-blank queue row as an entry, in sheet order.
// The timestamp column is optional.
func ReadEntries(ctx context.Context, store sheets.Store, cfg *config.Config) ([]reconcile.Entry, error) {
	t, err := store.ListRows(ctx, cfg.Queue.Sheet)
	if err != nil {
		if errors.Is(err, sheets.ErrSheetNotFound) || errors.Is(err, sheets.ErrTabCollision) {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return nil, fmt.Errorf("failed to read queue sheet %q: %w", cfg.Queue.Sheet, err)
	}

	cols, err := resolveColumns(t, cfg.Queue)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]reconcile.Entry, 0, len(t.Rows))
	for _, row := range t.Rows {
		if row.IsBlank() {
			continue
		}
		e := reconcile.Entry{
			Row:          row.Index,
			FullName:     strings.TrimSpace(row.Cell(cols.name)),
			NewCoachTag:  strings.TrimSpace(row.Cell(cols.tag)),
			RawTimestamp: strings.TrimSpace(row.Cell(cols.timestamp)),
			Synced:       IsSynced(row.Cell(cols.synced), cfg.Queue.SyncedMarker),
		}
		if ts, ok := ParseTimestamp(e.RawTimestamp, now); ok {
			e.Timestamp = ts
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Pending returns the unsynced entries, oldest request first. Entries
// without a readable timestamp come last, in sheet order.
func Pending(entries []reconcile.Entry) []reconcile.Entry {
	var pending []reconcile.Entry
	for _, e := range entries {
		if !e.Synced {
			pending = append(pending, e)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i].Timestamp, pending[j].Timestamp
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})
	return pending
}
