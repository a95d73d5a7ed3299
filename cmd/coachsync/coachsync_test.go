package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhn-coaching/coachsync/internal/config"
	"github.com/lhn-coaching/coachsync/internal/ledger"
	"github.com/lhn-coaching/coachsync/internal/logging"
	"github.com/lhn-coaching/coachsync/internal/queue"
	"github.com/lhn-coaching/coachsync/internal/reconcile"
	"github.com/lhn-coaching/coachsync/internal/sheets"
)

func TestParseCoachLines(t *testing.T) {
	coaches, err := parseCoachLines("Coach: A | $250.00\n\n  Coach: B  \nCoach: C|125\n")
	require.NoError(t, err)
	assert.Equal(t, []config.Coach{
		{Sheet: "Coach: A", Pay: "$250.00"},
		{Sheet: "Coach: B"},
		{Sheet: "Coach: C", Pay: "125"},
	}, coaches)

	_, err = parseCoachLines(" | $100.00")
	assert.Error(t, err)

	_, err = parseCoachLines("\n  \n")
	assert.Error(t, err)
}

func TestFormatCoachLinesRoundTrip(t *testing.T) {
	coaches := config.Default().Coaches
	parsed, err := parseCoachLines(formatCoachLines(coaches))
	require.NoError(t, err)
	assert.Equal(t, coaches, parsed)
}

// testWorkbook creates a workbook for cfg holding the given queue rows and
// roster rows per coach sheet.
func testWorkbook(t *testing.T, cfg *config.Config, queueRows [][]string, rosters map[string][][]string) {
	t.Helper()

	require.NoError(t, sheets.CreateXLSX(cfg.Workbook, workbookLayout(cfg)))

	book, err := sheets.OpenXLSX(cfg.Workbook)
	require.NoError(t, err)
	defer book.Close()

	ctx := context.Background()
	for i, row := range queueRows {
		require.NoError(t, book.WriteRow(ctx, cfg.Queue.Sheet, sheets.HeaderRow+1+i, row))
	}
	for sheet, rows := range rosters {
		for i, row := range rows {
			require.NoError(t, book.WriteRow(ctx, sheet, sheets.HeaderRow+1+i, row))
		}
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Workbook = filepath.Join(dir, "coaching.xlsx")
	cfg.Ledger = filepath.Join(dir, ".coachsync", "ledger.db")
	cfg.Coaches = []config.Coach{
		{Sheet: "Coach: Olivia Hill", Pay: "$250.00"},
		{Sheet: "Coach: Leah Davis", Pay: "$125.00"},
	}
	return cfg
}

func readSheet(t *testing.T, path, sheet string) *sheets.Table {
	t.Helper()
	book, err := sheets.OpenXLSX(path)
	require.NoError(t, err)
	defer book.Close()

	table, err := book.ListRows(context.Background(), sheet)
	require.NoError(t, err)
	return table
}

func TestSyncOnceAgainstWorkbook(t *testing.T) {
	cfg := testConfig(t)
	testWorkbook(t, cfg,
		[][]string{
			{"10/15/2026 09:00:00", "Jane Smith", "Coach: Olivia Hill", ""},
			{"10/15/2026 09:05:00", "", "Coach: Olivia Hill", ""},
		},
		map[string][][]string{
			"Coach: Leah Davis": {{"Coach: Leah Davis", "Jane Smith", "$125.00"}},
		},
	)

	summary, err := syncOnce(context.Background(), cfg, logging.Discard(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Synced)
	assert.Equal(t, 1, summary.Invalid)

	olivia := readSheet(t, cfg.Workbook, "Coach: Olivia Hill")
	require.Len(t, olivia.Rows, 1)
	assert.Equal(t, "Jane Smith", olivia.Get(olivia.Rows[0], "Client Name"))
	assert.Equal(t, "$250.00", olivia.Get(olivia.Rows[0], "Coach's Pay Rate"))
	assert.Empty(t, readSheet(t, cfg.Workbook, "Coach: Leah Davis").Rows)

	q := readSheet(t, cfg.Workbook, "Sync Queue")
	assert.Equal(t, "✅", q.Get(q.Rows[0], "Synced"))
	assert.Empty(t, q.Get(q.Rows[1], "Synced"))

	l, err := ledger.Open(cfg.LedgerPath())
	require.NoError(t, err)
	defer l.Close()

	runs, err := l.RecentRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, ledger.StatusCompleted, runs[0].Status)
	assert.Equal(t, 1, runs[0].Synced)

	entries, err := l.Entries(context.Background(), runs[0].ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "Jane Smith", entries[0].Client)
	assert.True(t, entries[0].RequestedAt.Equal(time.Date(2026, 10, 15, 9, 0, 0, 0, time.Local)),
		"requested at %v", entries[0].RequestedAt)
	assert.Equal(t, "10/15/2026 09:00:00", entries[0].RequestedRaw)
	assert.Equal(t, "2026-10-15 09:05", entries[1].Requested("2006-01-02 15:04"))
}

func TestPendingTable(t *testing.T) {
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.Local)
	table := pendingTable([]reconcile.Entry{
		{Row: 4, FullName: "Jane Smith", NewCoachTag: "Coach: A", Timestamp: now.Add(-3 * time.Hour)},
		{Row: 7, FullName: "Ann Lee", NewCoachTag: "Coach: B", RawTimestamp: "sometime"},
	}, now)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"4", "Jane Smith", "Coach: A", "2026-10-15 09:00"}, table.Rows[0][:4])
	assert.Contains(t, table.Rows[0][4], "3 hours ago")
	assert.Equal(t, "sometime", table.Rows[1][3])
}

func TestSyncOnceDryRunWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	testWorkbook(t, cfg,
		[][]string{{"", "Jane Smith", "Coach: Olivia Hill", ""}},
		map[string][][]string{
			"Coach: Leah Davis": {{"Coach: Leah Davis", "Jane Smith", "$125.00"}},
		},
	)

	summary, err := syncOnce(context.Background(), cfg, logging.Discard(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Synced)
	assert.Equal(t, 1, summary.Added)

	assert.Empty(t, readSheet(t, cfg.Workbook, "Coach: Olivia Hill").Rows)
	assert.Len(t, readSheet(t, cfg.Workbook, "Coach: Leah Davis").Rows, 1)
	q := readSheet(t, cfg.Workbook, "Sync Queue")
	assert.Empty(t, q.Get(q.Rows[0], "Synced"))
	assert.NoFileExists(t, cfg.LedgerPath())
}

func TestSyncOnceMissingCoachSheet(t *testing.T) {
	cfg := testConfig(t)
	testWorkbook(t, cfg, nil, nil)
	cfg.Coaches = append(cfg.Coaches, config.Coach{Sheet: "Coach: Nobody"})

	_, err := syncOnce(context.Background(), cfg, logging.Discard(), false)
	assert.ErrorIs(t, err, queue.ErrConfiguration)

	_, err = syncOnce(context.Background(), cfg, logging.Discard(), true)
	assert.ErrorIs(t, err, queue.ErrConfiguration)
}

func TestSyncOnceRefusesSheetsSharingATab(t *testing.T) {
	cfg := testConfig(t)
	cfg.Coaches = []config.Coach{{Sheet: "Coach: A", Pay: "$250.00"}}
	testWorkbook(t, cfg,
		[][]string{{"", "Jane Smith", "Coach: A", ""}},
		map[string][][]string{
			"Coach: A": {{"Coach: A", "Jane Smith", "$250.00"}},
		},
	)
	// "Coach A" is stored in the same tab as "Coach: A".
	cfg.Coaches = append(cfg.Coaches, config.Coach{Sheet: "Coach A"})
	require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)

	for _, dryRun := range []bool{false, true} {
		summary, err := syncOnce(context.Background(), cfg, logging.Discard(), dryRun)
		assert.ErrorIs(t, err, queue.ErrConfiguration)
		assert.ErrorIs(t, err, sheets.ErrTabCollision)
		assert.Zero(t, summary.Synced)
	}

	roster := readSheet(t, cfg.Workbook, "Coach: A")
	require.Len(t, roster.Rows, 1)
	assert.Equal(t, "Jane Smith", roster.Get(roster.Rows[0], "Client Name"))
	q := readSheet(t, cfg.Workbook, "Sync Queue")
	assert.Empty(t, q.Get(q.Rows[0], "Synced"))
}
