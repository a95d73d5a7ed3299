package sheets

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// createTestWorkbook writes a workbook with a single roster sheet.
func createTestWorkbook(t *testing.T, rows ...[]string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, CreateXLSX(path, []SheetLayout{
		{Name: "Coach: A", Header: rosterHeader},
		{Name: "Sync Queue", Header: []string{"Timestamp", "Full Name", "New Tag", "Synced"}},
	}))

	if len(rows) == 0 {
		return path
	}

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		values := append([]string(nil), r...)
		require.NoError(t, f.SetSheetRow(TabName("Coach: A"), cell, &values))
	}
	require.NoError(t, f.Save())
	return path
}

func TestXLSXListRows(t *testing.T) {
	path := createTestWorkbook(t,
		[]string{"Coach: A", "Jane Smith", "$125.00"},
		[]string{"Coach: A", "John Doe", "$125.00"},
	)

	s, err := OpenXLSX(path)
	require.NoError(t, err)
	defer s.Close()

	table, err := s.ListRows(context.Background(), "Coach: A")
	require.NoError(t, err)
	assert.Equal(t, rosterHeader, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 3, table.Rows[1].Index)
	assert.Equal(t, "John Doe", table.Get(table.Rows[1], "Client Name"))
	assert.Equal(t, []string{"Coach A", "Sync Queue"}, s.SheetNames())
}

func TestXLSXMutationsArePersisted(t *testing.T) {
	ctx := context.Background()
	path := createTestWorkbook(t,
		[]string{"Coach: A", "Jane Smith", "$125.00"},
		[]string{"Coach: A", "John Doe", "$125.00"},
	)

	s, err := OpenXLSX(path)
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(ctx, "Coach: A", 4, []string{"Coach: A", "Ann Lee", "$125.00"}))
	require.NoError(t, s.DeleteRow(ctx, "Coach: A", 2))
	require.NoError(t, s.WriteRow(ctx, "Sync Queue", 2, []string{"", "Ann Lee", "Coach: A"}))
	require.NoError(t, s.SetCell(ctx, "Sync Queue", 2, "Synced", "✅"))
	require.NoError(t, s.Close())

	reopened, err := OpenXLSX(path)
	require.NoError(t, err)
	defer reopened.Close()

	roster, err := reopened.ListRows(ctx, "Coach: A")
	require.NoError(t, err)
	require.Len(t, roster.Rows, 2)
	assert.Equal(t, "John Doe", roster.Get(roster.Rows[0], "Client Name"))
	assert.Equal(t, "Ann Lee", roster.Get(roster.Rows[1], "Client Name"))

	queue, err := reopened.ListRows(ctx, "Sync Queue")
	require.NoError(t, err)
	require.Len(t, queue.Rows, 1)
	assert.Equal(t, "✅", queue.Get(queue.Rows[0], "Synced"))
}

func TestXLSXRewriteRows(t *testing.T) {
	ctx := context.Background()
	path := createTestWorkbook(t,
		[]string{"Coach: A", "Jane Smith", "$125.00"},
		[]string{"Coach: A", "John Doe", "$125.00"},
		[]string{"Coach: A", "Ann Lee", "$125.00"},
	)

	s, err := OpenXLSX(path)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RewriteRows(ctx, "Coach: A", rosterHeader, [][]string{
		{"Coach: A", "Ann Lee", "$125.00"},
	}))

	table, err := s.ListRows(ctx, "Coach: A")
	require.NoError(t, err)
	assert.Equal(t, rosterHeader, table.Header)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "Ann Lee", table.Get(table.Rows[0], "Client Name"))
}

func TestXLSXErrors(t *testing.T) {
	ctx := context.Background()
	s, err := OpenXLSX(createTestWorkbook(t))
	require.NoError(t, err)

	_, err = s.ListRows(ctx, "Coach: Z")
	assert.ErrorIs(t, err, ErrSheetNotFound)

	err = s.SetCell(ctx, "Sync Queue", 2, "Missing", "x")
	assert.ErrorIs(t, err, ErrColumnNotFound)

	err = s.DeleteRow(ctx, "Coach: A", 2)
	assert.ErrorIs(t, err, ErrRowOutOfRange)

	require.NoError(t, s.Close())
	_, err = s.ListRows(ctx, "Coach: A")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpenXLSXMissingFile(t *testing.T) {
	_, err := OpenXLSX(filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}

func TestTabName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Sync Queue", "Sync Queue"},
		{"Coach: Olivia Hill", "Coach Olivia Hill"},
		{"Coach: A/B [old]", "Coach A B old"},
		{"Coach: Someone With A Very Long Name Indeed", "Coach Someone With A Very Long"},
	}

	for _, tt := range tests {
		got := TabName(tt.name)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, TabName(got))
		assert.LessOrEqual(t, len([]rune(got)), 31)
	}
}

func TestCheckTabNames(t *testing.T) {
	assert.NoError(t, CheckTabNames("Sync Queue", "Coach: A", "Coach: B", "Coach: A"))
	assert.ErrorIs(t, CheckTabNames("Coach: A", "Coach A"), ErrTabCollision)
	assert.ErrorIs(t, CheckTabNames("Coach: A", "coach a"), ErrTabCollision)
	assert.ErrorIs(t, CheckTabNames(
		"Coach: Someone With A Very Long Name",
		"Coach: Someone With A Very Long Surname",
	), ErrTabCollision)
}

func TestXLSXRefusesSecondNameForTab(t *testing.T) {
	ctx := context.Background()
	path := createTestWorkbook(t, []string{"Coach: A", "Jane Smith", "$250.00"})
	s, err := OpenXLSX(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.ListRows(ctx, "Coach: A")
	require.NoError(t, err)

	_, err = s.ListRows(ctx, "Coach A")
	assert.ErrorIs(t, err, ErrTabCollision)
	assert.False(t, IsTransient(err))

	err = s.DeleteRow(ctx, "Coach A", 2)
	assert.ErrorIs(t, err, ErrTabCollision)

	table, err := s.ListRows(ctx, "Coach: A")
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
}

func TestCreateXLSXRejectsSharedTabs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clash.xlsx")
	err := CreateXLSX(path, []SheetLayout{
		{Name: "Coach: A", Header: rosterHeader},
		{Name: "Coach A", Header: rosterHeader},
	})
	assert.ErrorIs(t, err, ErrTabCollision)
	assert.NoFileExists(t, path)
}

func TestXLSXOnSave(t *testing.T) {
	ctx := context.Background()
	s, err := OpenXLSX(createTestWorkbook(t))
	require.NoError(t, err)
	defer s.Close()

	var saves []fs.FileInfo
	s.OnSave(func(info fs.FileInfo) { saves = append(saves, info) })

	require.NoError(t, s.WriteRow(ctx, "Coach: A", 2, []string{"Coach: A", "Jane Smith", "$250.00"}))
	require.NoError(t, s.SetCell(ctx, "Coach: A", 2, "Coach's Pay Rate", "$125.00"))
	require.Len(t, saves, 2)

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, info.Size(), saves[1].Size())
	assert.True(t, info.ModTime().Equal(saves[1].ModTime()))
}
