package sheets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// XLSXStore is a Store backed by a workbook file on disk.
//
// Every mutating call saves the workbook before returning, so work completed
// before an interruption is never lost. Reads are served from the open
// workbook; edits made to the file by other programs while the store is open
// are not observed.
//
// Sheets are addressed by their logical names (as configured); the tab
// holding each sheet is named TabName(name).
type XLSXStore struct {
	mu   sync.Mutex
	path string
	file *excelize.File

	// claims maps each tab key used so far to the sheet name that used it.
	claims map[string]string
	onSave func(fs.FileInfo)
}

var (
	_ Store      = (*XLSXStore)(nil)
	_ RowDeleter = (*XLSXStore)(nil)
)

// OpenXLSX opens an existing workbook.
//
// The caller MUST call Close() when done.
func OpenXLSX(path string) (*XLSXStore, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	return &XLSXStore{path: path, file: f, claims: make(map[string]string)}, nil
}

// OnSave registers fn to be called with the workbook's file info after
// every save.
func (s *XLSXStore) OnSave(fn func(fs.FileInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSave = fn
}

// maxTabName is the longest sheet name Excel accepts.
const maxTabName = 31

// TabName returns the workbook tab used for a logical sheet name. Excel
// rejects the characters : \ / ? * [ ] in tab names and limits them to 31
// characters, so "Coach: Olivia Hill" lives in the tab "Coach Olivia Hill".
// TabName is idempotent.
func TabName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return ' '
		}
		return r
	}, name)
	cleaned = strings.Join(strings.Fields(cleaned), " ")

	if r := []rune(cleaned); len(r) > maxTabName {
		cleaned = strings.TrimSpace(string(r[:maxTabName]))
	}
	return cleaned
}

// tabKey is the identity of a tab. Excel compares tab names without case.
func tabKey(name string) string {
	return strings.ToLower(TabName(name))
}

// CheckTabNames returns an error wrapping ErrTabCollision when two of names
// differ but resolve to the same workbook tab.
func CheckTabNames(names ...string) error {
	owners := make(map[string]string, len(names))
	for _, name := range names {
		key := tabKey(name)
		if prev, ok := owners[key]; ok && prev != name {
			return fmt.Errorf("%w: %q and %q both map to tab %q", ErrTabCollision, prev, name, TabName(name))
		}
		owners[key] = name
	}
	return nil
}

// SheetLayout describes a sheet to create with CreateXLSX.
type SheetLayout struct {
	Name   string
	Header []string
}

// CreateXLSX writes a new workbook containing the given sheets, each holding
// only its header row. An existing file at path is overwritten.
func CreateXLSX(path string, layout []SheetLayout) error {
	if len(layout) == 0 {
		return fmt.Errorf("workbook layout is empty")
	}
	names := make([]string, len(layout))
	for i, sl := range layout {
		names[i] = sl.Name
	}
	if err := CheckTabNames(names...); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	for i, sl := range layout {
		tab := TabName(sl.Name)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, tab); err != nil {
				return fmt.Errorf("failed to name sheet %q: %w", sl.Name, err)
			}
		} else if _, err := f.NewSheet(tab); err != nil {
			return fmt.Errorf("failed to create sheet %q: %w", sl.Name, err)
		}

		header := append([]string(nil), sl.Header...)
		if err := f.SetSheetRow(tab, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header for %q: %w", sl.Name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// Path returns the workbook file path.
func (s *XLSXStore) Path() string {
	return s.path
}

// SheetNames returns the tab names of all sheets in workbook order.
func (s *XLSXStore) SheetNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	return s.file.GetSheetList()
}

// Close releases the workbook. It does not save; every mutation has already
// been persisted.
func (s *XLSXStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("failed to close workbook: %w", err)
	}
	return nil
}

// ListRows implements Store.ListRows.
func (s *XLSXStore) ListRows(ctx context.Context, sheet string) (*Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readSheet(ctx, sheet)
	if err != nil {
		return nil, err
	}

	t := &Table{Sheet: sheet}
	if len(rows) == 0 {
		return t, nil
	}
	t.Header = rows[0]

	last := len(rows)
	for last > 1 && (Row{Cells: rows[last-1]}).IsBlank() {
		last--
	}
	for i := 1; i < last; i++ {
		t.Rows = append(t.Rows, Row{Index: i + 1, Cells: rows[i]})
	}
	return t, nil
}

// WriteRow implements Store.WriteRow.
func (s *XLSXStore) WriteRow(ctx context.Context, sheet string, row int, cells []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkSheet(ctx, sheet); err != nil {
		return err
	}
	if row <= HeaderRow {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}

	if err := s.writeRow(sheet, row, cells); err != nil {
		return err
	}
	return s.save()
}

// RewriteRows implements Store.RewriteRows.
func (s *XLSXStore) RewriteRows(ctx context.Context, sheet string, header []string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readSheet(ctx, sheet)
	if err != nil {
		return err
	}

	// Remove bottom-up so row numbers stay valid while deleting.
	for r := len(existing); r >= 1; r-- {
		if err := s.file.RemoveRow(TabName(sheet), r); err != nil {
			return fmt.Errorf("failed to clear row %d of %q: %w", r, sheet, err)
		}
	}

	if err := s.writeRow(sheet, HeaderRow, header); err != nil {
		return err
	}
	for i, cells := range rows {
		if err := s.writeRow(sheet, HeaderRow+1+i, cells); err != nil {
			return err
		}
	}
	return s.save()
}

// DeleteRow implements RowDeleter.DeleteRow.
func (s *XLSXStore) DeleteRow(ctx context.Context, sheet string, row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readSheet(ctx, sheet)
	if err != nil {
		return err
	}
	if row <= HeaderRow || row > len(existing) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}

	if err := s.file.RemoveRow(TabName(sheet), row); err != nil {
		return fmt.Errorf("failed to delete row %d of %q: %w", row, sheet, err)
	}
	return s.save()
}

// SetCell implements Store.SetCell.
func (s *XLSXStore) SetCell(ctx context.Context, sheet string, row int, column, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.readSheet(ctx, sheet)
	if err != nil {
		return err
	}
	if row <= HeaderRow {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}

	var header []string
	if len(existing) > 0 {
		header = existing[0]
	}
	col := ColumnIndex(header, column)
	if col < 0 {
		return fmt.Errorf("%w: %q in sheet %q", ErrColumnNotFound, column, sheet)
	}

	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return fmt.Errorf("invalid cell for row %d column %q: %w", row, column, err)
	}
	if err := s.file.SetCellStr(TabName(sheet), cell, value); err != nil {
		return fmt.Errorf("failed to set %s!%s: %w", sheet, cell, err)
	}
	return s.save()
}

// checkSheet verifies the store is open and the sheet exists.
// Caller must hold s.mu.
func (s *XLSXStore) checkSheet(ctx context.Context, sheet string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.file == nil {
		return ErrClosed
	}
	key := tabKey(sheet)
	if prev, ok := s.claims[key]; ok && prev != sheet {
		return fmt.Errorf("%w: %q and %q both map to tab %q", ErrTabCollision, prev, sheet, TabName(sheet))
	}
	idx, err := s.file.GetSheetIndex(TabName(sheet))
	if err != nil {
		return fmt.Errorf("failed to look up sheet %q: %w", sheet, err)
	}
	if idx < 0 {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
	}
	s.claims[key] = sheet
	return nil
}

// readSheet returns all rows of the sheet including the header.
// Caller must hold s.mu.
func (s *XLSXStore) readSheet(ctx context.Context, sheet string) ([][]string, error) {
	if err := s.checkSheet(ctx, sheet); err != nil {
		return nil, err
	}
	rows, err := s.file.GetRows(TabName(sheet))
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// writeRow writes cells starting at column A of row. Caller must hold s.mu.
func (s *XLSXStore) writeRow(sheet string, row int, cells []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("invalid row %d: %w", row, err)
	}
	values := make([]interface{}, len(cells))
	for i, c := range cells {
		values[i] = c
	}
	if err := s.file.SetSheetRow(TabName(sheet), cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %q: %w", row, sheet, err)
	}
	return nil
}

// save persists the workbook. Caller must hold s.mu.
func (s *XLSXStore) save() error {
	if err := s.file.Save(); err != nil {
		// Spreadsheet applications lock open files on some platforms.
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("workbook %s is locked: %w", s.path, err)
		}
		return fmt.Errorf("failed to save workbook %s: %w", s.path, err)
	}
	if s.onSave != nil {
		if info, err := os.Stat(s.path); err == nil {
			s.onSave(info)
		}
	}
	return nil
}
