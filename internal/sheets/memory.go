package sheets

import (
	"context"
	"fmt"
	"sync"
)

// Op names a store operation for call counting and fault injection.
type Op string

const (
	OpListRows    Op = "list_rows"
	OpWriteRow    Op = "write_row"
	OpRewriteRows Op = "rewrite_rows"
	OpDeleteRow   Op = "delete_row"
	OpSetCell     Op = "set_cell"
)

type memSheet struct {
	header []string
	rows   [][]string // rows[0] is sheet row 2
}

type fault struct {
	remaining int
	err       error
}

// MemStore is an in-memory workbook. It is safe for concurrent use.
type MemStore struct {
	mu     sync.Mutex
	sheets map[string]*memSheet
	order  []string
	calls  map[Op]int
	faults map[string]*fault
}

var (
	_ Store      = (*MemStore)(nil)
	_ RowDeleter = (*MemStore)(nil)
)

// NewMemStore creates an empty in-memory workbook.
func NewMemStore() *MemStore {
	return &MemStore{
		sheets: make(map[string]*memSheet),
		calls:  make(map[Op]int),
		faults: make(map[string]*fault),
	}
}

// AddSheet creates (or replaces) a sheet with the given header and rows.
func (m *MemStore) AddSheet(name string, header []string, rows ...[]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sheets[name]; !ok {
		m.order = append(m.order, name)
	}
	s := &memSheet{header: append([]string(nil), header...)}
	for _, r := range rows {
		s.rows = append(s.rows, append([]string(nil), r...))
	}
	m.sheets[name] = s
}

// SheetNames returns sheet names in creation order.
func (m *MemStore) SheetNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Values returns a copy of the sheet's data rows, without the header.
func (m *MemStore) Values(sheet string) [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sheets[sheet]
	if !ok {
		return nil
	}
	out := make([][]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

// FailNext makes the next n calls of op against sheet fail with err.
// An empty sheet name matches every sheet.
func (m *MemStore) FailNext(op Op, sheet string, n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[faultKey(op, sheet)] = &fault{remaining: n, err: err}
}

// Calls returns how many times op has been invoked, including failed calls.
func (m *MemStore) Calls(op Op) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func faultKey(op Op, sheet string) string {
	return string(op) + "\x00" + sheet
}

// begin records a call and returns an injected error if one is pending.
// Caller must hold m.mu.
func (m *MemStore) begin(ctx context.Context, op Op, sheet string) error {
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, key := range []string{faultKey(op, sheet), faultKey(op, "")} {
		f, ok := m.faults[key]
		if !ok || f.remaining == 0 {
			continue
		}
		f.remaining--
		return f.err
	}
	return nil
}

func (m *MemStore) sheet(name string) (*memSheet, error) {
	s, ok := m.sheets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSheetNotFound, name)
	}
	return s, nil
}

// ListRows implements Store.ListRows.
func (m *MemStore) ListRows(ctx context.Context, sheet string) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, OpListRows, sheet); err != nil {
		return nil, err
	}
	s, err := m.sheet(sheet)
	if err != nil {
		return nil, err
	}

	t := &Table{Sheet: sheet, Header: append([]string(nil), s.header...)}
	last := len(s.rows)
	for last > 0 && (Row{Cells: s.rows[last-1]}).IsBlank() {
		last--
	}
	for i := 0; i < last; i++ {
		t.Rows = append(t.Rows, Row{
			Index: i + HeaderRow + 1,
			Cells: append([]string(nil), s.rows[i]...),
		})
	}
	return t, nil
}

// WriteRow implements Store.WriteRow.
func (m *MemStore) WriteRow(ctx context.Context, sheet string, row int, cells []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, OpWriteRow, sheet); err != nil {
		return err
	}
	s, err := m.sheet(sheet)
	if err != nil {
		return err
	}
	if row <= HeaderRow {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}

	pos := row - HeaderRow - 1
	for len(s.rows) <= pos {
		s.rows = append(s.rows, nil)
	}
	s.rows[pos] = append([]string(nil), cells...)
	return nil
}

// RewriteRows implements Store.RewriteRows.
func (m *MemStore) RewriteRows(ctx context.Context, sheet string, header []string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, OpRewriteRows, sheet); err != nil {
		return err
	}
	s, err := m.sheet(sheet)
	if err != nil {
		return err
	}

	s.header = append([]string(nil), header...)
	s.rows = s.rows[:0]
	for _, r := range rows {
		s.rows = append(s.rows, append([]string(nil), r...))
	}
	return nil
}

// DeleteRow implements RowDeleter.DeleteRow.
func (m *MemStore) DeleteRow(ctx context.Context, sheet string, row int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, OpDeleteRow, sheet); err != nil {
		return err
	}
	s, err := m.sheet(sheet)
	if err != nil {
		return err
	}

	pos := row - HeaderRow - 1
	if pos < 0 || pos >= len(s.rows) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}
	s.rows = append(s.rows[:pos], s.rows[pos+1:]...)
	return nil
}

// SetCell implements Store.SetCell.
func (m *MemStore) SetCell(ctx context.Context, sheet string, row int, column, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, OpSetCell, sheet); err != nil {
		return err
	}
	s, err := m.sheet(sheet)
	if err != nil {
		return err
	}
	col := ColumnIndex(s.header, column)
	if col < 0 {
		return fmt.Errorf("%w: %q in sheet %q", ErrColumnNotFound, column, sheet)
	}
	if row <= HeaderRow {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}

	pos := row - HeaderRow - 1
	for len(s.rows) <= pos {
		s.rows = append(s.rows, nil)
	}
	for len(s.rows[pos]) <= col {
		s.rows[pos] = append(s.rows[pos], "")
	}
	s.rows[pos][col] = value
	return nil
}

// Snapshot copies the named sheets of src into a new MemStore. Rows keep
// their sheet positions, so row numbers read from the snapshot are valid
// against src as long as src is not modified in between.
func Snapshot(ctx context.Context, src Store, names []string) (*MemStore, error) {
	dst := NewMemStore()
	for _, name := range names {
		t, err := src.ListRows(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot sheet %q: %w", name, err)
		}

		rows := make([][]string, t.LastRow()-HeaderRow)
		for _, r := range t.Rows {
			rows[r.Index-HeaderRow-1] = r.Cells
		}
		dst.AddSheet(name, t.Header, rows...)
	}
	return dst, nil
}
