package sheets

import "strings"

// HeaderRow is the sheet row that holds column names.
const HeaderRow = 1

// Row is a single data row of a sheet.
type Row struct {
	// Index is the 1-based sheet row number (the header is row 1).
	Index int
	// Cells holds the row's values in header order. It may be shorter than
	// the header when trailing cells are empty.
	Cells []string
}

// Cell returns the value at column position col, or "" when the row has no
// value there.
func (r Row) Cell(col int) string {
	if col < 0 || col >= len(r.Cells) {
		return ""
	}
	return r.Cells[col]
}

// IsBlank reports whether every cell in the row is empty.
func (r Row) IsBlank() bool {
	for _, c := range r.Cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Table is the content of a sheet: its header and data rows in sheet order.
type Table struct {
	Sheet  string
	Header []string
	Rows   []Row
}

// Column returns the position of the named column in the header, or -1.
// Names are matched case-insensitively with surrounding whitespace ignored.
func (t *Table) Column(name string) int {
	return ColumnIndex(t.Header, name)
}

// Get returns the value of the named column for row r.
func (t *Table) Get(r Row, column string) string {
	return r.Cell(t.Column(column))
}

// LastRow returns the index of the last data row, or HeaderRow when the
// sheet has no data rows.
func (t *Table) LastRow() int {
	last := HeaderRow
	for _, r := range t.Rows {
		if r.Index > last {
			last = r.Index
		}
	}
	return last
}

// ColumnIndex finds name in header the same way Table.Column does.
func ColumnIndex(header []string, name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return -1
	}
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}
