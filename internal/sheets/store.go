package sheets

import "context"

// Store reads and writes the rows of named sheets in a single workbook.
//
// Row numbers are 1-based sheet rows; row 1 is the header. Implementations
// must treat every call as independent: callers do not hold any locks or
// transactions across calls.
type Store interface {
	// ListRows returns the header and all data rows of the sheet, in
	// sheet order. Trailing blank rows are omitted.
	ListRows(ctx context.Context, sheet string) (*Table, error)

	// WriteRow writes cells into the given data row, starting at the first
	// column. Writing past the last row extends the sheet.
	WriteRow(ctx context.Context, sheet string, row int, cells []string) error

	// RewriteRows replaces the whole content of the sheet with header
	// followed by rows.
	RewriteRows(ctx context.Context, sheet string, header []string, rows [][]string) error

	// SetCell writes a single value into the named column of a row. The
	// column position is discovered from the header row.
	SetCell(ctx context.Context, sheet string, row int, column, value string) error
}

// RowDeleter is implemented by stores that can remove a single row, shifting
// the rows below it up by one.
type RowDeleter interface {
	DeleteRow(ctx context.Context, sheet string, row int) error
}

// CanDeleteRows reports whether s supports single-row deletes.
func CanDeleteRows(s Store) bool {
	_, ok := s.(RowDeleter)
	return ok
}
