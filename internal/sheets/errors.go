package sheets

import (
	"context"
	"errors"
)

// Common errors returned by sheet stores.
//
// These errors are permanent: retrying the same call will not change the
// outcome. Check them with errors.Is:
//
//	if errors.Is(err, sheets.ErrSheetNotFound) {
//	    // the workbook does not contain the sheet
//	}
var (
	// ErrSheetNotFound is returned when the named sheet does not exist.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrColumnNotFound is returned when a column name is not present in
	// the sheet's header row.
	ErrColumnNotFound = errors.New("column not found")

	// ErrRowOutOfRange is returned for row numbers that do not address a
	// data row (row 1 is the header and cannot be written through WriteRow).
	ErrRowOutOfRange = errors.New("row out of range")

	// ErrClosed is returned when a store is used after Close.
	ErrClosed = errors.New("store closed")

	// ErrTabCollision is returned when two different sheet names resolve
	// to the same workbook tab.
	ErrTabCollision = errors.New("sheet names share a workbook tab")
)

// IsTransient reports whether err may succeed if the same operation is
// attempted again. Unknown errors are assumed to be transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch {
	case errors.Is(err, ErrSheetNotFound),
		errors.Is(err, ErrColumnNotFound),
		errors.Is(err, ErrRowOutOfRange),
		errors.Is(err, ErrClosed),
		errors.Is(err, ErrTabCollision):
		return false
	}

	return true
}
