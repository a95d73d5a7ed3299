// Package sheets provides the sheet store abstraction that coachsync reads
// rosters and the sync queue from.
//
// A workbook is a set of named sheets. Every sheet has a header in row 1 and
// data rows starting at row 2; row numbers are always 1-based sheet rows so
// that they can be handed back to the store unchanged.
//
// Implementations:
//   - XLSXStore: a workbook file on disk, persisted after every mutation
//   - MemStore: an in-memory workbook used for dry runs and tests
//
// Every store operation may fail transiently. Callers wrap a store with
// Retrying to apply a bounded retry policy to every call:
//
//	store, err := sheets.OpenXLSX("roster.xlsx")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	retrying := sheets.Retrying(store, policy, logger)
//
// Removing rows is done with DeleteRow when the store implements RowDeleter,
// and by rewriting the remaining rows with RewriteRows otherwise.
package sheets
