package roster

import (
	"context"
	"fmt"
	"sort"

	"github.com/lhn-coaching/coachsync/internal/sheets"
)

// NextRow returns the sheet row a new client would be written to in coach's
// sheet: the row after the last non-blank row.
func (r *Roster) NextRow(coach string) int {
	cs, ok := r.sheets[coach]
	if !ok {
		return 0
	}
	return cs.lastRow + 1
}

// Append writes rec to the first free row of coach's sheet and, once the
// write succeeded, places rec.ClientName under coach in the index.
// It returns the sheet row written.
func (r *Roster) Append(ctx context.Context, coach string, rec ClientRecord) (int, error) {
	cs, ok := r.sheets[coach]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a coach sheet", sheets.ErrSheetNotFound, coach)
	}

	row := cs.lastRow + 1
	cells := cs.cells(rec)
	if err := r.store.WriteRow(ctx, coach, row, cells); err != nil {
		return 0, fmt.Errorf("failed to append %q to %q: %w", rec.ClientName, coach, err)
	}

	cs.rows = append(cs.rows, sheets.Row{Index: row, Cells: cells})
	cs.lastRow = row
	r.index[Normalize(rec.ClientName)] = coach
	return row, nil
}

// Remove deletes every row of coach's sheet whose client normalizes to the
// same key as name, keeping the header and all other rows. It returns the
// number of rows removed; zero with a nil error means there was nothing to
// remove.
//
// Stores implementing sheets.RowDeleter get one DeleteRow per match,
// bottom-up; other stores get a single RewriteRows of the remaining rows.
// On failure the cache reflects exactly the deletes that succeeded.
func (r *Roster) Remove(ctx context.Context, coach, name string) (int, error) {
	cs, ok := r.sheets[coach]
	if !ok {
		return 0, fmt.Errorf("%w: %q is not a coach sheet", sheets.ErrSheetNotFound, coach)
	}

	key := Normalize(name)
	matches := cs.matches(key)
	if len(matches) == 0 {
		return 0, nil
	}
	defer r.reindex(key)

	if deleter, ok := r.store.(sheets.RowDeleter); ok {
		return r.deleteRows(ctx, deleter, cs, matches)
	}
	return r.rewriteWithout(ctx, cs, key, len(matches))
}

func (r *Roster) deleteRows(ctx context.Context, deleter sheets.RowDeleter, cs *coachSheet, matches []sheets.Row) (int, error) {
	sort.Slice(matches, func(i, j int) bool { return matches[i].Index > matches[j].Index })

	removed := 0
	for _, m := range matches {
		if err := deleter.DeleteRow(ctx, cs.name, m.Index); err != nil {
			return removed, fmt.Errorf("failed to delete row %d of %q: %w", m.Index, cs.name, err)
		}
		cs.dropRow(m.Index)
		removed++
	}
	return removed, nil
}

func (r *Roster) rewriteWithout(ctx context.Context, cs *coachSheet, key string, count int) (int, error) {
	keep := make([]sheets.Row, 0, len(cs.rows))
	cells := make([][]string, 0, len(cs.rows))
	for _, row := range cs.rows {
		if client := cs.client(row); client != "" && Normalize(client) == key {
			continue
		}
		keep = append(keep, row)
		cells = append(cells, row.Cells)
	}

	if err := r.store.RewriteRows(ctx, cs.name, cs.header, cells); err != nil {
		return 0, fmt.Errorf("failed to rewrite %q: %w", cs.name, err)
	}

	for i := range keep {
		keep[i].Index = sheets.HeaderRow + 1 + i
	}
	cs.rows = keep
	cs.lastRow = sheets.HeaderRow + len(keep)
	return count, nil
}

// dropRow removes the cached row at index and shifts the rows below it up,
// mirroring what a single-row delete does to the sheet.
func (s *coachSheet) dropRow(index int) {
	out := s.rows[:0]
	for _, row := range s.rows {
		switch {
		case row.Index == index:
			continue
		case row.Index > index:
			row.Index--
		}
		out = append(out, row)
	}
	s.rows = out
	if s.lastRow >= index {
		s.lastRow--
	}
}
