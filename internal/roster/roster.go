// Package roster maintains the run-scoped view of every coach sheet.
//
// A Roster is built once at the start of a run by reading each coach sheet
// exactly once. It then acts as a write-through cache: every roster edit made
// during the run goes through Append or Remove, which write to the sheet
// store first and update the in-memory rows and the client index only when
// the write succeeded. Components that share a Roster therefore never
// disagree about where a client currently lives.
package roster

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/lhn-coaching/coachsync/internal/config"
	"github.com/lhn-coaching/coachsync/internal/sheets"
)

// Normalize returns the identity key of a client name: surrounding
// whitespace trimmed and case folded.
func Normalize(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// ClientRecord is one row of a coach sheet.
type ClientRecord struct {
	AssignedCoach string
	ClientName    string
	PayRate       string
}

// coachSheet is the cached content of one coach sheet.
type coachSheet struct {
	name      string
	header    []string
	coachCol  int
	clientCol int
	payCol    int
	rows      []sheets.Row
	lastRow   int
}

func (s *coachSheet) client(r sheets.Row) string {
	return strings.TrimSpace(r.Cell(s.clientCol))
}

// matches returns the rows whose client name normalizes to key, in sheet order.
func (s *coachSheet) matches(key string) []sheets.Row {
	var out []sheets.Row
	for _, r := range s.rows {
		name := s.client(r)
		if name != "" && Normalize(name) == key {
			out = append(out, r)
		}
	}
	return out
}

// cells lays rec out in header order, leaving other columns empty.
func (s *coachSheet) cells(rec ClientRecord) []string {
	width := len(s.header)
	for _, c := range []int{s.coachCol, s.clientCol, s.payCol} {
		if c+1 > width {
			width = c + 1
		}
	}
	cells := make([]string, width)
	cells[s.coachCol] = rec.AssignedCoach
	cells[s.clientCol] = rec.ClientName
	cells[s.payCol] = rec.PayRate
	return cells
}

// Roster is the run-scoped cache of all coach sheets plus the index from
// normalized client name to coach sheet. It is not safe for concurrent use.
type Roster struct {
	store  sheets.Store
	logger *log.Logger
	order  []string
	sheets map[string]*coachSheet
	index  map[string]string
}

// Build reads every configured coach sheet once and indexes its clients.
//
// Rows with an empty client name are skipped. When a client appears in more
// than one coach sheet, the sheet scanned last (configuration order) wins;
// such pre-existing duplicates are logged, not rejected.
//
// A coach sheet lacking one of the configured roster columns is a
// configuration error: the returned error wraps sheets.ErrColumnNotFound.
func Build(ctx context.Context, store sheets.Store, cfg *config.Config, logger *log.Logger) (*Roster, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[roster] ", log.LstdFlags)
	}

	r := &Roster{
		store:  store,
		logger: logger,
		sheets: make(map[string]*coachSheet, len(cfg.Coaches)),
		index:  make(map[string]string),
	}

	clients := 0
	for _, name := range cfg.CoachSheets() {
		table, err := store.ListRows(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read coach sheet %q: %w", name, err)
		}

		cs := &coachSheet{
			name:      name,
			header:    table.Header,
			coachCol:  table.Column(cfg.Roster.CoachColumn),
			clientCol: table.Column(cfg.Roster.ClientColumn),
			payCol:    table.Column(cfg.Roster.PayColumn),
			rows:      table.Rows,
			lastRow:   table.LastRow(),
		}
		for _, c := range []struct {
			pos   int
			label string
		}{
			{cs.coachCol, cfg.Roster.CoachColumn},
			{cs.clientCol, cfg.Roster.ClientColumn},
			{cs.payCol, cfg.Roster.PayColumn},
		} {
			if c.pos < 0 {
				return nil, fmt.Errorf("coach sheet %q: %w: %q", name, sheets.ErrColumnNotFound, c.label)
			}
		}

		for _, row := range cs.rows {
			client := cs.client(row)
			if client == "" {
				continue
			}
			r.index[Normalize(client)] = name
			clients++
		}

		r.order = append(r.order, name)
		r.sheets[name] = cs
	}

	if dups := r.Duplicates(); len(dups) > 0 {
		logger.Printf("WARNING: %d client(s) appear in more than one coach sheet", len(dups))
	}
	logger.Printf("Loaded %d client rows from %d coach sheets", clients, len(r.order))
	return r, nil
}

// Sheets returns the coach sheet names in scan order.
func (r *Roster) Sheets() []string {
	return append([]string(nil), r.order...)
}

// CoachOf returns the coach sheet the index currently places name in.
func (r *Roster) CoachOf(name string) (string, bool) {
	coach, ok := r.index[Normalize(name)]
	return coach, ok
}

// Has reports whether coach's sheet holds at least one row for name.
func (r *Roster) Has(coach, name string) bool {
	cs, ok := r.sheets[coach]
	if !ok {
		return false
	}
	return len(cs.matches(Normalize(name))) > 0
}

// Size returns the number of non-empty client rows in coach's sheet.
func (r *Roster) Size(coach string) int {
	cs, ok := r.sheets[coach]
	if !ok {
		return 0
	}
	n := 0
	for _, row := range cs.rows {
		if cs.client(row) != "" {
			n++
		}
	}
	return n
}

// Clients returns the records of coach's sheet in sheet order.
func (r *Roster) Clients(coach string) []ClientRecord {
	cs, ok := r.sheets[coach]
	if !ok {
		return nil
	}
	var out []ClientRecord
	for _, row := range cs.rows {
		if cs.client(row) == "" {
			continue
		}
		out = append(out, ClientRecord{
			AssignedCoach: row.Cell(cs.coachCol),
			ClientName:    cs.client(row),
			PayRate:       row.Cell(cs.payCol),
		})
	}
	return out
}

// Duplicates returns, for each normalized client name present in more than
// one coach sheet, the sheets holding it in scan order.
func (r *Roster) Duplicates() map[string][]string {
	seen := make(map[string][]string)
	for _, name := range r.order {
		cs := r.sheets[name]
		inSheet := make(map[string]bool)
		for _, row := range cs.rows {
			client := cs.client(row)
			if client == "" {
				continue
			}
			key := Normalize(client)
			if inSheet[key] {
				continue
			}
			inSheet[key] = true
			seen[key] = append(seen[key], name)
		}
	}

	dups := make(map[string][]string)
	for key, coaches := range seen {
		if len(coaches) > 1 {
			dups[key] = coaches
		}
	}
	return dups
}

// DuplicateNames returns the keys of Duplicates sorted for stable output.
func (r *Roster) DuplicateNames() []string {
	dups := r.Duplicates()
	names := make([]string, 0, len(dups))
	for k := range dups {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// reindex recomputes the index entry for key from the cached sheets, using
// the same last-sheet-wins rule as Build.
func (r *Roster) reindex(key string) {
	coach := ""
	for _, name := range r.order {
		if len(r.sheets[name].matches(key)) > 0 {
			coach = name
		}
	}
	if coach == "" {
		delete(r.index, key)
		return
	}
	r.index[key] = coach
}
