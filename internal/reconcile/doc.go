// Package reconcile applies a single sync queue entry to the coach rosters.
//
// For every entry the Reconciler decides between three actions:
//
//   - the client already sits in the requested coach's sheet: remove any
//     copies from every other coach sheet (DedupedOnly)
//   - the client sits elsewhere or nowhere: append it to the requested
//     coach's sheet with that coach's pay, then remove it from every other
//     coach sheet (Moved)
//   - the entry is unusable or a store write failed: change nothing more and
//     report Failed so the entry stays pending for the next run
//
// All roster edits go through the run's roster.Roster, which writes to the
// sheet store and keeps the client index current. Reconcile never returns an
// error; per-entry problems are reported in the Result.
package reconcile
