// Package queue walks the Sync Queue sheet and applies every pending entry.
//
// A run proceeds in three steps:
//
//  1. Read the queue sheet and resolve its columns from the header row.
//     A missing name, tag or synced column aborts the run before any
//     roster is touched.
//  2. Build the roster once for the whole run.
//  3. Visit the queue rows in sheet order. Rows already carrying the synced
//     marker are skipped; every other row is handed to the reconciler and,
//     when it succeeds, marked synced.
//
// Failures of a single entry never stop the run: the entry stays pending and
// is picked up again by the next run. Because the reconciler treats a client
// already present in the target sheet as placed, re-running over the same
// queue is safe at any point.
//
// Example:
//
//	store := sheets.Retrying(xlsx, cfg.RetryPolicy(), sink.Logger("retry"))
//	w := queue.New(store, cfg, sink)
//	summary, err := w.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(summary)
package queue
