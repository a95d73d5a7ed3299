package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lhn-coaching/coachsync/internal/config"
	"github.com/lhn-coaching/coachsync/internal/ledger"
	"github.com/lhn-coaching/coachsync/internal/logging"
	"github.com/lhn-coaching/coachsync/internal/queue"
	"github.com/lhn-coaching/coachsync/internal/sheets"
	"github.com/lhn-coaching/coachsync/internal/ui"
)

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: "sync",
	Short:   "Process the Sync Queue once",
	Long: `Process every unsynced row of the Sync Queue once.

For each row:
  1. Client already in the requested coach's sheet: remove copies elsewhere
  2. Otherwise: add the client with the coach's pay, remove the old row
  3. Tick the Synced column

Rows that fail stay unticked and are retried on the next run.
With --dry-run the workbook is read but never written.`,
	Run: func(cmd *cobra.Command, args []string) {
		workbook, _ := cmd.Flags().GetString("workbook")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		cfg := loadConfig()
		if workbook != "" {
			cfg.Workbook = workbook
		}

		sink := openSink(cfg)
		defer sink.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Printf("%s Syncing %s...\n", ui.RenderAccent("🔄"), cfg.Workbook)

		summary, err := syncOnce(ctx, cfg, sink, dryRun)
		if err != nil && summary.Total == 0 {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if errors.Is(err, queue.ErrConfiguration) {
				fmt.Fprintf(os.Stderr, "Check the sheet and column names in your config (coachsync config show)\n")
			}
			os.Exit(1)
		}

		fmt.Println()
		fmt.Print(ui.RenderSummary(summary, dryRun))

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// syncOnce opens the workbook, runs the queue once and records the run in
// the ledger. With dryRun the queue runs against an in-memory copy of the
// workbook and nothing is recorded.
func syncOnce(ctx context.Context, cfg *config.Config, sink *logging.Sink, dryRun bool) (queue.Summary, error) {
	return syncWorkbook(ctx, cfg, sink, dryRun, nil)
}

// syncWorkbook is syncOnce with onSave, when set, called after every save
// of the workbook.
func syncWorkbook(ctx context.Context, cfg *config.Config, sink *logging.Sink, dryRun bool, onSave func(fs.FileInfo)) (queue.Summary, error) {
	logger := sink.Logger("run")

	book, err := sheets.OpenXLSX(cfg.Workbook)
	if err != nil {
		return queue.Summary{}, err
	}
	defer book.Close()
	if onSave != nil {
		book.OnSave(onSave)
	}

	store := sheets.Retrying(book, cfg.RetryPolicy(), sink.Logger("retry"))

	if dryRun {
		names := append([]string{cfg.Queue.Sheet}, cfg.CoachSheets()...)
		snapshot, err := sheets.Snapshot(ctx, store, names)
		if err != nil {
			if errors.Is(err, sheets.ErrSheetNotFound) || errors.Is(err, sheets.ErrTabCollision) {
				return queue.Summary{}, fmt.Errorf("%w: %w", queue.ErrConfiguration, err)
			}
			return queue.Summary{}, err
		}
		return queue.New(snapshot, cfg, sink).Run(ctx)
	}

	w := queue.New(store, cfg, sink)

	path := cfg.LedgerPath()
	if path == "" {
		return w.Run(ctx)
	}

	l, err := ledger.Open(path)
	if err != nil {
		// The ledger is history only; never block a sync on it.
		logger.Printf("WARNING: ledger unavailable, run will not be recorded: %v", err)
		return w.Run(ctx)
	}
	defer l.Close()

	runID, err := l.BeginRun(ctx, cfg.Workbook)
	if err != nil {
		logger.Printf("WARNING: failed to record run start: %v", err)
		return w.Run(ctx)
	}
	logger.Printf("Run %s started", runID)

	summary, runErr := w.WithRecorder(l.Recorder(runID)).Run(ctx)
	if err := l.FinishRun(ctx, runID, summary, runErr); err != nil {
		logger.Printf("WARNING: failed to record run result: %v", err)
	}
	return summary, runErr
}

func init() {
	runCmd.Flags().String("workbook", "", "Workbook to sync (overrides the config file)")
	runCmd.Flags().Bool("dry-run", false, "Show what would change without writing the workbook")

	rootCmd.AddCommand(runCmd)
}
