package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lhn-coaching/coachsync/internal/queue"
	"github.com/lhn-coaching/coachsync/internal/ui"
	"github.com/lhn-coaching/coachsync/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Sync now and again whenever the workbook changes",
	Long: `Run the sync once, then watch the workbook file and run it again every
time the file is saved.

Bursts of saves are collapsed into a single run (see --debounce). Saves made
by the sync itself do not trigger another run. A configuration error stops
watching; any other failure is reported and watching continues.`,
	Run: func(cmd *cobra.Command, args []string) {
		workbook, _ := cmd.Flags().GetString("workbook")
		debounce, _ := cmd.Flags().GetDuration("debounce")

		cfg := loadConfig()
		if workbook != "" {
			cfg.Workbook = workbook
		}
		if debounce <= 0 {
			debounce = cfg.DebounceInterval()
		}

		sink := openSink(cfg)
		defer sink.Close()

		if _, err := os.Stat(cfg.Workbook); err != nil {
			fmt.Fprintf(os.Stderr, "Error: workbook not found: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		var (
			w     *watch.Watcher
			fatal error
		)
		run := func(ctx context.Context) error {
			summary, err := syncWorkbook(ctx, cfg, sink, false, w.MarkSaved)
			if errors.Is(err, queue.ErrConfiguration) {
				fatal = err
				cancel()
				return err
			}
			fmt.Printf("\n%s %s\n", ui.RenderMuted(time.Now().Format("15:04:05")), summary)
			for _, f := range summary.Failures {
				fmt.Printf("  %s row %d %s: %s\n", ui.RenderWarn("⚠"), f.Row, f.Client, f.Reason)
			}
			return err
		}

		var err error
		w, err = watch.New(cfg.Workbook, run, &watch.Config{
			DebounceInterval: debounce,
			Logger:           sink.Logger("watch"),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating watcher: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Watching %s\n", ui.RenderAccent("👀"), cfg.Workbook)
		fmt.Printf("\nPress Ctrl+C to stop\n")

		if err := w.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Watcher stopped with error: %v\n", err)
			os.Exit(1)
		}
		if fatal != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", fatal)
			os.Exit(1)
		}
		fmt.Println("\nStopped")
	},
}

func init() {
	watchCmd.Flags().String("workbook", "", "Workbook to watch (overrides the config file)")
	watchCmd.Flags().Duration("debounce", 0, "Quiet period after a save before syncing (default from config)")

	rootCmd.AddCommand(watchCmd)
}
