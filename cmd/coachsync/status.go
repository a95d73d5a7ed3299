package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lhn-coaching/coachsync/internal/queue"
	"github.com/lhn-coaching/coachsync/internal/reconcile"
	"github.com/lhn-coaching/coachsync/internal/roster"
	"github.com/lhn-coaching/coachsync/internal/sheets"
	"github.com/lhn-coaching/coachsync/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show queue and roster status",
	Long: `Show the state of the workbook without changing it.

Shows:
  - Pending and synced Sync Queue rows, oldest request first
  - Number of clients in each coach sheet
  - Clients that appear in more than one coach sheet`,
	Run: func(cmd *cobra.Command, args []string) {
		workbook, _ := cmd.Flags().GetString("workbook")

		cfg := loadConfig()
		if workbook != "" {
			cfg.Workbook = workbook
		}

		sink := openSink(cfg)
		defer sink.Close()

		book, err := sheets.OpenXLSX(cfg.Workbook)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer book.Close()

		ctx := context.Background()
		entries, err := queue.ReadEntries(ctx, book, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading queue: %v\n", err)
			os.Exit(1)
		}

		r, err := roster.Build(ctx, book, cfg, sink.Logger("roster"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading rosters: %v\n", err)
			os.Exit(1)
		}

		pending := queue.Pending(entries)

		fmt.Printf("\n%s Coach Sync Status\n\n", ui.RenderAccent("📊"))
		fmt.Printf("Workbook: %s\n", cfg.Workbook)
		fmt.Printf("Queue: %d pending, %d synced\n\n", len(pending), len(entries)-len(pending))
		if len(pending) > 0 {
			fmt.Print(pendingTable(pending, time.Now()).String())
			fmt.Println()
		}

		t := ui.NewTable("Coach sheet", "Clients", "Pay")
		for _, coach := range r.Sheets() {
			pay, ok := cfg.PayFor(coach)
			if !ok {
				pay = cfg.DefaultPay + " (default)"
			}
			t.AddRow(coach, fmt.Sprint(r.Size(coach)), pay)
		}
		fmt.Print(t.String())

		printDuplicates(r)
		fmt.Println()
	},
}

// pendingTable lists pending queue rows, oldest request first.
func pendingTable(pending []reconcile.Entry, now time.Time) *ui.Table {
	t := ui.NewTable("Row", "Client", "Requested coach", "Requested", "Age")
	for _, e := range pending {
		requested, age := e.RawTimestamp, ""
		if !e.Timestamp.IsZero() {
			requested = e.Timestamp.Format("2006-01-02 15:04")
			age = humanize.RelTime(e.Timestamp, now, "ago", "from now")
		}
		t.AddRow(fmt.Sprint(e.Row), e.FullName, e.NewCoachTag, requested, ui.RenderMuted(age))
	}
	return t
}

func printDuplicates(r *roster.Roster) {
	names := r.DuplicateNames()
	if len(names) == 0 {
		fmt.Printf("\n%s No client appears in more than one coach sheet\n", ui.RenderPass("✓"))
		return
	}

	dups := r.Duplicates()
	fmt.Printf("\n%s %d client(s) in more than one coach sheet:\n", ui.RenderWarn("⚠"), len(names))
	for _, name := range names {
		fmt.Printf("  %s: %s\n", name, strings.Join(dups[name], ", "))
	}
	fmt.Printf("   Queue the client again to settle the assignment\n")
}

func init() {
	statusCmd.Flags().String("workbook", "", "Workbook to inspect (overrides the config file)")

	rootCmd.AddCommand(statusCmd)
}
