package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lhn-coaching/coachsync/internal/config"
	"github.com/lhn-coaching/coachsync/internal/ledger"
	"github.com/lhn-coaching/coachsync/internal/ui"
)

var historyCmd = &cobra.Command{
	Use:     "history",
	GroupID: "sync",
	Short:   "List recent sync runs",
	Long: `List recent sync runs recorded in the run ledger.

Use 'coachsync history show <run-id>' to see every queue row a run touched.
A unique prefix of the run ID is enough.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		l := openLedger(loadConfig())
		if l == nil {
			return
		}
		defer l.Close()

		runs, err := l.RecentRuns(context.Background(), limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(runs) == 0 {
			fmt.Printf("No runs recorded yet\n")
			return
		}

		t := ui.NewTable("Run", "Started", "Status", "Synced", "Added", "Removed", "Pending", "Took")
		for _, r := range runs {
			t.AddRow(
				r.ID[:8],
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				renderStatus(r.Status),
				fmt.Sprint(r.Synced),
				fmt.Sprint(r.Added),
				fmt.Sprint(r.Removed),
				fmt.Sprint(r.Invalid+r.Failed),
				r.Duration().Round(time.Millisecond).String(),
			)
		}
		fmt.Print(t.String())
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the queue rows processed by a run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		l := openLedger(loadConfig())
		if l == nil {
			return
		}
		defer l.Close()

		ctx := context.Background()
		run, err := l.FindRun(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if errors.Is(err, ledger.ErrAmbiguousRun) {
				fmt.Fprintf(os.Stderr, "Use more characters of the run ID\n")
			}
			os.Exit(1)
		}

		entries, err := l.Entries(ctx, run.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s Run %s\n\n", ui.RenderAccent("📋"), run.ID)
		fmt.Printf("Workbook: %s\n", run.Workbook)
		fmt.Printf("Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("Status: %s\n", renderStatus(run.Status))
		if run.Error != "" {
			fmt.Printf("Error: %s\n", ui.RenderFail(run.Error))
		}
		fmt.Printf("Rows: %d visited, %d synced, %d already synced, %d invalid, %d failed\n\n",
			run.Total, run.Synced, run.Skipped, run.Invalid, run.Failed)

		if len(entries) == 0 {
			fmt.Printf("No rows were processed\n")
			return
		}

		t := ui.NewTable("Row", "Requested", "Client", "From", "To", "Outcome", "Detail")
		for _, e := range entries {
			to := e.NewCoach
			if to == "" {
				to = e.NewCoachTag
			}
			detail := e.Reason
			if e.Error != "" {
				detail = e.Error
			}
			t.AddRow(fmt.Sprint(e.Row), e.Requested("2006-01-02 15:04"), e.Client, e.OldCoach, to,
				renderOutcome(e.Outcome), ui.RenderMuted(detail))
		}
		fmt.Print(t.String())
	},
}

// openLedger opens the run ledger for reading. It returns nil, after
// telling the user why, when there is nothing to read.
func openLedger(cfg *config.Config) *ledger.DB {
	path := cfg.LedgerPath()
	if path == "" {
		fmt.Printf("%s The run ledger is disabled (ledger = %q)\n", ui.RenderWarn("⚠"), cfg.Ledger)
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Printf("%s No run ledger at %s\n", ui.RenderWarn("⚠"), path)
		fmt.Printf("   Run 'coachsync run' to record the first run\n")
		return nil
	}

	l, err := ledger.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return l
}

func renderStatus(status string) string {
	switch status {
	case ledger.StatusCompleted:
		return ui.RenderPass(status)
	case ledger.StatusFailed:
		return ui.RenderFail(status)
	default:
		return ui.RenderWarn(status)
	}
}

func renderOutcome(outcome string) string {
	switch outcome {
	case "moved", "deduped":
		return ui.RenderPass(outcome)
	case "failed":
		return ui.RenderFail(outcome)
	default:
		return outcome
	}
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 10, "Number of runs to show")

	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}
