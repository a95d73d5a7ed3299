package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/lhn-coaching/coachsync/internal/queue"
)

// RenderSummary renders the end-of-run report printed by "coachsync run".
func RenderSummary(s queue.Summary, dryRun bool) string {
	var sb strings.Builder

	title := "Sync complete"
	if dryRun {
		title = "Dry run complete (no changes written)"
	}
	marker := RenderPass("✓")
	if s.Pending() > 0 {
		marker = RenderWarn("⚠")
	}
	fmt.Fprintf(&sb, "%s %s in %v\n\n", marker, title, s.Elapsed.Round(time.Millisecond))

	t := NewTable("Entries", "Count")
	t.AddRow("synced", RenderPass(fmt.Sprint(s.Synced)))
	t.AddRow("already synced", fmt.Sprint(s.Skipped))
	t.AddRow("invalid", countStyle(s.Invalid, RenderWarn))
	t.AddRow("failed", countStyle(s.Failed, RenderFail))
	sb.WriteString(t.String())
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Roster rows added: %d, removed: %d\n", s.Added, s.Removed)
	if s.Warnings > 0 {
		fmt.Fprintf(&sb, "%s %d warning(s), see log\n", RenderWarn("⚠"), s.Warnings)
	}

	if len(s.Failures) > 0 {
		sb.WriteString("\nLeft pending:\n")
		for _, f := range s.Failures {
			client := f.Client
			if client == "" {
				client = "(no name)"
			}
			detail := string(f.Reason)
			if f.Err != nil {
				detail = f.Err.Error()
			}
			fmt.Fprintf(&sb, "  %s row %d %s: %s\n", RenderFail("✗"), f.Row, client, RenderMuted(detail))
		}
	}
	return sb.String()
}

func countStyle(n int, style func(string) string) string {
	if n == 0 {
		return "0"
	}
	return style(fmt.Sprint(n))
}
