package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/lhn-coaching/coachsync/internal/config"
	"github.com/lhn-coaching/coachsync/internal/sheets"
	"github.com/lhn-coaching/coachsync/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init",
	GroupID: "setup",
	Short:   "Write a starter config file",
	Long: `Write a starter coachsync.toml in the current directory.

Without --interactive the built-in defaults are written and can be edited by
hand. With --interactive you are asked for the workbook, the coach sheets and
their pay. If the workbook does not exist yet, an empty one with the queue and
coach sheets can be created.`,
	Run: func(cmd *cobra.Command, args []string) {
		interactive, _ := cmd.Flags().GetBool("interactive")
		force, _ := cmd.Flags().GetBool("force")
		createWorkbook, _ := cmd.Flags().GetBool("create-workbook")

		path := configPath
		if path == "" {
			path = "coachsync.toml"
		}
		if _, err := os.Stat(path); err == nil && !force {
			fmt.Fprintf(os.Stderr, "Error: %s already exists (use --force to overwrite)\n", path)
			os.Exit(1)
		}

		cfg := config.Default()
		if interactive {
			var err error
			createWorkbook, err = askConfig(cfg)
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Println("Aborted")
				return
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := config.Write(path, cfg, force); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)

		if !createWorkbook {
			return
		}
		if _, err := os.Stat(cfg.Workbook); err == nil {
			fmt.Printf("%s Workbook %s already exists, left untouched\n", ui.RenderWarn("⚠"), cfg.Workbook)
			return
		}
		if err := sheets.CreateXLSX(cfg.Workbook, workbookLayout(cfg)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s Created %s with %d coach sheets\n", ui.RenderPass("✓"), cfg.Workbook, len(cfg.Coaches))
	},
}

// askConfig fills cfg from an interactive form and reports whether the
// workbook should be created.
func askConfig(cfg *config.Config) (bool, error) {
	workbook := cfg.Workbook
	defaultPay := cfg.DefaultPay
	coaches := formatCoachLines(cfg.Coaches)
	create := true

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Workbook").
				Description("Path of the .xlsx workbook holding the Sync Queue and coach sheets").
				Value(&workbook).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("workbook is required")
					}
					return nil
				}),
			huh.NewText().
				Title("Coach sheets").
				Description("One per line: sheet name, then | and the pay for new clients").
				Value(&coaches).
				Validate(func(s string) error {
					_, err := parseCoachLines(s)
					return err
				}),
			huh.NewInput().
				Title("Default pay").
				Description("Used for coaches without a pay rate").
				Value(&defaultPay),
			huh.NewConfirm().
				Title("Create the workbook if it does not exist?").
				Value(&create),
		),
	)
	if err := form.Run(); err != nil {
		return false, err
	}

	parsed, err := parseCoachLines(coaches)
	if err != nil {
		return false, err
	}
	cfg.Workbook = strings.TrimSpace(workbook)
	cfg.DefaultPay = strings.TrimSpace(defaultPay)
	cfg.Coaches = parsed
	return create, nil
}

// formatCoachLines renders coaches in the "Sheet | Pay" form read by
// parseCoachLines.
func formatCoachLines(coaches []config.Coach) string {
	lines := make([]string, len(coaches))
	for i, c := range coaches {
		lines[i] = c.Sheet
		if c.Pay != "" {
			lines[i] += " | " + c.Pay
		}
	}
	return strings.Join(lines, "\n")
}

// parseCoachLines reads one coach per non-empty line as "Sheet" or
// "Sheet | Pay".
func parseCoachLines(text string) ([]config.Coach, error) {
	var coaches []config.Coach
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		sheet, pay, _ := strings.Cut(line, "|")
		sheet = strings.TrimSpace(sheet)
		if sheet == "" {
			return nil, fmt.Errorf("line %d: missing sheet name", i+1)
		}
		coaches = append(coaches, config.Coach{Sheet: sheet, Pay: strings.TrimSpace(pay)})
	}
	if len(coaches) == 0 {
		return nil, errors.New("at least one coach sheet is required")
	}
	return coaches, nil
}

// workbookLayout returns the sheets of an empty workbook for cfg.
func workbookLayout(cfg *config.Config) []sheets.SheetLayout {
	q := cfg.Queue
	layout := []sheets.SheetLayout{{
		Name:   q.Sheet,
		Header: []string{q.TimestampColumn, q.NameColumn, q.TagColumn, q.SyncedColumn},
	}}
	for _, c := range cfg.Coaches {
		layout = append(layout, sheets.SheetLayout{
			Name:   c.Sheet,
			Header: []string{cfg.Roster.CoachColumn, cfg.Roster.ClientColumn, cfg.Roster.PayColumn},
		})
	}
	return layout
}

func init() {
	initCmd.Flags().BoolP("interactive", "i", false, "Ask for the settings instead of writing defaults")
	initCmd.Flags().BoolP("force", "f", false, "Overwrite an existing config file")
	initCmd.Flags().Bool("create-workbook", false, "Create an empty workbook if it does not exist")

	rootCmd.AddCommand(initCmd)
}
