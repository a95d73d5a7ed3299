// Command coachsync reconciles coach rosters from the Sync Queue sheet.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lhn-coaching/coachsync/internal/config"
	"github.com/lhn-coaching/coachsync/internal/logging"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "coachsync",
	Short: "Keep coach roster sheets in step with the Sync Queue",
	Long: `coachsync applies the coach changes queued in the "Sync Queue" sheet of
the coaching workbook.

For every queued row it makes sure the client appears exactly once, in the
requested coach's sheet with that coach's pay rate, and then ticks the row's
Synced column. Rows that cannot be applied stay unticked and are retried on
the next run; running it again is always safe.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ./coachsync.toml, then ~/.config/coachsync/)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Stream component logs to stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync commands:"},
		&cobra.Group{ID: "setup", Title: "Setup commands:"},
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration or exits.
func loadConfig() *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// openSink creates the log sink for a command or exits. Component logs go
// to the configured log file and, with --verbose, to stderr.
func openSink(cfg *config.Config) *logging.Sink {
	var console io.Writer
	if verbose {
		console = os.Stderr
	}

	sink, err := logging.NewSink(cfg.Log, console)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return sink
}
