package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lhn-coaching/coachsync/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Inspect the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration coachsync would use: the config file merged with
COACHSYNC_* environment overrides and built-in defaults.`,
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")

		cfg := loadConfig()
		if err := config.Encode(os.Stdout, cfg, format); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	configShowCmd.Flags().String("format", config.FormatTOML, "Output format (toml or yaml)")

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
