package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/taskline/taskline/internal/config"
)

var (
	cfgFile string
	dbPath  string

	// cfg is resolved once in the root PersistentPreRunE and shared by all
	// subcommands: file layered over defaults, env layered over file, then
	// the --db flag on top.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "taskline",
	Short: "Buffer chat messages into conversations and extract deduplicated tasks",
	Long: `Taskline buffers raw chat messages into conversations, finalizes each
conversation when it goes quiet or hits the buffering window, extracts
candidate tasks from the flattened text, and records them after a
duplicate check against the last 48 hours of tasks.

Configuration is read from taskline.yaml (or --config), then TASKLINE_*
environment variables. Extraction and duplicate checks need
ANTHROPIC_API_KEY.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg, err = config.FromEnv(cfg)
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "taskline.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
