package main

import (
	"github.com/spf13/cobra"
)

var dataDir string

var rootCmd = &cobra.Command{
	Use:   "mfb",
	Short: "Offline-first family budget manager",
	Long: `mfb manages a family budget that works without a network connection.

Families created offline live in a local SQLite database with locally
minted identifiers. Every mutation made while offline is recorded in a
durable queue. When you are ready, 'mfb sync' migrates the family to the
remote backend: rows are copied in dependency order, identifiers are
rewritten, and the queued mutations are replayed.

Data lives in ~/.mfb by default (override with --data-dir).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"data directory (default ~/.mfb)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "budget", Title: "Budget Commands:"},
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
}
