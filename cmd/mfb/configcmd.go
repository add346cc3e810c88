package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/config"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Manage application settings",
	Long: `Read and write validated application settings.

Settings are stored as JSON in the data directory. Every key has a
validation rule; values that fail validation are rejected on write and
pruned on read, so a tampered config file heals itself.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Read a setting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()

		value, ok := a.cfg.Get(args[0])
		if !ok {
			fmt.Println(ui.Muted("(unset)"))
			return
		}
		fmt.Println(value)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write a setting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()

		if !a.cfg.Set(args[0], args[1]) {
			fmt.Fprintf(os.Stderr, "Error: value rejected for key %q\n", args[0])
			os.Exit(1)
		}
		fmt.Println(ui.Pass("%s = %s", args[0], args[1]))
	},
}

var configRemoveCmd = &cobra.Command{
	Use:   "rm <key>",
	Short: "Remove a setting",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()

		a.cfg.Remove(args[0])
		fmt.Println(ui.Pass("removed %s", args[0]))
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()

		keys := a.cfg.Keys()
		if len(keys) == 0 {
			fmt.Println(ui.Muted("no settings"))
			return
		}
		for _, key := range keys {
			value, _ := a.cfg.Get(key)
			fmt.Printf("%s = %s\n", ui.Accent("%s", key), value)
		}
	},
}

var configWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reload settings when the config file changes on disk",
	Long: `Watch the config file and reload it on every external change.

Useful while the web app and the CLI share one data directory: edits made
by either side become visible to the other without restarting.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()

		watcher, err := config.NewWatcher(a.cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Println(ui.Muted("watching %s (Ctrl+C to stop)", a.cfg.Path()))
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configRemoveCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configWatchCmd)
	rootCmd.AddCommand(configCmd)
}
