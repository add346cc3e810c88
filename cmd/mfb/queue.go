package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ui"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "sync",
	Short:   "Inspect and manage queued mutations",
	Long: `Inspect the durable mutation queue.

Mutations made while a family is offline wait here until 'mfb sync'
replays them. Items that fail repeatedly against the backend are parked
as dead letters; 'mfb queue retry' puts one back in line.`,
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending mutations for the current family",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		pending, dead, err := a.queue.Depth(ctx, f.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("%s pending, %s dead\n",
			ui.Accent("%d", pending), ui.Accent("%d", dead))

		items, err := a.queue.Pending(ctx, f.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		for _, item := range items {
			fmt.Printf("  #%d  %s %s %s\n", item.ID, item.Action, item.Kind, ui.Muted("%s", item.EntityID))
		}
	},
}

var queueDeadCmd = &cobra.Command{
	Use:   "dead",
	Short: "List dead letters for the current family",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		items, err := a.queue.DeadLetters(ctx, f.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(items) == 0 {
			fmt.Println(ui.Muted("no dead letters"))
			return
		}
		for _, item := range items {
			fmt.Printf("#%d  %s %s %s\n", item.ID, item.Action, item.Kind, item.EntityID)
			fmt.Printf("    %s\n", ui.Fail("%s (%d attempts)", item.LastError, item.Attempts))
		}
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <item-id>",
	Short: "Requeue a dead letter",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid item id %q\n", args[0])
			os.Exit(1)
		}

		a := mustApp()
		defer a.Close()

		if err := a.queue.Retry(context.Background(), id); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("item %d requeued", id))
	},
}

var queueDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Deliver pending mutations for an online family",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		drained, err := a.engine().DrainQueue(ctx, f.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("delivered %d queued mutations", drained))

		if _, dead, err := a.queue.Depth(ctx, f.ID); err == nil && dead > 0 {
			fmt.Println(ui.Warn("%d dead letters remain; see 'mfb queue dead'", dead))
		}
	},
}

func init() {
	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queueDeadCmd)
	queueCmd.AddCommand(queueRetryCmd)
	queueCmd.AddCommand(queueDrainCmd)
	rootCmd.AddCommand(queueCmd)
}
