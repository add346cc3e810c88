package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/schema"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ui"
)

var goalCmd = &cobra.Command{
	Use:     "goal",
	GroupID: "budget",
	Short:   "Manage savings goals",
}

var goalAddCmd = &cobra.Command{
	Use:   "add <name> <target>",
	Short: "Create a savings goal",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		deadline, _ := cmd.Flags().GetString("deadline")

		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		payload := map[string]any{"name": args[0], "target_value": args[1]}
		if deadline != "" {
			t, err := parseNaturalDate(deadline)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			payload["deadline"] = t.Format(time.RFC3339)
		}
		parsed := schema.ParseCreateGoal(payload)
		if !parsed.OK {
			exitIssues(parsed.Issues)
		}

		g := &types.Goal{
			FamilyID:    f.ID,
			Name:        parsed.Value.Name,
			TargetValue: parsed.Value.TargetValue,
			Deadline:    parsed.Value.Deadline,
		}
		if err := a.db.InsertGoal(ctx, g); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := a.writeThrough(ctx, f, types.KindGoal, types.ActionInsert, g.ID, toMap(parsed.Value)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("created goal %s targeting %s", ui.Accent("%s", g.ID), g.TargetValue.StringFixed(2)))
	},
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals with saved totals",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		goals, err := a.db.ListGoals(ctx, f.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(goals) == 0 {
			fmt.Println(ui.Muted("no goals yet"))
			return
		}

		for _, g := range goals {
			entries, err := a.db.ListGoalEntries(ctx, f.ID, g.ID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			saved := decimal.Zero
			for _, e := range entries {
				saved = saved.Add(e.Value)
			}
			line := fmt.Sprintf("%s  %-20s %s / %s",
				ui.Accent("%s", g.ID), g.Name, saved.StringFixed(2), g.TargetValue.StringFixed(2))
			if g.Deadline != nil {
				line += ui.Muted("  by %s", g.Deadline.Format("2006-01-02"))
			}
			fmt.Println(line)
		}
	},
}

var goalDepositCmd = &cobra.Command{
	Use:   "deposit <goal-id> <value>",
	Short: "Record a deposit against a goal",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		note, _ := cmd.Flags().GetString("note")

		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		payload := map[string]any{
			"goal_id": args[0],
			"value":   args[1],
			"date":    time.Now().UTC().Format(time.RFC3339),
		}
		if note != "" {
			payload["note"] = note
		}
		parsed := schema.ParseCreateGoalEntry(payload)
		if !parsed.OK {
			exitIssues(parsed.Issues)
		}

		e := &types.GoalEntry{
			FamilyID: f.ID,
			GoalID:   parsed.Value.GoalID,
			Value:    parsed.Value.Value,
			Date:     parsed.Value.Date,
			Note:     parsed.Value.Note,
		}
		if err := a.db.InsertGoalEntry(ctx, e); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := a.writeThrough(ctx, f, types.KindGoalEntry, types.ActionInsert, e.ID, toMap(parsed.Value)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("deposited %s", e.Value.StringFixed(2)))
	},
}

func init() {
	goalAddCmd.Flags().String("deadline", "", "target date, natural language accepted")
	goalDepositCmd.Flags().String("note", "", "optional note")

	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalListCmd)
	goalCmd.AddCommand(goalDepositCmd)
	rootCmd.AddCommand(goalCmd)
}
