package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/schema"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ui"
)

var expenseCmd = &cobra.Command{
	Use:     "expense",
	GroupID: "budget",
	Short:   "Manage expenses",
}

var expenseAddCmd = &cobra.Command{
	Use:   "add <title> <value>",
	Short: "Add an expense to a month",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		monthID, _ := cmd.Flags().GetString("month")
		category, _ := cmd.Flags().GetString("category")
		paid, _ := cmd.Flags().GetBool("paid")
		subcategory, _ := cmd.Flags().GetString("subcategory")
		installment, _ := cmd.Flags().GetInt("installment")
		installments, _ := cmd.Flags().GetInt("installments")

		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		payload := map[string]any{
			"month_id":     monthID,
			"title":        args[0],
			"category_key": category,
			"value":        args[1],
			"paid":         paid,
		}
		if subcategory != "" {
			payload["subcategory_id"] = subcategory
		}
		if installments > 0 {
			payload["installment_total"] = installments
			payload["installment_number"] = installment
		}
		parsed := schema.ParseCreateExpense(payload)
		if !parsed.OK {
			exitIssues(parsed.Issues)
		}

		e := &types.Expense{
			FamilyID:          f.ID,
			MonthID:           parsed.Value.MonthID,
			Title:             parsed.Value.Title,
			CategoryKey:       parsed.Value.CategoryKey,
			Value:             parsed.Value.Value,
			Paid:              parsed.Value.Paid,
			SubcategoryID:     parsed.Value.SubcategoryID,
			InstallmentNumber: parsed.Value.InstallmentNumber,
			InstallmentTotal:  parsed.Value.InstallmentTotal,
		}
		if err := a.db.InsertExpense(ctx, e); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := a.writeThrough(ctx, f, types.KindExpense, types.ActionInsert, e.ID, toMap(parsed.Value)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("added %s (%s) as %s", e.Title, e.Value.StringFixed(2), ui.Accent("%s", e.ID)))
	},
}

var expenseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List expenses for the current family",
	Run: func(cmd *cobra.Command, args []string) {
		monthID, _ := cmd.Flags().GetString("month")

		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		expenses, err := a.db.ListExpenses(ctx, f.ID, monthID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(expenses) == 0 {
			fmt.Println(ui.Muted("no expenses"))
			return
		}
		for _, e := range expenses {
			status := ui.Muted("unpaid")
			if e.Paid {
				status = ui.Pass("paid")
			}
			line := fmt.Sprintf("%s  %-24s %10s  %-13s %s",
				ui.Accent("%s", e.ID), e.Title, e.Value.StringFixed(2), e.CategoryKey, status)
			if e.InstallmentTotal > 0 {
				line += ui.Muted("  (%d/%d)", e.InstallmentNumber, e.InstallmentTotal)
			}
			fmt.Println(line)
		}
	},
}

var expensePayCmd = &cobra.Command{
	Use:   "pay <id>",
	Short: "Mark an expense as paid",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		parsed := schema.ParseUpdateExpense(map[string]any{"paid": true})
		if !parsed.OK {
			exitIssues(parsed.Issues)
		}

		e, err := a.db.GetExpense(ctx, f.ID, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		e.Paid = true
		if err := a.db.UpdateExpense(ctx, e); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := a.writeThrough(ctx, f, types.KindExpense, types.ActionUpdate, e.ID, toMap(parsed.Value)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("%s marked paid", e.Title))
	},
}

var expenseRemoveCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete an expense",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := a.db.DeleteExpense(ctx, f.ID, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := a.writeThrough(ctx, f, types.KindExpense, types.ActionDelete, args[0], nil); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("deleted expense %s", args[0]))
	},
}

var subcategoryAddCmd = &cobra.Command{
	Use:   "subcategory-add <category> <name>",
	Short: "Define a subcategory under one of the fixed categories",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		parsed := schema.ParseCreateSubcategory(map[string]any{
			"category_key": args[0], "name": args[1],
		})
		if !parsed.OK {
			exitIssues(parsed.Issues)
		}

		s := &types.Subcategory{FamilyID: f.ID, CategoryKey: parsed.Value.CategoryKey, Name: parsed.Value.Name}
		if err := a.db.InsertSubcategory(ctx, s); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := a.writeThrough(ctx, f, types.KindSubcategory, types.ActionInsert, s.ID, toMap(parsed.Value)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("added subcategory %s under %s", s.Name, s.CategoryKey))
	},
}

var limitSetCmd = &cobra.Command{
	Use:   "limit-set <category> <percentage>",
	Short: "Cap a category at a percentage of monthly income",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		parsed := schema.ParseCategoryLimit(map[string]any{
			"category_key": args[0], "percentage": args[1],
		})
		if !parsed.OK {
			exitIssues(parsed.Issues)
		}

		l := &types.CategoryLimit{FamilyID: f.ID, CategoryKey: parsed.Value.CategoryKey, Percentage: parsed.Value.Percentage}
		if err := a.db.UpsertCategoryLimit(ctx, l); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := a.writeThrough(ctx, f, types.KindCategoryLimit, types.ActionInsert, l.ID, toMap(parsed.Value)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("%s capped at %s%% of income", l.CategoryKey, l.Percentage))
	},
}

func init() {
	expenseAddCmd.Flags().String("month", "", "month id (required)")
	expenseAddCmd.Flags().String("category", "", "category key: essenciais, lazer, or investimentos")
	expenseAddCmd.Flags().Bool("paid", false, "mark as already paid")
	expenseAddCmd.Flags().String("subcategory", "", "subcategory id")
	expenseAddCmd.Flags().Int("installment", 1, "installment number")
	expenseAddCmd.Flags().Int("installments", 0, "total installments (0 = not installment-based)")
	_ = expenseAddCmd.MarkFlagRequired("month")
	_ = expenseAddCmd.MarkFlagRequired("category")

	expenseListCmd.Flags().String("month", "", "filter by month id")

	expenseCmd.AddCommand(expenseAddCmd)
	expenseCmd.AddCommand(expenseListCmd)
	expenseCmd.AddCommand(expensePayCmd)
	expenseCmd.AddCommand(expenseRemoveCmd)
	expenseCmd.AddCommand(subcategoryAddCmd)
	expenseCmd.AddCommand(limitSetCmd)
	rootCmd.AddCommand(expenseCmd)
}
