package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/schema"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ui"
)

var monthCmd = &cobra.Command{
	Use:     "month",
	GroupID: "budget",
	Short:   "Manage budgeting months",
}

var monthAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Open a budgeting month for the current family",
	Long: `Open a budgeting month.

The period can be given explicitly with --year and --month, or in natural
language with --at:

  mfb month add --year 2026 --month 3 --income 5000
  mfb month add --at "next month" --income 5000`,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		year, _ := cmd.Flags().GetInt("year")
		monthNum, _ := cmd.Flags().GetInt("month")
		income, _ := cmd.Flags().GetString("income")
		at, _ := cmd.Flags().GetString("at")

		if at != "" {
			t, err := parseNaturalDate(at)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			year, monthNum = t.Year(), int(t.Month())
		}
		if name == "" {
			name = time.Month(monthNum).String()
		}

		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		payload := map[string]any{"name": name, "year": year, "month": monthNum}
		if income != "" {
			payload["income"] = income
		}
		parsed := schema.ParseCreateMonth(payload)
		if !parsed.OK {
			exitIssues(parsed.Issues)
		}

		m := &types.Month{
			FamilyID: f.ID,
			Name:     parsed.Value.Name,
			Year:     parsed.Value.Year,
			Month:    parsed.Value.Month,
			Income:   parsed.Value.Income,
		}
		if err := a.db.InsertMonth(ctx, m); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := a.writeThrough(ctx, f, types.KindMonth, types.ActionInsert, m.ID, toMap(parsed.Value)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("opened %04d-%02d as %s", m.Year, m.Month, ui.Accent("%s", m.ID)))
	},
}

var monthListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the current family's months",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		months, err := a.db.ListMonths(ctx, f.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(months) == 0 {
			fmt.Println(ui.Muted("no months yet; run 'mfb month add'"))
			return
		}
		for _, m := range months {
			fmt.Printf("%s  %04d-%02d  %-12s income %s\n",
				ui.Accent("%s", m.ID), m.Year, m.Month, m.Name, m.Income.StringFixed(2))
		}
	},
}

var monthIncomeAddCmd = &cobra.Command{
	Use:   "income-add <month-id> <name> <value>",
	Short: "Record one income contribution for a month",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		parsed := schema.ParseCreateIncomeSource(map[string]any{
			"month_id": args[0], "name": args[1], "value": args[2],
		})
		if !parsed.OK {
			exitIssues(parsed.Issues)
		}

		s := &types.IncomeSource{
			FamilyID: f.ID,
			MonthID:  parsed.Value.MonthID,
			Name:     parsed.Value.Name,
			Value:    parsed.Value.Value,
		}
		if err := a.db.InsertIncomeSource(ctx, s); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := a.writeThrough(ctx, f, types.KindIncomeSource, types.ActionInsert, s.ID, toMap(parsed.Value)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("recorded %s: %s", s.Name, s.Value.StringFixed(2)))
	},
}

// parseNaturalDate resolves expressions like "next month" or "march 2027".
func parseNaturalDate(text string) (time.Time, error) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	r, err := w.Parse(text, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand date %q", text)
	}
	return r.Time, nil
}

func init() {
	monthAddCmd.Flags().String("name", "", "display name (default: month name)")
	monthAddCmd.Flags().Int("year", time.Now().Year(), "year")
	monthAddCmd.Flags().Int("month", int(time.Now().Month()), "month number (1-12)")
	monthAddCmd.Flags().String("income", "", "expected income for the month")
	monthAddCmd.Flags().String("at", "", "natural language period, e.g. \"next month\"")

	monthCmd.AddCommand(monthAddCmd)
	monthCmd.AddCommand(monthListCmd)
	monthCmd.AddCommand(monthIncomeAddCmd)
	rootCmd.AddCommand(monthCmd)
}
