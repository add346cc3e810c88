package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/config"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/schema"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/types"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ui"
)

var familyCmd = &cobra.Command{
	Use:     "family",
	GroupID: "budget",
	Short:   "Manage families",
	Long: `Create, list, select, and remove families.

A family created here starts offline: it lives only in the local database
until 'mfb sync' migrates it to the remote backend.`,
}

var familyCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new offline family",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		parsed := schema.ParseCreateFamily(map[string]any{"name": args[0]})
		if !parsed.OK {
			exitIssues(parsed.Issues)
		}

		f := &types.Family{Name: parsed.Value.Name, IsOffline: true}
		if err := a.db.InsertFamily(ctx, f); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		a.cfg.Set(config.KeyCurrentFamily, f.ID)
		fmt.Println(ui.Pass("created family %s", ui.Accent("%s", f.ID)))
		fmt.Println(ui.Muted("now the current family; run 'mfb sync' when you want it online"))
	},
}

var familyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List families",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()

		families, err := a.db.ListFamilies(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(families) == 0 {
			fmt.Println(ui.Muted("no families yet; run 'mfb family create <name>'"))
			return
		}

		current, _ := a.cfg.Get(config.KeyCurrentFamily)
		for _, f := range families {
			marker := " "
			if f.ID == current {
				marker = "*"
			}
			fmt.Printf("%s %s  %s  [%s]\n", marker, ui.Accent("%s", f.ID), f.Name, offlineBadge(f))
		}
	},
}

var familyUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Select the current family",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.db.GetFamily(ctx, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !a.cfg.Set(config.KeyCurrentFamily, f.ID) {
			fmt.Fprintf(os.Stderr, "Error: family id rejected by config validation\n")
			os.Exit(1)
		}
		fmt.Println(ui.Pass("current family is now %s (%s)", ui.Accent("%s", f.ID), f.Name))
	},
}

var familyRemoveCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a family and everything it owns locally",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		if err := a.db.DeleteFamily(ctx, args[0]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if current, _ := a.cfg.Get(config.KeyCurrentFamily); current == args[0] {
			a.cfg.Remove(config.KeyCurrentFamily)
		}
		fmt.Println(ui.Pass("deleted family %s", args[0]))
	},
}

var familyMemberAddCmd = &cobra.Command{
	Use:   "member-add <name>",
	Short: "Add a member to the current family",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		role, _ := cmd.Flags().GetString("role")

		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		parsed := schema.ParseFamilyMember(map[string]any{"name": args[0], "role": role})
		if !parsed.OK {
			exitIssues(parsed.Issues)
		}

		m := &types.FamilyMember{FamilyID: f.ID, Name: parsed.Value.Name, Role: parsed.Value.Role}
		if err := a.db.InsertFamilyMember(ctx, m); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := a.writeThrough(ctx, f, types.KindFamilyMember, types.ActionInsert, m.ID, toMap(parsed.Value)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(ui.Pass("added %s as %s", m.Name, m.Role))
	},
}

// exitIssues prints validation issues and exits.
func exitIssues(issues []schema.Issue) {
	for _, issue := range issues {
		fmt.Fprintf(os.Stderr, "Error: %s: %s\n", issue.Field, issue.Message)
	}
	os.Exit(1)
}

func init() {
	familyMemberAddCmd.Flags().String("role", "member", "member role (admin or member)")

	familyCmd.AddCommand(familyCreateCmd)
	familyCmd.AddCommand(familyListCmd)
	familyCmd.AddCommand(familyUseCmd)
	familyCmd.AddCommand(familyRemoveCmd)
	familyCmd.AddCommand(familyMemberAddCmd)
	rootCmd.AddCommand(familyCmd)
}
