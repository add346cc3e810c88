package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/config"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/syncer"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Migrate the current offline family to the remote backend",
	Long: `Migrate the current family from the local database to the remote backend.

The migration copies every row in dependency order (months before
expenses, goals before deposits), replays queued mutations, and then
rewrites the local identifiers to the remote ones. If anything fails the
local data is left exactly as it was and the sync can be retried.`,
	Run: func(cmd *cobra.Command, args []string) {
		yes, _ := cmd.Flags().GetBool("yes")

		a := mustApp()
		defer a.Close()
		ctx := context.Background()

		f, err := a.currentFamily(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if !yes {
			var confirmed bool
			prompt := huh.NewConfirm().
				Title(fmt.Sprintf("Migrate family %q to the remote backend?", f.Name)).
				Description("Local identifiers will be rewritten. This is one-way.").
				Value(&confirmed)
			if err := prompt.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !confirmed {
				fmt.Println(ui.Muted("sync cancelled"))
				return
			}
		}

		start := time.Now()
		res, err := a.engine().SyncFamily(ctx, f.ID, func(p syncer.Progress) {
			if p.Total == 0 {
				return
			}
			fmt.Printf("\r%s %-20s %d/%d %s", ui.Muted("syncing"), p.Stage, p.Done, p.Total,
				ui.Muted("%-50s", p.Details))
			if p.Done == p.Total {
				fmt.Println()
			}
		})
		if err != nil {
			fmt.Println(ui.Fail("sync failed: %v", err))
			fmt.Println(ui.Muted("local data is untouched; fix the cause and retry"))
			os.Exit(1)
		}

		a.cfg.Set(config.KeyCurrentFamily, res.NewFamilyID)

		fmt.Println(ui.Pass("family migrated in %s", time.Since(start).Round(time.Millisecond)))
		fmt.Printf("  %s is now %s\n", ui.Muted("%s", res.OldFamilyID), ui.Accent("%s", res.NewFamilyID))
		fmt.Printf("  %d rows migrated, %d queued mutations delivered\n", res.Migrated, res.Drained)
	},
}

func init() {
	syncCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(syncCmd)
}
