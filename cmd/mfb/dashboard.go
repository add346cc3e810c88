package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LuanCampos/monthly-family-budget-sub002/internal/config"
	"github.com/LuanCampos/monthly-family-budget-sub002/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Start the WebSocket dashboard for sync monitoring",
	Long: `Start a WebSocket server that broadcasts sync activity in real time.

Connected clients receive:
- sync_progress: a migration stage advancing
- sync_complete: a family finished migrating, with the identifier handoff
- queue_depth: pending and dead mutation counts for the selected family,
  published on a fixed polling interval

Example usage:
  mfb dashboard                  # Start on default port 8080
  mfb dashboard --port 9000      # Start on custom port

Connect with a WebSocket client:
  ws://localhost:8080/ws`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		interval, _ := cmd.Flags().GetDuration("poll")

		a := mustApp()
		defer a.Close()

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: log.New(os.Stderr, "", log.LstdFlags),
		})

		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Dashboard listening on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		go pollQueueDepth(ctx, a, server, interval)

		<-ctx.Done()

		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
	},
}

// pollQueueDepth publishes the selected family's queue counts on every tick
// so clients can watch the backlog move without a sync running.
func pollQueueDepth(ctx context.Context, a *app, server *dashboard.Server, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id, ok := a.cfg.Get(config.KeyCurrentFamily)
			if !ok || id == "" {
				continue
			}
			pending, dead, err := a.queue.Depth(ctx, id)
			if err != nil {
				a.logger.Printf("[dashboard] failed to read queue depth: %v", err)
				continue
			}
			server.PublishQueueDepth(id, pending, dead)
		}
	}
}

func init() {
	dashboardCmd.Flags().Int("port", 8080, "port to listen on")
	dashboardCmd.Flags().Duration("poll", 2*time.Second, "queue depth polling interval")
	rootCmd.AddCommand(dashboardCmd)
}
