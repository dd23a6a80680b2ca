package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DaveSongnata/BitTask/internal/livefeed"
	"github.com/DaveSongnata/BitTask/internal/ui"
	"github.com/DaveSongnata/BitTask/internal/watch"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "sync",
	Short:   "Serve live board snapshots over WebSocket",
	Long: `Start an HTTP server that streams board snapshots to WebSocket clients.

A client connects to /ws?board=<id> and receives a snapshot message with the
board's tasks and the pending queue count, then a new one after every
change, including changes made by other bittask processes.

Endpoints:
  GET /ws?board=<id>          WebSocket snapshot stream
  GET /health                 liveness and pending count
  GET /api/boards             boards in display order
  GET /api/boards/<id>/tasks  tasks of a board, ?q= to search`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		port := a.cfg.Feed.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}

		watcher, err := watch.New(a.cfg.DB.Path, a.db, watch.Config{
			Debounce: a.cfg.Watch.Debounce,
			Logger:   a.logger,
		})
		if err != nil {
			a.fail("%v", err)
		}
		if err := watcher.Start(); err != nil {
			a.fail("failed to start watcher: %v", err)
		}

		server := livefeed.NewServer(a.db, a.svc, a.queue, livefeed.Config{
			Port:   port,
			Logger: a.logger,
		})
		if err := server.Start(); err != nil {
			_ = watcher.Stop()
			a.fail("failed to start live feed: %v", err)
		}

		fmt.Printf("%s Live feed on http://%s\n", ui.RenderPass("✓"), server.Addr())
		fmt.Printf("   WebSocket: ws://%s/ws?board=<id>\n", server.Addr())
		fmt.Printf("   Database:  %s\n", a.cfg.DB.Path)
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
		if err := watcher.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error stopping watcher: %v\n", err)
		}
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "port to listen on (default feed.port, 8080)")
	rootCmd.AddCommand(serveCmd)
}
