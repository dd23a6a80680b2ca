package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DaveSongnata/BitTask/internal/sync"
	"github.com/DaveSongnata/BitTask/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Replay the offline queue to the server and pull remote changes",
	Long: `Replay the offline queue to the server and pull remote changes.

The server is sync.url (BITTASK_SYNC_URL); the bearer token comes from
sync.token, usually set through BITTASK_SYNC_TOKEN.

Conflicts are settled by last write wins: a queued change newer than the
server's copy is resent with force, an older one is dropped. Entries that
keep failing stop being retried after sync.max_retries attempts; see
'bittask queue exhausted'.

  bittask sync             # one pass
  bittask sync --loop      # keep syncing every sync.interval`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		if a.cfg.Sync.URL == "" {
			a.fail("sync.url is not set (config file or BITTASK_SYNC_URL)")
		}
		remote, err := sync.NewHTTPRemote(a.cfg.Sync.URL, a.cfg.Sync.Token, nil)
		if err != nil {
			a.fail("%v", err)
		}
		driver, err := sync.NewDriver(a.db, a.queue, remote, sync.Config{
			MaxRetries:      a.cfg.Sync.MaxRetries,
			BatchSize:       a.cfg.Sync.BatchSize,
			Interval:        a.cfg.Sync.Interval,
			CleanupInterval: a.cfg.Sync.CleanupInterval,
		}, a.logger)
		if err != nil {
			a.fail("%v", err)
		}

		if loop, _ := cmd.Flags().GetBool("loop"); loop {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			fmt.Printf("%s Syncing with %s every %v\n", ui.RenderAccent("🔄"), a.cfg.Sync.URL, a.cfg.Sync.Interval)
			fmt.Println("\nPress Ctrl+C to stop...")
			if err := driver.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				a.fail("%v", err)
			}
			fmt.Println("\nSync stopped")
			return
		}

		report, err := driver.SyncOnce(cmd.Context())
		if err != nil {
			a.fail("%v", err)
		}
		emit(report, func() { printReport(report) })
	},
}

func printReport(r *sync.Report) {
	mark := ui.RenderPass("✓")
	if r.Failed > 0 || r.PullErr != "" {
		mark = ui.RenderWarn("⚠")
	}
	fmt.Printf("%s Sync complete in %v\n", mark, r.Duration.Round(time.Millisecond))
	fmt.Printf("   Pushed:     %d", r.Pushed)
	if r.Forced > 0 {
		fmt.Printf(" (%d forced)", r.Forced)
	}
	fmt.Println()
	if r.Superseded > 0 {
		fmt.Printf("   Superseded: %d\n", r.Superseded)
	}
	if r.Failed > 0 {
		fmt.Printf("   Failed:     %s\n", ui.RenderFail(fmt.Sprintf("%d", r.Failed)))
	}
	if r.HeldBack > 0 {
		fmt.Printf("   Held back:  %d\n", r.HeldBack)
	}
	fmt.Printf("   Pulled:     %d", r.Pulled)
	if r.Deleted > 0 {
		fmt.Printf(", %d deleted", r.Deleted)
	}
	if r.Skipped > 0 {
		fmt.Printf(", %d skipped for local changes", r.Skipped)
	}
	fmt.Println()
	if r.PullErr != "" {
		fmt.Printf("   Pull error: %s\n", ui.RenderFail(r.PullErr))
	}
}

func init() {
	syncCmd.Flags().Bool("loop", false, "keep syncing until interrupted")
	rootCmd.AddCommand(syncCmd)
}
