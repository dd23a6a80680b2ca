package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DaveSongnata/BitTask/internal/types"
	"github.com/DaveSongnata/BitTask/internal/ui"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "sync",
	Short:   "Inspect the offline mutation queue",
	Long: `Inspect the offline mutation queue.

Every task and attachment change is recorded here until the server accepts
it. Entries that failed sync.max_retries times are exhausted: they are no
longer retried until reset.`,
}

func runOpList(title string, list func(a *app, cmd *cobra.Command) ([]*types.OfflineOp, error)) func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		ops, err := list(a, cmd)
		if err != nil {
			a.fail("%v", err)
		}
		emit(ops, func() {
			if len(ops) == 0 {
				fmt.Println(ui.RenderMuted("No " + title + " entries"))
				return
			}
			for _, op := range ops {
				printOpLine(op, a.cfg.Sync.MaxRetries)
			}
			fmt.Println(ui.RenderMuted(fmt.Sprintf("%d %s entries", len(ops), title)))
		})
	}
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every entry, synced or not",
	Args:  cobra.NoArgs,
	Run: runOpList("queued", func(a *app, cmd *cobra.Command) ([]*types.OfflineOp, error) {
		return a.queue.ListAll(cmd.Context())
	}),
}

var queuePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List unsynced entries in replay order",
	Args:  cobra.NoArgs,
	Run: runOpList("pending", func(a *app, cmd *cobra.Command) ([]*types.OfflineOp, error) {
		return a.queue.ListPending(cmd.Context())
	}),
}

var queueReadyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List entries the next sync would send",
	Args:  cobra.NoArgs,
	Run: runOpList("ready", func(a *app, cmd *cobra.Command) ([]*types.OfflineOp, error) {
		return a.queue.GetReadyForSync(cmd.Context(), a.cfg.Sync.MaxRetries)
	}),
}

var queueExhaustedCmd = &cobra.Command{
	Use:   "exhausted",
	Short: "List entries that need manual intervention",
	Args:  cobra.NoArgs,
	Run: runOpList("exhausted", func(a *app, cmd *cobra.Command) ([]*types.OfflineOp, error) {
		return a.queue.ListExhausted(cmd.Context(), a.cfg.Sync.MaxRetries)
	}),
}

var queueResetCmd = &cobra.Command{
	Use:   "reset <id>...",
	Short: "Make exhausted entries eligible for sync again",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		ids, err := parseIDs("queue entry", args)
		if err != nil {
			a.fail("%v", err)
		}
		failed := false
		for _, id := range ids {
			ok, err := a.queue.ResetRetries(cmd.Context(), id)
			if err != nil {
				a.fail("%v", err)
			}
			if !ok {
				fmt.Printf("%s Entry %d is unknown or already synced\n", ui.RenderWarn("⚠"), id)
				failed = true
				continue
			}
			fmt.Printf("%s Reset entry %d\n", ui.RenderPass("✓"), id)
		}
		if failed {
			a.fail("some entries were not reset")
		}
	},
}

var queueCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete entries the server already accepted",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		n, err := a.queue.CleanupSynced(cmd.Context())
		if err != nil {
			a.fail("%v", err)
		}
		emit(map[string]int64{"removed": n}, func() {
			fmt.Printf("%s Removed %d synced entries\n", ui.RenderPass("✓"), n)
		})
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd, queuePendingCmd, queueReadyCmd, queueExhaustedCmd, queueResetCmd, queueCleanupCmd)
	rootCmd.AddCommand(queueCmd)
}
