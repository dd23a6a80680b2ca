package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/DaveSongnata/BitTask/internal/live"
	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
	"github.com/DaveSongnata/BitTask/internal/ui"
	"github.com/DaveSongnata/BitTask/internal/watch"
)

type boardView struct {
	Tasks   []*types.Task `json:"tasks" yaml:"tasks"`
	Pending int           `json:"pending" yaml:"pending"`
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Print tasks again whenever they change",
	Long: `Print the task list and re-print it whenever it changes, including
changes made by other bittask processes on the same database.

  bittask watch                  # all tasks
  bittask watch --board 2        # one board`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		var filter types.TaskFilter
		if cmd.Flags().Changed("board") {
			id, _ := cmd.Flags().GetInt64("board")
			filter.BoardID = &id
		}

		watcher, err := watch.New(a.cfg.DB.Path, a.db, watch.Config{
			Debounce: a.cfg.Watch.Debounce,
			Logger:   a.logger,
		})
		if err != nil {
			a.fail("%v", err)
		}
		if err := watcher.Start(); err != nil {
			a.fail("%v", err)
		}
		defer func() { _ = watcher.Stop() }()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		q := live.Watch(ctx, a.db, []store.Table{store.TableTasks, store.TableOfflineOps},
			func(ctx context.Context) (*boardView, error) {
				tasks, err := a.svc.Tasks.ListTasks(ctx, filter)
				if err != nil {
					return nil, err
				}
				pending, err := a.queue.CountPending(ctx)
				if err != nil {
					return nil, err
				}
				return &boardView{Tasks: tasks, Pending: pending}, nil
			})
		defer q.Close()

		for res := range q.Updates() {
			if res.Err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), res.Err)
				continue
			}
			view := res.Value
			emit(view, func() {
				fmt.Printf("\n%s %s\n", ui.RenderHeader(time.Now().Format("15:04:05")),
					ui.RenderMuted(fmt.Sprintf("%d tasks, %d pending sync", len(view.Tasks), view.Pending)))
				for _, t := range view.Tasks {
					printTaskLine(t)
				}
			})
		}
	},
}

func init() {
	watchCmd.Flags().Int64P("board", "b", 0, "only tasks on this board")
	rootCmd.AddCommand(watchCmd)
}
