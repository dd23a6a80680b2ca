package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/DaveSongnata/BitTask/internal/types"
	"github.com/DaveSongnata/BitTask/internal/ui"
)

var boardCmd = &cobra.Command{
	Use:     "board",
	GroupID: "data",
	Short:   "Manage boards",
}

var boardListCmd = &cobra.Command{
	Use:   "list",
	Short: "List boards in display order",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		boards, err := a.svc.Boards.ListBoards(cmd.Context())
		if err != nil {
			a.fail("%v", err)
		}
		counts := make(map[int64]int, len(boards))
		for _, b := range boards {
			n, err := a.db.CountTasks(cmd.Context(), b.ID)
			if err != nil {
				a.fail("%v", err)
			}
			counts[b.ID] = n
		}

		emit(boards, func() {
			for _, b := range boards {
				fmt.Printf("%s %s %s\n",
					ui.RenderAccent(fmt.Sprintf("%4d", b.ID)), b.Name,
					ui.RenderMuted(fmt.Sprintf("(%d tasks)", counts[b.ID])))
			}
		})
	},
}

var boardCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a board at the end of the list",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		board, err := a.svc.Boards.CreateBoard(cmd.Context(), args[0])
		if err != nil {
			a.fail("%v", err)
		}
		emit(board, func() {
			fmt.Printf("%s Created board %d: %s\n", ui.RenderPass("✓"), board.ID, board.Name)
		})
	},
}

var boardRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a board",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		id, err := parseID("board", args[0])
		if err != nil {
			a.fail("%v", err)
		}
		board, err := a.svc.Boards.RenameBoard(cmd.Context(), id, args[1])
		if err != nil {
			a.fail("%v", err)
		}
		if board == nil {
			a.fail("board %d not found", id)
		}
		emit(board, func() {
			fmt.Printf("%s Renamed board %d to %s\n", ui.RenderPass("✓"), board.ID, board.Name)
		})
	},
}

var boardReorderCmd = &cobra.Command{
	Use:   "reorder <id>...",
	Short: "Set the display order of boards",
	Long: `Set the display order of boards. Each listed board takes its position in
the argument list; boards not listed keep their current order value.

Board order is local and is not recorded in the offline queue.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		ids, err := parseIDs("board", args)
		if err != nil {
			a.fail("%v", err)
		}
		if err := a.svc.Boards.ReorderBoards(cmd.Context(), ids); err != nil {
			a.fail("%v", err)
		}
		fmt.Printf("%s Reordered %d boards\n", ui.RenderPass("✓"), len(ids))
	},
}

var boardDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a board, moving its tasks to another board",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		id, err := parseID("board", args[0])
		if err != nil {
			a.fail("%v", err)
		}
		moving, err := a.db.CountTasks(cmd.Context(), id)
		if err != nil {
			a.fail("%v", err)
		}
		deleted, err := a.svc.Boards.DeleteBoard(cmd.Context(), id)
		if err != nil {
			a.fail("%v", err)
		}
		if !deleted {
			a.fail("board %d not deleted: it does not exist or is the only board", id)
		}
		emit(map[string]any{"deleted": id, "movedTasks": moving}, func() {
			fmt.Printf("%s Deleted board %d\n", ui.RenderPass("✓"), id)
			if moving > 0 {
				fmt.Printf("   Moved %d tasks to the first remaining board\n", moving)
			}
		})
	},
}

// lookupBoard looks up a board for display; unknown IDs render as nil.
func (a *app) lookupBoard(cmd *cobra.Command, id int64) *types.Board {
	board, err := a.svc.Boards.GetBoard(cmd.Context(), id)
	if err != nil {
		a.fail("%v", err)
	}
	return board
}

func init() {
	boardCmd.AddCommand(boardListCmd, boardCreateCmd, boardRenameCmd, boardReorderCmd, boardDeleteCmd)
	rootCmd.AddCommand(boardCmd)
}
