package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DaveSongnata/BitTask/internal/types"
	"github.com/DaveSongnata/BitTask/internal/ui"
)

var subtaskCmd = &cobra.Command{
	Use:     "subtask",
	GroupID: "data",
	Short:   "Manage a task's checklist",
}

var subtaskListCmd = &cobra.Command{
	Use:   "list <#n>",
	Short: "List the subtasks of a task",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		task := a.mustTask(cmd, args[0])
		subtasks, err := a.svc.Subtasks.ListSubtasks(cmd.Context(), task.ID)
		if err != nil {
			a.fail("%v", err)
		}
		emit(subtasks, func() {
			done := 0
			for _, s := range subtasks {
				if s.Completed {
					done++
				}
				fmt.Printf("%s %s %s\n", ui.Checkbox(s.Completed), ui.RenderMuted(fmt.Sprintf("%4d", s.ID)), s.Title)
			}
			fmt.Printf("%s\n", ui.RenderMuted(fmt.Sprintf("%d/%d done", done, len(subtasks))))
		})
	},
}

var subtaskAddCmd = &cobra.Command{
	Use:   "add <#n> <title>",
	Short: "Append a subtask",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		task := a.mustTask(cmd, args[0])
		sub, err := a.svc.Subtasks.CreateSubtask(cmd.Context(), task.ID, strings.Join(args[1:], " "))
		if err != nil {
			a.fail("%v", err)
		}
		if sub == nil {
			a.fail("task %s not found", task.Citation())
		}
		emit(sub, func() {
			fmt.Printf("%s Added subtask %d to %s\n", ui.RenderPass("✓"), sub.ID, ui.RenderAccent(task.Citation()))
		})
	},
}

var subtaskRenameCmd = &cobra.Command{
	Use:   "rename <id> <title>",
	Short: "Change a subtask's title",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		id, err := parseID("subtask", args[0])
		if err != nil {
			a.fail("%v", err)
		}
		title := strings.Join(args[1:], " ")
		sub, err := a.svc.Subtasks.UpdateSubtask(cmd.Context(), id, types.SubtaskPatch{Title: &title})
		if err != nil {
			a.fail("%v", err)
		}
		if sub == nil {
			a.fail("subtask %d not found", id)
		}
		emit(sub, func() {
			fmt.Printf("%s Renamed subtask %d\n", ui.RenderPass("✓"), sub.ID)
		})
	},
}

var subtaskToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Check or uncheck a subtask",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		id, err := parseID("subtask", args[0])
		if err != nil {
			a.fail("%v", err)
		}
		sub, err := a.svc.Subtasks.ToggleSubtask(cmd.Context(), id)
		if err != nil {
			a.fail("%v", err)
		}
		if sub == nil {
			a.fail("subtask %d not found", id)
		}
		emit(sub, func() {
			fmt.Printf("%s %s\n", ui.Checkbox(sub.Completed), sub.Title)
		})
	},
}

var subtaskDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a subtask",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		id, err := parseID("subtask", args[0])
		if err != nil {
			a.fail("%v", err)
		}
		deleted, err := a.svc.Subtasks.DeleteSubtask(cmd.Context(), id)
		if err != nil {
			a.fail("%v", err)
		}
		if !deleted {
			a.fail("subtask %d not found", id)
		}
		fmt.Printf("%s Deleted subtask %d\n", ui.RenderPass("✓"), id)
	},
}

var subtaskReorderCmd = &cobra.Command{
	Use:   "reorder <#n> <id>...",
	Short: "Reorder a task's subtasks",
	Long: `Reorder a task's subtasks. Every subtask of the task must be listed
exactly once, in the new order.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		task := a.mustTask(cmd, args[0])
		ids, err := parseIDs("subtask", args[1:])
		if err != nil {
			a.fail("%v", err)
		}
		if err := a.svc.Subtasks.ReorderSubtasks(cmd.Context(), task.ID, ids); err != nil {
			a.fail("%v", err)
		}
		fmt.Printf("%s Reordered %d subtasks of %s\n", ui.RenderPass("✓"), len(ids), ui.RenderAccent(task.Citation()))
	},
}

func init() {
	subtaskCmd.AddCommand(subtaskListCmd, subtaskAddCmd, subtaskRenameCmd, subtaskToggleCmd, subtaskDeleteCmd, subtaskReorderCmd)
	rootCmd.AddCommand(subtaskCmd)
}
