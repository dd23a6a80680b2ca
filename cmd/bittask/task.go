package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/DaveSongnata/BitTask/internal/service"
	"github.com/DaveSongnata/BitTask/internal/types"
	"github.com/DaveSongnata/BitTask/internal/ui"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	GroupID: "data",
	Short:   "Create, edit and search tasks",
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks ordered by citation number.

--search takes either a citation ("#12" or "12"), which matches that task
only, or free text matched case-insensitively against the title,
description and tags.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		filter, err := taskFilterFromFlags(cmd)
		if err != nil {
			a.fail("%v", err)
		}
		tasks, err := a.svc.Tasks.ListTasks(cmd.Context(), filter)
		if err != nil {
			a.fail("%v", err)
		}
		emit(tasks, func() {
			if len(tasks) == 0 {
				fmt.Println(ui.RenderMuted("No tasks"))
				return
			}
			for _, t := range tasks {
				printTaskLine(t)
			}
		})
	},
}

func taskFilterFromFlags(cmd *cobra.Command) (types.TaskFilter, error) {
	var filter types.TaskFilter
	flags := cmd.Flags()

	if flags.Changed("board") {
		id, _ := flags.GetInt64("board")
		filter.BoardID = &id
	}
	open, _ := flags.GetBool("open")
	done, _ := flags.GetBool("done")
	switch {
	case open && done:
		return filter, fmt.Errorf("--open and --done are mutually exclusive")
	case open:
		filter.Completed = ptr(false)
	case done:
		filter.Completed = ptr(true)
	}
	if raw, _ := flags.GetString("priority"); raw != "" {
		p, err := types.ParsePriority(raw)
		if err != nil {
			return filter, err
		}
		filter.Priority = &p
	}
	filter.Tag, _ = flags.GetString("tag")
	filter.Search, _ = flags.GetString("search")
	return filter, nil
}

var taskShowCmd = &cobra.Command{
	Use:   "show <#n>",
	Short: "Show a task with its subtasks and attachments",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		task := a.mustTask(cmd, args[0])
		subtasks, err := a.svc.Subtasks.ListSubtasks(cmd.Context(), task.ID)
		if err != nil {
			a.fail("%v", err)
		}
		attachments, err := a.svc.Attachments.ListAttachments(cmd.Context(), task.ID)
		if err != nil {
			a.fail("%v", err)
		}

		detail := struct {
			types.Task  `yaml:",inline"`
			Subtasks    []*types.Subtask    `json:"subtasks" yaml:"subtasks"`
			Attachments []*types.Attachment `json:"attachments" yaml:"attachments"`
		}{*task, subtasks, attachments}
		emit(detail, func() {
			printTask(task, a.lookupBoard(cmd, task.BoardID), subtasks, attachments)
		})
	},
}

var taskCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		flags := cmd.Flags()
		in := service.CreateTaskInput{Title: strings.Join(args, " ")}
		in.BoardID, _ = flags.GetInt64("board")
		in.Description, _ = flags.GetString("description")
		in.Tags, _ = flags.GetStringSlice("tag")
		if raw, _ := flags.GetString("priority"); raw != "" {
			p, err := types.ParsePriority(raw)
			if err != nil {
				a.fail("%v", err)
			}
			in.Priority = p
		}

		task, err := a.svc.Tasks.CreateTask(cmd.Context(), in)
		if err != nil {
			a.fail("%v", err)
		}
		emit(task, func() {
			fmt.Printf("%s Created %s: %s\n", ui.RenderPass("✓"), ui.RenderAccent(task.Citation()), task.Title)
		})
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <#n>",
	Short: "Change fields of a task",
	Long: `Change fields of a task. Only the flags given are changed; each call
records one update in the offline queue holding just those fields.

  bittask task update 12 --title "Ship it" --priority high
  bittask task update '#12' --tags ops,release
  bittask task update 12 --description ""     # clears the description`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		task := a.mustTask(cmd, args[0])
		patch, err := taskPatchFromFlags(cmd)
		if err != nil {
			a.fail("%v", err)
		}
		updated, err := a.svc.Tasks.UpdateTask(cmd.Context(), task.ID, patch)
		if err != nil {
			a.fail("%v", err)
		}
		if updated == nil {
			a.fail("task %s not found", task.Citation())
		}
		emit(updated, func() {
			fmt.Printf("%s Updated %s\n", ui.RenderPass("✓"), ui.RenderAccent(updated.Citation()))
		})
	},
}

func taskPatchFromFlags(cmd *cobra.Command) (types.TaskPatch, error) {
	var patch types.TaskPatch
	flags := cmd.Flags()

	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		patch.Title = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		patch.Description = &v
	}
	if flags.Changed("tags") {
		v, _ := flags.GetStringSlice("tags")
		patch.Tags = &v
	}
	if flags.Changed("priority") {
		raw, _ := flags.GetString("priority")
		p, err := types.ParsePriority(raw)
		if err != nil {
			return patch, err
		}
		patch.Priority = &p
	}
	if flags.Changed("board") {
		v, _ := flags.GetInt64("board")
		patch.BoardID = &v
	}
	if flags.Changed("completed") {
		v, _ := flags.GetBool("completed")
		patch.Completed = &v
	}
	return patch, nil
}

var taskToggleCmd = &cobra.Command{
	Use:   "toggle <#n>",
	Short: "Flip a task between open and done",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		task := a.mustTask(cmd, args[0])
		updated, err := a.svc.Tasks.ToggleTaskComplete(cmd.Context(), task.ID)
		if err != nil {
			a.fail("%v", err)
		}
		if updated == nil {
			a.fail("task %s not found", task.Citation())
		}
		emit(updated, func() {
			state := "open"
			if updated.Completed {
				state = "done"
			}
			fmt.Printf("%s %s is now %s\n", ui.RenderPass("✓"), ui.RenderAccent(updated.Citation()), state)
		})
	},
}

var taskDeleteCmd = &cobra.Command{
	Use:   "delete <#n>",
	Short: "Delete a task with its subtasks and attachments",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp(cmd)
		defer a.Close()

		task := a.mustTask(cmd, args[0])
		deleted, err := a.svc.Tasks.DeleteTask(cmd.Context(), task.ID)
		if err != nil {
			a.fail("%v", err)
		}
		if !deleted {
			a.fail("task %s not found", task.Citation())
		}
		emit(map[string]any{"deleted": task.SequentialID}, func() {
			fmt.Printf("%s Deleted %s\n", ui.RenderPass("✓"), ui.RenderAccent(task.Citation()))
		})
	},
}

func ptr[T any](v T) *T { return &v }

func addTaskListFlags(cmd *cobra.Command) {
	cmd.Flags().Int64("board", 0, "only tasks on this board")
	cmd.Flags().Bool("open", false, "only open tasks")
	cmd.Flags().Bool("done", false, "only completed tasks")
	cmd.Flags().String("priority", "", "only tasks with this priority")
	cmd.Flags().String("tag", "", "only tasks carrying this exact tag")
	cmd.Flags().StringP("search", "s", "", "citation or free-text search")
}

func addTaskUpdateFlags(cmd *cobra.Command) {
	cmd.Flags().String("title", "", "new title")
	cmd.Flags().String("description", "", "new description; empty clears it")
	cmd.Flags().StringSlice("tags", nil, "replace all tags")
	cmd.Flags().String("priority", "", "low, medium or high")
	cmd.Flags().Int64("board", 0, "move to this board")
	cmd.Flags().Bool("completed", false, "set completion state")
}

func init() {
	addTaskListFlags(taskListCmd)
	addTaskUpdateFlags(taskUpdateCmd)

	taskCreateCmd.Flags().Int64P("board", "b", 0, "board ID (default: first board)")
	taskCreateCmd.Flags().StringP("description", "d", "", "task description")
	taskCreateCmd.Flags().StringSliceP("tag", "t", nil, "tag (repeatable or comma-separated)")
	taskCreateCmd.Flags().StringP("priority", "p", "", "low, medium or high (default medium)")

	taskCmd.AddCommand(taskListCmd, taskShowCmd, taskCreateCmd, taskUpdateCmd, taskToggleCmd, taskDeleteCmd)
	rootCmd.AddCommand(taskCmd)
}
