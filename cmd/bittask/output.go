package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/DaveSongnata/BitTask/internal/media"
	"github.com/DaveSongnata/BitTask/internal/types"
	"github.com/DaveSongnata/BitTask/internal/ui"
)

// emit prints v in the selected structured format, or calls text for the
// default human output.
func emit(v any, text func()) {
	switch outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			fatalf("failed to encode output: %v", err)
		}
	case "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			fatalf("failed to encode output: %v", err)
		}
		_ = enc.Close()
	default:
		text()
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func printTaskLine(t *types.Task) {
	width := ui.Width() - 24
	if width < 20 {
		width = 20
	}
	line := fmt.Sprintf("%s %s %-6s %s",
		ui.Checkbox(t.Completed),
		ui.RenderAccent(fmt.Sprintf("%5s", t.Citation())),
		ui.RenderPriority(t.Priority),
		ui.Truncate(t.Title, width))
	if len(t.Tags) > 0 {
		line += " " + ui.RenderMuted("["+strings.Join(t.Tags, ", ")+"]")
	}
	fmt.Println(line)
}

func printTask(t *types.Task, board *types.Board, subtasks []*types.Subtask, attachments []*types.Attachment) {
	fmt.Printf("%s %s\n", ui.RenderAccent(t.Citation()), ui.RenderHeader(t.Title))
	boardName := fmt.Sprintf("%d", t.BoardID)
	if board != nil {
		boardName = board.Name
	}
	status := "open"
	if t.Completed {
		status = ui.RenderPass("done")
	}
	fmt.Printf("   Board:    %s\n", boardName)
	fmt.Printf("   Status:   %s\n", status)
	fmt.Printf("   Priority: %s\n", ui.RenderPriority(t.Priority))
	if len(t.Tags) > 0 {
		fmt.Printf("   Tags:     %s\n", strings.Join(t.Tags, ", "))
	}
	fmt.Printf("   Created:  %s\n", formatTime(t.CreatedAt))
	fmt.Printf("   Updated:  %s\n", formatTime(t.UpdatedAt))
	if t.Description != "" {
		fmt.Printf("\n%s\n", t.Description)
	}
	if len(subtasks) > 0 {
		fmt.Printf("\n%s\n", ui.RenderHeader("Subtasks"))
		for _, s := range subtasks {
			fmt.Printf("  %s %s %s\n", ui.Checkbox(s.Completed), ui.RenderMuted(fmt.Sprintf("%d", s.ID)), s.Title)
		}
	}
	if len(attachments) > 0 {
		fmt.Printf("\n%s\n", ui.RenderHeader("Attachments"))
		for _, a := range attachments {
			printAttachmentLine(a)
		}
	}
}

func printAttachmentLine(a *types.Attachment) {
	detail := media.FormatSize(a.Size)
	if a.Type == types.AttachmentLink {
		detail = a.URL
	}
	fmt.Printf("  %s %-5s %s %s\n",
		ui.RenderMuted(fmt.Sprintf("%d", a.ID)), a.Type, a.Filename, ui.RenderMuted(detail))
}

func printOpLine(op *types.OfflineOp, maxRetries int) {
	state := ui.RenderWarn("pending")
	switch {
	case op.Synced:
		state = ui.RenderPass("synced")
	case op.RetryCount >= maxRetries:
		state = ui.RenderFail("exhausted")
	case op.RetryCount > 0:
		state = ui.RenderWarn(fmt.Sprintf("retry %d", op.RetryCount))
	}
	line := fmt.Sprintf("%5d  %s  %-6s %-10s %-5d %s",
		op.ID, op.Timestamp.Local().Format("2006-01-02 15:04:05.000"),
		op.OpType, op.Entity, op.EntityID, state)
	if op.LastError != "" {
		line += "  " + ui.RenderMuted(ui.Truncate(op.LastError, 60))
	}
	fmt.Println(line)
}
