// Package types defines the entities persisted by the BitTask store and the
// payload shapes carried by offline operations.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Priority is the urgency of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority converts user input ("h", "High", "medium") to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "l", "low":
		return PriorityLow, nil
	case "m", "med", "medium", "":
		return PriorityMedium, nil
	case "h", "high":
		return PriorityHigh, nil
	}
	return "", fmt.Errorf("unknown priority %q (want low, medium or high)", s)
}

// Task is a unit of work on a board.
//
// ID is assigned by the store. SequentialID is the human-facing citation
// number (#12); it strictly increases over the lifetime of a store and is
// never handed out twice, even after the task holding it is deleted.
type Task struct {
	ID           int64     `json:"id" yaml:"id"`
	SequentialID int64     `json:"sequentialId" yaml:"sequentialId"`
	BoardID      int64     `json:"boardId" yaml:"boardId"`
	Title        string    `json:"title" yaml:"title"`
	Description  string    `json:"description,omitempty" yaml:"description,omitempty"`
	Tags         []string  `json:"tags" yaml:"tags"`
	Priority     Priority  `json:"priority" yaml:"priority"`
	Completed    bool      `json:"completed" yaml:"completed"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Citation returns the "#<sequentialId>" form used in search and output.
func (t *Task) Citation() string {
	return fmt.Sprintf("#%d", t.SequentialID)
}

// TaskPatch is a partial update. Nil fields are left untouched; a non-nil
// Description pointing at "" clears the description.
type TaskPatch struct {
	BoardID     *int64    `json:"boardId,omitempty"`
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
}

// Apply merges the patch into t. UpdatedAt is the caller's concern.
func (p TaskPatch) Apply(t *Task) {
	if p.BoardID != nil {
		t.BoardID = *p.BoardID
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Tags != nil {
		t.Tags = NormalizeTags(*p.Tags)
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
}

// NormalizeTags trims tags, drops empties and duplicates, and keeps the
// first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// TaskFilter narrows ListTasks. Zero value matches every task.
type TaskFilter struct {
	BoardID   *int64
	Completed *bool
	Priority  *Priority
	Tag       string
	// Search matches "#12" or "12" exactly against SequentialID, otherwise
	// a case-insensitive substring of title, description or any tag.
	Search string
}
