package types

import "time"

// Subtask is a checklist item owned by a task. Order is the zero-based
// position within the task's list.
type Subtask struct {
	ID        int64     `json:"id" yaml:"id"`
	TaskID    int64     `json:"taskId" yaml:"taskId"`
	Title     string    `json:"title" yaml:"title"`
	Completed bool      `json:"completed" yaml:"completed"`
	Order     int       `json:"order" yaml:"order"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// SubtaskPatch is a partial subtask update.
type SubtaskPatch struct {
	Title     *string
	Completed *bool
}
