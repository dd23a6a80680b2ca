package service

import (
	"context"

	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

var subtaskTables = []store.Table{store.TableSubtasks}

// SubtaskService manages task checklists. Subtask changes stay local and
// are not queued.
type SubtaskService struct {
	*deps
}

// CreateSubtask appends a subtask to taskID's list. It returns nil when the
// task does not exist.
func (s *SubtaskService) CreateSubtask(ctx context.Context, taskID int64, title string) (*types.Subtask, error) {
	title, err := requireText("title", title)
	if err != nil {
		return nil, err
	}

	var st *types.Subtask
	err = s.db.RunInTransaction(ctx, subtaskTables, func(tx *store.Tx) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil || task == nil {
			return err
		}
		n, err := tx.CountSubtasks(ctx, taskID)
		if err != nil {
			return err
		}

		now := s.timestamp()
		st = &types.Subtask{
			TaskID:    taskID,
			Title:     title,
			Order:     n,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.InsertSubtask(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// GetSubtask returns the subtask or nil.
func (s *SubtaskService) GetSubtask(ctx context.Context, id int64) (*types.Subtask, error) {
	return s.db.GetSubtask(ctx, id)
}

// ListSubtasks returns taskID's subtasks in order.
func (s *SubtaskService) ListSubtasks(ctx context.Context, taskID int64) ([]*types.Subtask, error) {
	return s.db.ListSubtasks(ctx, taskID)
}

// UpdateSubtask applies patch. It returns nil when the subtask does not
// exist.
func (s *SubtaskService) UpdateSubtask(ctx context.Context, id int64, patch types.SubtaskPatch) (*types.Subtask, error) {
	if patch.Title != nil {
		title, err := requireText("title", *patch.Title)
		if err != nil {
			return nil, err
		}
		patch.Title = &title
	}
	return s.update(ctx, id, func(*types.Subtask) types.SubtaskPatch { return patch })
}

// ToggleSubtask flips the completed flag. It returns nil when the subtask
// does not exist.
func (s *SubtaskService) ToggleSubtask(ctx context.Context, id int64) (*types.Subtask, error) {
	return s.update(ctx, id, func(current *types.Subtask) types.SubtaskPatch {
		completed := !current.Completed
		return types.SubtaskPatch{Completed: &completed}
	})
}

// update reads, patches and writes the subtask in one transaction.
func (s *SubtaskService) update(ctx context.Context, id int64, build func(current *types.Subtask) types.SubtaskPatch) (*types.Subtask, error) {
	var st *types.Subtask
	err := s.db.RunInTransaction(ctx, subtaskTables, func(tx *store.Tx) error {
		current, err := tx.GetSubtask(ctx, id)
		if err != nil || current == nil {
			return err
		}
		patch := build(current)
		if patch.Title != nil {
			current.Title = *patch.Title
		}
		if patch.Completed != nil {
			current.Completed = *patch.Completed
		}
		current.UpdatedAt = s.timestamp()
		if err := tx.UpdateSubtask(ctx, current); err != nil {
			return err
		}
		st = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// DeleteSubtask removes the subtask and closes the gap in its task's order.
func (s *SubtaskService) DeleteSubtask(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.db.RunInTransaction(ctx, subtaskTables, func(tx *store.Tx) error {
		current, err := tx.GetSubtask(ctx, id)
		if err != nil || current == nil {
			return err
		}
		if deleted, err = tx.DeleteSubtask(ctx, id); err != nil {
			return err
		}

		rest, err := tx.ListSubtasks(ctx, current.TaskID)
		if err != nil {
			return err
		}
		now := s.timestamp()
		for i, st := range rest {
			if st.Order == i {
				continue
			}
			if _, err := tx.SetSubtaskOrder(ctx, st.TaskID, st.ID, i, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// ReorderSubtasks sets the order of taskID's subtasks to the order of
// orderedIDs. The list must name every subtask of the task exactly once.
func (s *SubtaskService) ReorderSubtasks(ctx context.Context, taskID int64, orderedIDs []int64) error {
	if err := checkDistinct("subtaskIds", orderedIDs); err != nil {
		return err
	}

	return s.db.RunInTransaction(ctx, subtaskTables, func(tx *store.Tx) error {
		n, err := tx.CountSubtasks(ctx, taskID)
		if err != nil {
			return err
		}
		if n != len(orderedIDs) {
			return invalid("subtaskIds", "task %d has %d subtasks, got %d ids", taskID, n, len(orderedIDs))
		}

		now := s.timestamp()
		for i, id := range orderedIDs {
			ok, err := tx.SetSubtaskOrder(ctx, taskID, id, i, now)
			if err != nil {
				return err
			}
			if !ok {
				return invalid("subtaskIds", "subtask %d does not belong to task %d", id, taskID)
			}
		}
		return nil
	})
}
