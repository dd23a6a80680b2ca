package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

// taskTables are the tables a task mutation writes.
var taskTables = []store.Table{store.TableTasks, store.TableOfflineOps}

// TaskService manages tasks.
type TaskService struct {
	*deps
}

// CreateTaskInput describes a new task. BoardID 0 selects the first board.
// An empty Priority means medium.
type CreateTaskInput struct {
	BoardID     int64
	Title       string
	Description string
	Tags        []string
	Priority    types.Priority
	Completed   bool
}

// CreateTask stores a task, assigns its sequential ID and queues a create.
func (s *TaskService) CreateTask(ctx context.Context, in CreateTaskInput) (*types.Task, error) {
	title, err := requireText("title", in.Title)
	if err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}
	if !priority.Valid() {
		return nil, invalid("priority", "unknown priority %q", in.Priority)
	}

	now := s.timestamp()
	task := &types.Task{
		BoardID:     in.BoardID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Tags:        types.NormalizeTags(in.Tags),
		Priority:    priority,
		Completed:   in.Completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.db.RunInTransaction(ctx, taskTables, func(tx *store.Tx) error {
		if err := resolveBoard(ctx, tx, &task.BoardID); err != nil {
			return err
		}

		seq, err := tx.NextSequentialID(ctx)
		if err != nil {
			return err
		}
		task.SequentialID = seq

		if err := tx.InsertTask(ctx, task); err != nil {
			return err
		}
		_, err = s.queue.Enqueue(ctx, tx, types.OpCreate, types.EntityTask, task.ID, types.TaskRecord{Task: *task})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("task created",
		zap.Int64("id", task.ID),
		zap.Int64("seq", task.SequentialID),
		zap.Int64("board", task.BoardID))
	return task, nil
}

// resolveBoard checks that *boardID exists, or fills in the first board
// when it is 0.
func resolveBoard(ctx context.Context, tx *store.Tx, boardID *int64) error {
	if *boardID == 0 {
		boards, err := tx.ListBoards(ctx)
		if err != nil {
			return err
		}
		if len(boards) == 0 {
			return invalid("boardId", "no board exists")
		}
		*boardID = boards[0].ID
		return nil
	}

	board, err := tx.GetBoard(ctx, *boardID)
	if err != nil {
		return err
	}
	if board == nil {
		return invalid("boardId", "board %d does not exist", *boardID)
	}
	return nil
}

// normalizePatch validates and cleans patch in place.
func normalizePatch(patch *types.TaskPatch) error {
	if patch.BoardID != nil {
		board := *patch.BoardID
		patch.BoardID = &board
	}
	if patch.Title != nil {
		title, err := requireText("title", *patch.Title)
		if err != nil {
			return err
		}
		patch.Title = &title
	}
	if patch.Description != nil {
		desc := strings.TrimSpace(*patch.Description)
		patch.Description = &desc
	}
	if patch.Tags != nil {
		tags := types.NormalizeTags(*patch.Tags)
		patch.Tags = &tags
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		return invalid("priority", "unknown priority %q", *patch.Priority)
	}
	return nil
}

// UpdateTask merges patch into task id and queues the patch as a delta.
// It returns nil when the task does not exist. An empty patch still bumps
// UpdatedAt and queues an update.
func (s *TaskService) UpdateTask(ctx context.Context, id int64, patch types.TaskPatch) (*types.Task, error) {
	if err := normalizePatch(&patch); err != nil {
		return nil, err
	}
	return s.update(ctx, id, func(*types.Task) types.TaskPatch { return patch })
}

// ToggleTaskComplete flips the completed flag. It returns nil when the task
// does not exist.
func (s *TaskService) ToggleTaskComplete(ctx context.Context, id int64) (*types.Task, error) {
	return s.update(ctx, id, func(current *types.Task) types.TaskPatch {
		completed := !current.Completed
		return types.TaskPatch{Completed: &completed}
	})
}

// update reads the task, derives the patch from it and writes the result
// in one transaction, so the patch never acts on a stale read.
func (s *TaskService) update(ctx context.Context, id int64, build func(current *types.Task) types.TaskPatch) (*types.Task, error) {
	var task *types.Task
	err := s.db.RunInTransaction(ctx, taskTables, func(tx *store.Tx) error {
		current, err := tx.GetTask(ctx, id)
		if err != nil || current == nil {
			return err
		}
		patch := build(current)
		if patch.BoardID != nil {
			if err := resolveBoard(ctx, tx, patch.BoardID); err != nil {
				return err
			}
		}

		patch.Apply(current)
		current.UpdatedAt = s.timestamp()
		if err := tx.UpdateTask(ctx, current); err != nil {
			return err
		}
		if _, err := s.queue.Enqueue(ctx, tx, types.OpUpdate, types.EntityTask, id, types.TaskDelta{TaskPatch: patch}); err != nil {
			return err
		}
		task = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	if task != nil {
		s.logger.Debug("task updated", zap.Int64("id", id))
	}
	return task, nil
}

// DeleteTask removes the task with its attachments and subtasks and queues a
// delete. It reports false when the task does not exist.
func (s *TaskService) DeleteTask(ctx context.Context, id int64) (bool, error) {
	tables := []store.Table{store.TableTasks, store.TableSubtasks, store.TableAttachments, store.TableOfflineOps}

	var deleted bool
	var attachments, subtasks int64
	err := s.db.RunInTransaction(ctx, tables, func(tx *store.Tx) error {
		current, err := tx.GetTask(ctx, id)
		if err != nil || current == nil {
			return err
		}

		if attachments, err = tx.DeleteAttachmentsByTask(ctx, id); err != nil {
			return err
		}
		if subtasks, err = tx.DeleteSubtasksByTask(ctx, id); err != nil {
			return err
		}
		if deleted, err = tx.DeleteTask(ctx, id); err != nil {
			return err
		}
		_, err = s.queue.Enqueue(ctx, tx, types.OpDelete, types.EntityTask, id, nil)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	if deleted {
		s.logger.Debug("task deleted",
			zap.Int64("id", id),
			zap.Int64("attachments", attachments),
			zap.Int64("subtasks", subtasks))
	}
	return deleted, nil
}

// GetTask returns the task or nil.
func (s *TaskService) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	return s.db.GetTask(ctx, id)
}

// GetTaskBySequentialID returns the task cited as #seq or nil.
func (s *TaskService) GetTaskBySequentialID(ctx context.Context, seq int64) (*types.Task, error) {
	return s.db.GetTaskBySequentialID(ctx, seq)
}

// ListTasks returns the tasks matching filter ordered by sequential ID.
func (s *TaskService) ListTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error) {
	tasks, err := s.db.ListTasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return matchSearch(tasks, filter.Search), nil
}
