package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DaveSongnata/BitTask/internal/types"
)

const subtaskColumns = `id, task_id, title, completed, "order", created_at, updated_at`

func scanSubtask(s scanner) (*types.Subtask, error) {
	var st types.Subtask
	var createdAt, updatedAt int64
	if err := s.Scan(&st.ID, &st.TaskID, &st.Title, &st.Completed, &st.Order, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	st.CreatedAt = fromMillis(createdAt)
	st.UpdatedAt = fromMillis(updatedAt)
	return &st, nil
}

// GetSubtask returns the subtask with id, or nil.
func (r reader) GetSubtask(ctx context.Context, id int64) (*types.Subtask, error) {
	st, err := scanSubtask(r.q.QueryRowContext(ctx, `SELECT `+subtaskColumns+` FROM subtasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtask %d: %w", id, err)
	}
	return st, nil
}

// ListSubtasks returns the subtasks of taskID by position.
func (r reader) ListSubtasks(ctx context.Context, taskID int64) ([]*types.Subtask, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+subtaskColumns+` FROM subtasks WHERE task_id = ? ORDER BY "order" ASC, id ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtasks: %w", err)
	}
	defer rows.Close()

	subtasks := []*types.Subtask{}
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subtask: %w", err)
		}
		subtasks = append(subtasks, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subtasks: %w", err)
	}
	return subtasks, nil
}

// CountSubtasks returns how many subtasks taskID owns.
func (r reader) CountSubtasks(ctx context.Context, taskID int64) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM subtasks WHERE task_id = ?`, taskID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count subtasks: %w", err)
	}
	return n, nil
}

// InsertSubtask stores a new subtask and sets st.ID.
func (tx *Tx) InsertSubtask(ctx context.Context, st *types.Subtask) error {
	res, err := tx.tx.ExecContext(ctx, `
		INSERT INTO subtasks (task_id, title, completed, "order", created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, st.TaskID, st.Title, st.Completed, st.Order, toMillis(st.CreatedAt), toMillis(st.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert subtask: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read subtask id: %w", err)
	}
	st.ID = id
	return nil
}

// UpdateSubtask writes title, completed, order and updated_at.
func (tx *Tx) UpdateSubtask(ctx context.Context, st *types.Subtask) error {
	_, err := tx.tx.ExecContext(ctx,
		`UPDATE subtasks SET title = ?, completed = ?, "order" = ?, updated_at = ? WHERE id = ?`,
		st.Title, st.Completed, st.Order, toMillis(st.UpdatedAt), st.ID)
	if err != nil {
		return fmt.Errorf("failed to update subtask %d: %w", st.ID, err)
	}
	return nil
}

// SetSubtaskOrder moves one subtask of taskID to position order. It
// reports false when id does not belong to taskID.
func (tx *Tx) SetSubtaskOrder(ctx context.Context, taskID, id int64, order int, updatedAt time.Time) (bool, error) {
	res, err := tx.tx.ExecContext(ctx,
		`UPDATE subtasks SET "order" = ?, updated_at = ? WHERE id = ? AND task_id = ?`,
		order, toMillis(updatedAt), id, taskID)
	if err != nil {
		return false, fmt.Errorf("failed to reorder subtask %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteSubtask removes one subtask.
func (tx *Tx) DeleteSubtask(ctx context.Context, id int64) (bool, error) {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM subtasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete subtask %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteSubtasksByTask removes every subtask of taskID and returns the
// count.
func (tx *Tx) DeleteSubtasksByTask(ctx context.Context, taskID int64) (int64, error) {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM subtasks WHERE task_id = ?`, taskID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete subtasks of task %d: %w", taskID, err)
	}
	return res.RowsAffected()
}
