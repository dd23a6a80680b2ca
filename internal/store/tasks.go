package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/DaveSongnata/BitTask/internal/types"
)

const taskColumns = `t.id, t.sequential_id, t.board_id, t.title, t.description, t.tags,
	t.priority, t.completed, t.created_at, t.updated_at`

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*types.Task, error) {
	var (
		task                 types.Task
		description          sql.NullString
		tagsJSON, priority   string
		createdAt, updatedAt int64
	)
	err := s.Scan(
		&task.ID,
		&task.SequentialID,
		&task.BoardID,
		&task.Title,
		&description,
		&tagsJSON,
		&priority,
		&task.Completed,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Description = description.String
	task.Priority = types.Priority(priority)
	task.CreatedAt = fromMillis(createdAt)
	task.UpdatedAt = fromMillis(updatedAt)

	task.Tags = []string{}
	if tagsJSON != "" && tagsJSON != "null" {
		if err := json.Unmarshal([]byte(tagsJSON), &task.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &task, nil
}

func scanTasks(rows *sql.Rows) ([]*types.Task, error) {
	tasks := []*types.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

func marshalTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tags: %w", err)
	}
	return string(data), nil
}

// GetTask returns the task with id, or nil if it does not exist.
func (r reader) GetTask(ctx context.Context, id int64) (*types.Task, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}
	return task, nil
}

// GetTaskBySequentialID returns the task cited as #seq, or nil.
func (r reader) GetTaskBySequentialID(ctx context.Context, seq int64) (*types.Task, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks t WHERE t.sequential_id = ?`, seq)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task #%d: %w", seq, err)
	}
	return task, nil
}

// ListTasks returns tasks matching the structural parts of filter (board,
// completion, priority, tag), ordered by sequential ID. filter.Search is
// not applied here.
func (r reader) ListTasks(ctx context.Context, filter types.TaskFilter) ([]*types.Task, error) {
	var conditions []string
	var args []any

	if filter.BoardID != nil {
		conditions = append(conditions, "t.board_id = ?")
		args = append(args, *filter.BoardID)
	}
	if filter.Completed != nil {
		conditions = append(conditions, "t.completed = ?")
		args = append(args, *filter.Completed)
	}
	if filter.Priority != nil {
		conditions = append(conditions, "t.priority = ?")
		args = append(args, string(*filter.Priority))
	}
	if filter.Tag != "" {
		conditions = append(conditions, "EXISTS (SELECT 1 FROM json_each(t.tags) WHERE json_each.value = ?)")
		args = append(args, filter.Tag)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks t`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY t.sequential_id ASC"

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

// CountTasks returns the number of tasks on boardID, or all tasks when
// boardID is 0.
func (r reader) CountTasks(ctx context.Context, boardID int64) (int, error) {
	query := `SELECT COUNT(*) FROM tasks`
	var args []any
	if boardID != 0 {
		query += ` WHERE board_id = ?`
		args = append(args, boardID)
	}
	var n int
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}

// NextSequentialID advances the task citation counter and returns the new
// value. The counter only grows, so numbers are never reused.
func (tx *Tx) NextSequentialID(ctx context.Context) (int64, error) {
	var next int64
	err := tx.tx.QueryRowContext(ctx, `
		INSERT INTO counters (name, value) VALUES ('task_sequential_id', 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value
	`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate sequential id: %w", err)
	}
	return next, nil
}

// RaiseSequentialID makes sure the counter is at least seq. Used when
// tasks arrive with numbers assigned elsewhere.
func (tx *Tx) RaiseSequentialID(ctx context.Context, seq int64) error {
	_, err := tx.tx.ExecContext(ctx, `
		INSERT INTO counters (name, value) VALUES ('task_sequential_id', ?)
		ON CONFLICT(name) DO UPDATE SET value = MAX(value, excluded.value)
	`, seq)
	if err != nil {
		return fmt.Errorf("failed to raise sequential id: %w", err)
	}
	return nil
}

// InsertTask stores a new task and sets task.ID.
func (tx *Tx) InsertTask(ctx context.Context, task *types.Task) error {
	tagsJSON, err := marshalTags(task.Tags)
	if err != nil {
		return err
	}

	res, err := tx.tx.ExecContext(ctx, `
		INSERT INTO tasks (
			sequential_id, board_id, title, description, tags,
			priority, completed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.SequentialID,
		task.BoardID,
		task.Title,
		nullString(task.Description),
		tagsJSON,
		string(task.Priority),
		task.Completed,
		toMillis(task.CreatedAt),
		toMillis(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read task id: %w", err)
	}
	task.ID = id
	return nil
}

// UpdateTask writes every mutable column of task.
func (tx *Tx) UpdateTask(ctx context.Context, task *types.Task) error {
	tagsJSON, err := marshalTags(task.Tags)
	if err != nil {
		return err
	}

	_, err = tx.tx.ExecContext(ctx, `
		UPDATE tasks SET
			board_id = ?, title = ?, description = ?, tags = ?,
			priority = ?, completed = ?, updated_at = ?
		WHERE id = ?
	`,
		task.BoardID,
		task.Title,
		nullString(task.Description),
		tagsJSON,
		string(task.Priority),
		task.Completed,
		toMillis(task.UpdatedAt),
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task %d: %w", task.ID, err)
	}
	return nil
}

// UpsertTask inserts task with its given ID or overwrites the existing row.
func (tx *Tx) UpsertTask(ctx context.Context, task *types.Task) error {
	tagsJSON, err := marshalTags(task.Tags)
	if err != nil {
		return err
	}

	_, err = tx.tx.ExecContext(ctx, `
		INSERT INTO tasks (
			id, sequential_id, board_id, title, description, tags,
			priority, completed, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			board_id = excluded.board_id,
			title = excluded.title,
			description = excluded.description,
			tags = excluded.tags,
			priority = excluded.priority,
			completed = excluded.completed,
			updated_at = excluded.updated_at
	`,
		task.ID,
		task.SequentialID,
		task.BoardID,
		task.Title,
		nullString(task.Description),
		tagsJSON,
		string(task.Priority),
		task.Completed,
		toMillis(task.CreatedAt),
		toMillis(task.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert task %d: %w", task.ID, err)
	}
	return nil
}

// DeleteTask removes the task row only. Owned rows must be deleted first
// by the caller. Reports whether a row was removed.
func (tx *Tx) DeleteTask(ctx context.Context, id int64) (bool, error) {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ReassignTasks moves every task on board from to board to and returns
// the IDs moved, in sequential order.
func (tx *Tx) ReassignTasks(ctx context.Context, from, to int64, updatedAt time.Time) ([]int64, error) {
	rows, err := tx.tx.QueryContext(ctx, `
		UPDATE tasks SET board_id = ?, updated_at = ?
		WHERE board_id = ?
		RETURNING id, sequential_id
	`, to, toMillis(updatedAt), from)
	if err != nil {
		return nil, fmt.Errorf("failed to reassign tasks from board %d: %w", from, err)
	}
	defer rows.Close()

	type moved struct{ id, seq int64 }
	var all []moved
	for rows.Next() {
		var m moved
		if err := rows.Scan(&m.id, &m.seq); err != nil {
			return nil, fmt.Errorf("failed to scan reassigned task: %w", err)
		}
		all = append(all, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reassigned tasks: %w", err)
	}

	// RETURNING order is unspecified.
	sort.Slice(all, func(i, j int) bool { return all[i].seq < all[j].seq })
	ids := make([]int64, len(all))
	for i, m := range all {
		ids[i] = m.id
	}
	return ids, nil
}
