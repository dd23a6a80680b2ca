package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/DaveSongnata/BitTask/internal/types"
)

const boardColumns = `id, name, "order", created_at, updated_at`

func scanBoard(s scanner) (*types.Board, error) {
	var b types.Board
	var createdAt, updatedAt int64
	if err := s.Scan(&b.ID, &b.Name, &b.Order, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	b.CreatedAt = fromMillis(createdAt)
	b.UpdatedAt = fromMillis(updatedAt)
	return &b, nil
}

// GetBoard returns the board with id, or nil.
func (r reader) GetBoard(ctx context.Context, id int64) (*types.Board, error) {
	b, err := scanBoard(r.q.QueryRowContext(ctx, `SELECT `+boardColumns+` FROM boards WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get board %d: %w", id, err)
	}
	return b, nil
}

// ListBoards returns boards by display order, then id.
func (r reader) ListBoards(ctx context.Context) ([]*types.Board, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+boardColumns+` FROM boards ORDER BY "order" ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list boards: %w", err)
	}
	defer rows.Close()

	boards := []*types.Board{}
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan board: %w", err)
		}
		boards = append(boards, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating boards: %w", err)
	}
	return boards, nil
}

// FirstOtherBoard returns the first board in display order whose id is
// not exclude, or nil if there is none.
func (r reader) FirstOtherBoard(ctx context.Context, exclude int64) (*types.Board, error) {
	b, err := scanBoard(r.q.QueryRowContext(ctx,
		`SELECT `+boardColumns+` FROM boards WHERE id != ? ORDER BY "order" ASC, id ASC LIMIT 1`, exclude))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find replacement board: %w", err)
	}
	return b, nil
}

// CountBoards returns the number of boards.
func (r reader) CountBoards(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM boards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count boards: %w", err)
	}
	return n, nil
}

// MaxBoardOrder returns the highest board order, or -1 with no boards.
func (r reader) MaxBoardOrder(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COALESCE(MAX("order"), -1) FROM boards`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read board order: %w", err)
	}
	return n, nil
}

// InsertBoard stores a new board and sets b.ID.
func (tx *Tx) InsertBoard(ctx context.Context, b *types.Board) error {
	res, err := tx.tx.ExecContext(ctx,
		`INSERT INTO boards (name, "order", created_at, updated_at) VALUES (?, ?, ?, ?)`,
		b.Name, b.Order, toMillis(b.CreatedAt), toMillis(b.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert board: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read board id: %w", err)
	}
	b.ID = id
	return nil
}

// UpdateBoard writes name, order and updated_at.
func (tx *Tx) UpdateBoard(ctx context.Context, b *types.Board) error {
	_, err := tx.tx.ExecContext(ctx,
		`UPDATE boards SET name = ?, "order" = ?, updated_at = ? WHERE id = ?`,
		b.Name, b.Order, toMillis(b.UpdatedAt), b.ID)
	if err != nil {
		return fmt.Errorf("failed to update board %d: %w", b.ID, err)
	}
	return nil
}

// DeleteBoard removes the board row. Tasks must have been moved away.
func (tx *Tx) DeleteBoard(ctx context.Context, id int64) (bool, error) {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete board %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}
