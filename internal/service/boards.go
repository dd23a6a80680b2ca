package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

// BoardService manages boards. Boards are not synchronized: only the task
// reassignments caused by deleting a board reach the queue.
type BoardService struct {
	*deps
}

// CreateBoard appends a board after the last one.
func (s *BoardService) CreateBoard(ctx context.Context, name string) (*types.Board, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}

	now := s.timestamp()
	board := &types.Board{Name: name, CreatedAt: now, UpdatedAt: now}
	err = s.db.RunInTransaction(ctx, []store.Table{store.TableBoards}, func(tx *store.Tx) error {
		maxOrder, err := tx.MaxBoardOrder(ctx)
		if err != nil {
			return err
		}
		board.Order = maxOrder + 1
		return tx.InsertBoard(ctx, board)
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// GetBoard returns the board or nil.
func (s *BoardService) GetBoard(ctx context.Context, id int64) (*types.Board, error) {
	return s.db.GetBoard(ctx, id)
}

// ListBoards returns every board in display order.
func (s *BoardService) ListBoards(ctx context.Context) ([]*types.Board, error) {
	return s.db.ListBoards(ctx)
}

// RenameBoard sets the board's name. It returns nil when the board does not
// exist.
func (s *BoardService) RenameBoard(ctx context.Context, id int64, name string) (*types.Board, error) {
	name, err := requireText("name", name)
	if err != nil {
		return nil, err
	}

	var board *types.Board
	err = s.db.RunInTransaction(ctx, []store.Table{store.TableBoards}, func(tx *store.Tx) error {
		b, err := tx.GetBoard(ctx, id)
		if err != nil || b == nil {
			return err
		}
		b.Name = name
		b.UpdatedAt = s.timestamp()
		if err := tx.UpdateBoard(ctx, b); err != nil {
			return err
		}
		board = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return board, nil
}

// ReorderBoards gives each listed board its index as order. Boards left out
// keep their order. Reordering is local only and is not queued.
func (s *BoardService) ReorderBoards(ctx context.Context, orderedIDs []int64) error {
	if err := checkDistinct("boardIds", orderedIDs); err != nil {
		return err
	}

	return s.db.RunInTransaction(ctx, []store.Table{store.TableBoards}, func(tx *store.Tx) error {
		now := s.timestamp()
		for i, id := range orderedIDs {
			b, err := tx.GetBoard(ctx, id)
			if err != nil {
				return err
			}
			if b == nil {
				return invalid("boardIds", "board %d does not exist", id)
			}
			b.Order = i
			b.UpdatedAt = now
			if err := tx.UpdateBoard(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteBoard moves the board's tasks to the first other board, queues one
// board change per moved task and deletes the board. It reports false when
// the board does not exist or is the last one.
func (s *BoardService) DeleteBoard(ctx context.Context, id int64) (bool, error) {
	tables := []store.Table{store.TableBoards, store.TableTasks, store.TableOfflineOps}

	var deleted bool
	var target int64
	var moved []int64
	err := s.db.RunInTransaction(ctx, tables, func(tx *store.Tx) error {
		board, err := tx.GetBoard(ctx, id)
		if err != nil || board == nil {
			return err
		}
		other, err := tx.FirstOtherBoard(ctx, id)
		if err != nil || other == nil {
			return err
		}
		target = other.ID

		moved, err = tx.ReassignTasks(ctx, id, target, s.timestamp())
		if err != nil {
			return err
		}
		for _, taskID := range moved {
			boardID := target
			delta := types.TaskDelta{TaskPatch: types.TaskPatch{BoardID: &boardID}}
			if _, err := s.queue.Enqueue(ctx, tx, types.OpUpdate, types.EntityTask, taskID, delta); err != nil {
				return err
			}
		}

		deleted, err = tx.DeleteBoard(ctx, id)
		return err
	})
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Debug("board deleted",
			zap.Int64("id", id),
			zap.Int64("tasks_moved_to", target),
			zap.Int("tasks_moved", len(moved)))
	}
	return deleted, nil
}

func checkDistinct(field string, ids []int64) error {
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return invalid(field, "id %d listed twice", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
