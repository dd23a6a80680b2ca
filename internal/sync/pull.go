package sync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DaveSongnata/BitTask/internal/reconcile"
	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

// CursorKey is the sync_state key holding the pull cursor.
const CursorKey = "lastPulledAt"

var pullTables = []store.Table{
	store.TableTasks, store.TableSubtasks, store.TableAttachments, store.TableSyncState,
}

// Pull fetches remote changes once and applies them.
func (d *Driver) Pull(ctx context.Context) (*Report, error) {
	report := &Report{}
	return report, d.pull(ctx, report)
}

func (d *Driver) pull(ctx context.Context, report *Report) error {
	since, err := d.cursor(ctx)
	if err != nil {
		return err
	}

	res, err := d.remote.Pull(ctx, since)
	if err != nil {
		d.logger.Warn("pull failed", zap.Time("since", since), zap.Error(err))
		report.PullErr = err.Error()
		return nil
	}
	if res == nil {
		return nil
	}

	next := res.Cursor
	return d.db.RunInTransaction(ctx, pullTables, func(tx *store.Tx) error {
		for _, task := range res.Tasks {
			if task.UpdatedAt.After(next) && res.Cursor.IsZero() {
				next = task.UpdatedAt
			}
			applied, err := d.applyTask(ctx, tx, task)
			if err != nil {
				return err
			}
			if applied {
				report.Pulled++
			} else {
				report.Skipped++
			}
		}

		for _, id := range res.Deleted {
			applied, err := d.applyTombstone(ctx, tx, id)
			if err != nil {
				return err
			}
			if applied {
				report.Deleted++
			} else {
				report.Skipped++
			}
		}

		if next.After(since) {
			return tx.SetSyncState(ctx, CursorKey, next.UTC().Format(time.RFC3339Nano), d.now())
		}
		return nil
	})
}

// cursor reads the stored pull position; the zero time when unset.
func (d *Driver) cursor(ctx context.Context) (time.Time, error) {
	raw, err := d.db.GetSyncState(ctx, CursorKey)
	if err != nil || raw == "" {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		d.logger.Warn("discarding unreadable pull cursor", zap.String("value", raw), zap.Error(err))
		return time.Time{}, nil
	}
	return t, nil
}

// localWins reports whether a pending entry for the task beats a remote
// copy last changed at updatedAt.
func localWins(pending []*types.OfflineOp, updatedAt time.Time) bool {
	remote := &reconcile.RemoteState{UpdatedAt: updatedAt}
	for _, op := range pending {
		if reconcile.Reconcile(op, remote) == reconcile.Local {
			return true
		}
	}
	return false
}

func (d *Driver) applyTask(ctx context.Context, tx *store.Tx, task *types.Task) (bool, error) {
	pending, err := tx.ListPendingOpsForEntity(ctx, types.EntityTask, task.ID)
	if err != nil {
		return false, err
	}
	if localWins(pending, task.UpdatedAt) {
		return false, nil
	}

	// Citation numbers are unique locally; a clash means the remote and
	// this device numbered different tasks the same way.
	holder, err := tx.GetTaskBySequentialID(ctx, task.SequentialID)
	if err != nil {
		return false, err
	}
	if holder != nil && holder.ID != task.ID {
		d.logger.Warn("skipping remote task with taken sequential id",
			zap.Int64("id", task.ID),
			zap.Int64("seq", task.SequentialID),
			zap.Int64("held_by", holder.ID))
		return false, nil
	}

	// Boards are local; tasks on boards this device lacks land on the first.
	board, err := tx.GetBoard(ctx, task.BoardID)
	if err != nil {
		return false, err
	}
	if board == nil {
		boards, err := tx.ListBoards(ctx)
		if err != nil {
			return false, err
		}
		if len(boards) == 0 {
			return false, nil
		}
		task.BoardID = boards[0].ID
	}

	task.Tags = types.NormalizeTags(task.Tags)
	if err := tx.UpsertTask(ctx, task); err != nil {
		return false, err
	}
	return true, tx.RaiseSequentialID(ctx, task.SequentialID)
}

// applyTombstone deletes a task the remote removed. Tasks with pending
// local entries are kept; the next push decides.
func (d *Driver) applyTombstone(ctx context.Context, tx *store.Tx, id int64) (bool, error) {
	pending, err := tx.ListPendingOpsForEntity(ctx, types.EntityTask, id)
	if err != nil {
		return false, err
	}
	if len(pending) > 0 {
		return false, nil
	}

	if _, err := tx.DeleteAttachmentsByTask(ctx, id); err != nil {
		return false, err
	}
	if _, err := tx.DeleteSubtasksByTask(ctx, id); err != nil {
		return false, err
	}
	return tx.DeleteTask(ctx, id)
}
