package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/DaveSongnata/BitTask/internal/types"
)

const opColumns = `id, op_id, op_type, entity, entity_id, payload, timestamp, synced, retry_count, last_error`

// Replay order: oldest first, insertion order breaks timestamp ties.
const opOrder = ` ORDER BY timestamp ASC, id ASC`

func scanOp(s scanner) (*types.OfflineOp, error) {
	var (
		op        types.OfflineOp
		opType    string
		entity    string
		payload   sql.NullString
		ts        int64
		lastError sql.NullString
	)
	if err := s.Scan(&op.ID, &op.OpID, &opType, &entity, &op.EntityID, &payload, &ts,
		&op.Synced, &op.RetryCount, &lastError); err != nil {
		return nil, err
	}

	op.OpType = types.OpType(opType)
	op.Entity = types.EntityKind(entity)
	op.Timestamp = fromMillis(ts)
	op.LastError = lastError.String

	p, err := types.DecodePayload(op.OpType, op.Entity, []byte(payload.String))
	if err != nil {
		return nil, fmt.Errorf("op %s: %w", op.OpID, err)
	}
	op.Payload = p
	return &op, nil
}

func (r reader) queryOps(ctx context.Context, query string, args ...any) ([]*types.OfflineOp, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query offline ops: %w", err)
	}
	defer rows.Close()

	ops := []*types.OfflineOp{}
	for rows.Next() {
		op, err := scanOp(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offline op: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offline ops: %w", err)
	}
	return ops, nil
}

// GetOp returns the queue entry with id, or nil.
func (r reader) GetOp(ctx context.Context, id int64) (*types.OfflineOp, error) {
	op, err := scanOp(r.q.QueryRowContext(ctx, `SELECT `+opColumns+` FROM offline_ops WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offline op %d: %w", id, err)
	}
	return op, nil
}

// GetOpByOpID returns the queue entry with the client op id, or nil.
func (r reader) GetOpByOpID(ctx context.Context, opID string) (*types.OfflineOp, error) {
	op, err := scanOp(r.q.QueryRowContext(ctx, `SELECT `+opColumns+` FROM offline_ops WHERE op_id = ?`, opID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offline op %s: %w", opID, err)
	}
	return op, nil
}

// CountPendingOps returns the number of unsynced entries.
func (r reader) CountPendingOps(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM offline_ops WHERE synced = 0`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending ops: %w", err)
	}
	return n, nil
}

// ListAllOps returns every entry, synced or not, in replay order.
func (r reader) ListAllOps(ctx context.Context) ([]*types.OfflineOp, error) {
	return r.queryOps(ctx, `SELECT `+opColumns+` FROM offline_ops`+opOrder)
}

// ListPendingOps returns unsynced entries in replay order.
func (r reader) ListPendingOps(ctx context.Context) ([]*types.OfflineOp, error) {
	return r.queryOps(ctx, `SELECT `+opColumns+` FROM offline_ops WHERE synced = 0`+opOrder)
}

// ListReadyOps returns unsynced entries with retry_count < maxRetries in
// replay order.
func (r reader) ListReadyOps(ctx context.Context, maxRetries int) ([]*types.OfflineOp, error) {
	return r.queryOps(ctx,
		`SELECT `+opColumns+` FROM offline_ops WHERE synced = 0 AND retry_count < ?`+opOrder, maxRetries)
}

// ListExhaustedOps returns unsynced entries with retry_count >= maxRetries.
func (r reader) ListExhaustedOps(ctx context.Context, maxRetries int) ([]*types.OfflineOp, error) {
	return r.queryOps(ctx,
		`SELECT `+opColumns+` FROM offline_ops WHERE synced = 0 AND retry_count >= ?`+opOrder, maxRetries)
}

// ListPendingOpsForEntity returns unsynced entries for one entity.
func (r reader) ListPendingOpsForEntity(ctx context.Context, entity types.EntityKind, entityID int64) ([]*types.OfflineOp, error) {
	return r.queryOps(ctx,
		`SELECT `+opColumns+` FROM offline_ops WHERE synced = 0 AND entity = ? AND entity_id = ?`+opOrder,
		string(entity), entityID)
}

// InsertOp appends op to the queue and sets op.ID. The payload must
// already match op's (OpType, Entity).
func (tx *Tx) InsertOp(ctx context.Context, op *types.OfflineOp) error {
	payload, err := types.EncodePayload(op.Payload)
	if err != nil {
		return err
	}
	var payloadArg any
	if payload != nil {
		payloadArg = string(payload)
	}

	res, err := tx.tx.ExecContext(ctx, `
		INSERT INTO offline_ops (
			op_id, op_type, entity, entity_id, payload, timestamp, synced, retry_count, last_error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		op.OpID,
		string(op.OpType),
		string(op.Entity),
		op.EntityID,
		payloadArg,
		toMillis(op.Timestamp),
		op.Synced,
		op.RetryCount,
		nullString(op.LastError),
	)
	if err != nil {
		return fmt.Errorf("failed to insert offline op: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read offline op id: %w", err)
	}
	op.ID = id
	return nil
}

// MarkOpSynced flips synced to true. Unknown ids are ignored.
func (tx *Tx) MarkOpSynced(ctx context.Context, id int64) error {
	if _, err := tx.tx.ExecContext(ctx, `UPDATE offline_ops SET synced = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to mark op %d synced: %w", id, err)
	}
	return nil
}

// MarkOpFailed records msg and bumps retry_count. synced is untouched.
func (tx *Tx) MarkOpFailed(ctx context.Context, id int64, msg string) error {
	_, err := tx.tx.ExecContext(ctx,
		`UPDATE offline_ops SET last_error = ?, retry_count = retry_count + 1 WHERE id = ?`, msg, id)
	if err != nil {
		return fmt.Errorf("failed to mark op %d failed: %w", id, err)
	}
	return nil
}

// ResetOpRetries zeroes retry_count and clears last_error.
func (tx *Tx) ResetOpRetries(ctx context.Context, id int64) (bool, error) {
	res, err := tx.tx.ExecContext(ctx,
		`UPDATE offline_ops SET retry_count = 0, last_error = NULL WHERE id = ? AND synced = 0`, id)
	if err != nil {
		return false, fmt.Errorf("failed to reset op %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteSyncedOps hard-deletes synced entries and returns the count.
func (tx *Tx) DeleteSyncedOps(ctx context.Context) (int64, error) {
	res, err := tx.tx.ExecContext(ctx, `DELETE FROM offline_ops WHERE synced = 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete synced ops: %w", err)
	}
	return res.RowsAffected()
}

// LatestOpTimestamp returns the newest entry timestamp, or the zero time
// when the queue is empty.
func (r reader) LatestOpTimestamp(ctx context.Context) (time.Time, error) {
	var ms sql.NullInt64
	if err := r.q.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM offline_ops`).Scan(&ms); err != nil {
		return time.Time{}, fmt.Errorf("failed to read latest op timestamp: %w", err)
	}
	if !ms.Valid {
		return time.Time{}, nil
	}
	return fromMillis(ms.Int64), nil
}
