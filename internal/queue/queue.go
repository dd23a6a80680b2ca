// Package queue is the offline mutation queue: a durable, append-only log of
// task and attachment mutations waiting to be sent to a remote server.
//
// Entries are appended inside the same storage transaction as the mutation
// they describe (Enqueue takes the open *store.Tx), so an entity change and
// its queue entry commit or roll back together. After that an entry is only
// ever changed to flip Synced, bump RetryCount or set LastError.
//
// Replay order is ascending Timestamp with insertion order breaking ties.
// Timestamps never go backwards within a store: a new entry is stamped no
// earlier than the newest existing one, so a wall-clock step back cannot
// reorder operations on the same entity.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

// DefaultMaxRetries is the retry ceiling used when callers pass 0.
const DefaultMaxRetries = 3

// Queue reads and updates the offline_ops table.
type Queue struct {
	db     *store.DB
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock overrides time.Now for operation timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator overrides the op id source (UUID v4 by default).
func WithIDGenerator(newID func() string) Option {
	return func(q *Queue) { q.newID = newID }
}

// WithLogger sets the queue logger.
func WithLogger(logger *zap.Logger) Option {
	return func(q *Queue) {
		if logger != nil {
			q.logger = logger.With(zap.String("component", "queue"))
		}
	}
}

// New returns a Queue over db.
func New(db *store.DB, opts ...Option) *Queue {
	q := &Queue{
		db:     db,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends an entry describing a mutation performed in tx. The
// payload must match (opType, entity): full record for create, delta for
// update, nil for delete.
func (q *Queue) Enqueue(ctx context.Context, tx *store.Tx, opType types.OpType, entity types.EntityKind, entityID int64, payload types.Payload) (*types.OfflineOp, error) {
	if err := types.CheckPayload(opType, entity, payload); err != nil {
		return nil, fmt.Errorf("failed to enqueue: %w", err)
	}

	ts := q.now().UTC().Truncate(time.Millisecond)
	latest, err := tx.LatestOpTimestamp(ctx)
	if err != nil {
		return nil, err
	}
	if ts.Before(latest) {
		ts = latest
	}

	op := &types.OfflineOp{
		OpID:      q.newID(),
		OpType:    opType,
		Entity:    entity,
		EntityID:  entityID,
		Payload:   payload,
		Timestamp: ts,
	}
	if err := tx.InsertOp(ctx, op); err != nil {
		return nil, err
	}

	q.logger.Debug("enqueued",
		zap.String("op_id", op.OpID),
		zap.String("op_type", string(opType)),
		zap.String("entity", string(entity)),
		zap.Int64("entity_id", entityID))
	return op, nil
}

// CountPending returns the number of unsynced entries.
func (q *Queue) CountPending(ctx context.Context) (int, error) {
	return q.db.CountPendingOps(ctx)
}

// ListPending returns unsynced entries oldest first. This is the order a
// sync driver must replay them in.
func (q *Queue) ListPending(ctx context.Context) ([]*types.OfflineOp, error) {
	return q.db.ListPendingOps(ctx)
}

// ListAll returns every entry including synced ones.
func (q *Queue) ListAll(ctx context.Context) ([]*types.OfflineOp, error) {
	return q.db.ListAllOps(ctx)
}

// Get returns the entry with id, or nil.
func (q *Queue) Get(ctx context.Context, id int64) (*types.OfflineOp, error) {
	return q.db.GetOp(ctx, id)
}

// GetByOpID returns the entry with the client op id, or nil.
func (q *Queue) GetByOpID(ctx context.Context, opID string) (*types.OfflineOp, error) {
	return q.db.GetOpByOpID(ctx, opID)
}

// MarkSynced records that the remote accepted entry id. Idempotent.
func (q *Queue) MarkSynced(ctx context.Context, id int64) error {
	return q.db.RunInTransaction(ctx, []store.Table{store.TableOfflineOps}, func(tx *store.Tx) error {
		return tx.MarkOpSynced(ctx, id)
	})
}

// MarkFailed stores errMsg as the last error and bumps the retry count.
// The entry stays unsynced.
func (q *Queue) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	return q.db.RunInTransaction(ctx, []store.Table{store.TableOfflineOps}, func(tx *store.Tx) error {
		return tx.MarkOpFailed(ctx, id, errMsg)
	})
}

// ResetRetries makes an exhausted entry eligible again by zeroing its
// retry count and clearing its last error. It reports false for unknown
// or already synced entries.
func (q *Queue) ResetRetries(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := q.db.RunInTransaction(ctx, []store.Table{store.TableOfflineOps}, func(tx *store.Tx) error {
		var err error
		ok, err = tx.ResetOpRetries(ctx, id)
		return err
	})
	return ok, err
}

// CleanupSynced hard-deletes synced entries and returns how many were
// removed. Unsynced entries are never touched.
func (q *Queue) CleanupSynced(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.RunInTransaction(ctx, []store.Table{store.TableOfflineOps}, func(tx *store.Tx) error {
		var err error
		n, err = tx.DeleteSyncedOps(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		q.logger.Info("cleaned up synced entries", zap.Int64("count", n))
	}
	return n, nil
}

// GetReadyForSync returns unsynced entries whose retry count is below
// maxRetries, oldest first. Entries at or over the ceiling need manual
// intervention (see ListExhausted and ResetRetries). A ceiling of 0 means
// nothing is ready; a negative one means DefaultMaxRetries.
func (q *Queue) GetReadyForSync(ctx context.Context, maxRetries int) ([]*types.OfflineOp, error) {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return q.db.ListReadyOps(ctx, maxRetries)
}

// ListExhausted returns unsynced entries whose retry count reached
// maxRetries, so a ceiling of 0 returns every unsynced entry. A negative
// ceiling means DefaultMaxRetries.
func (q *Queue) ListExhausted(ctx context.Context, maxRetries int) ([]*types.OfflineOp, error) {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return q.db.ListExhaustedOps(ctx, maxRetries)
}
