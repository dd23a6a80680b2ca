package queue

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

// manualClock returns whatever it was last set to.
type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time { return c.t }

func newTestQueue(t *testing.T) (*Queue, *store.DB, *manualClock) {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	clock := &manualClock{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	n := 0
	q := New(db, WithClock(clock.Now), WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("op-%d", n)
	}))
	return q, db, clock
}

func enqueue(t *testing.T, q *Queue, db *store.DB, opType types.OpType, entityID int64, payload types.Payload) *types.OfflineOp {
	t.Helper()
	var op *types.OfflineOp
	err := db.RunInTransaction(context.Background(), []store.Table{store.TableOfflineOps}, func(tx *store.Tx) error {
		var err error
		op, err = q.Enqueue(context.Background(), tx, opType, types.EntityTask, entityID, payload)
		return err
	})
	require.NoError(t, err)
	return op
}

func record(id int64) types.Payload {
	return types.TaskRecord{Task: types.Task{ID: id, Title: "t", Priority: types.PriorityLow}}
}

func TestEnqueueDefaults(t *testing.T) {
	q, db, clock := newTestQueue(t)
	ctx := context.Background()

	op := enqueue(t, q, db, types.OpCreate, 7, record(7))
	assert.Equal(t, "op-1", op.OpID)
	assert.False(t, op.Synced)
	assert.Zero(t, op.RetryCount)
	assert.Equal(t, clock.t, op.Timestamp)

	got, err := q.GetByOpID(ctx, "op-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, op.ID, got.ID)
	assert.Equal(t, int64(7), got.EntityID)
	assert.IsType(t, types.TaskRecord{}, got.Payload)

	missing, err := q.GetByOpID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestEnqueueRejectsMismatchedPayload(t *testing.T) {
	q, db, _ := newTestQueue(t)

	err := db.RunInTransaction(context.Background(), []store.Table{store.TableOfflineOps}, func(tx *store.Tx) error {
		_, err := q.Enqueue(context.Background(), tx, types.OpDelete, types.EntityTask, 1, record(1))
		return err
	})
	assert.Error(t, err)

	n, err := q.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnqueueRollsBackWithTransaction(t *testing.T) {
	q, db, _ := newTestQueue(t)
	ctx := context.Background()

	boom := fmt.Errorf("boom")
	err := db.RunInTransaction(ctx, []store.Table{store.TableOfflineOps}, func(tx *store.Tx) error {
		if _, err := q.Enqueue(ctx, tx, types.OpDelete, types.EntityTask, 1, nil); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := q.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListPendingOrder(t *testing.T) {
	q, db, clock := newTestQueue(t)
	ctx := context.Background()

	base := clock.t
	first := enqueue(t, q, db, types.OpCreate, 1, record(1))
	clock.t = base.Add(time.Second)
	second := enqueue(t, q, db, types.OpDelete, 1, nil)

	// The wall clock jumps back; the entry must not sort before the others.
	clock.t = base.Add(-time.Hour)
	third := enqueue(t, q, db, types.OpCreate, 2, record(2))
	assert.Equal(t, second.Timestamp, third.Timestamp)

	ops, err := q.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, []int64{first.ID, second.ID, third.ID}, []int64{ops[0].ID, ops[1].ID, ops[2].ID})
	for i := 1; i < len(ops); i++ {
		assert.False(t, ops[i].Timestamp.Before(ops[i-1].Timestamp))
	}
}

func TestMarkSyncedIsIdempotent(t *testing.T) {
	q, db, _ := newTestQueue(t)
	ctx := context.Background()

	op := enqueue(t, q, db, types.OpCreate, 1, record(1))
	require.NoError(t, q.MarkSynced(ctx, op.ID))
	require.NoError(t, q.MarkSynced(ctx, op.ID))
	require.NoError(t, q.MarkSynced(ctx, 12345))

	got, err := q.Get(ctx, op.ID)
	require.NoError(t, err)
	assert.True(t, got.Synced)

	n, err := q.CountPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMarkFailedAndReadyForSync(t *testing.T) {
	q, db, _ := newTestQueue(t)
	ctx := context.Background()

	a := enqueue(t, q, db, types.OpCreate, 1, record(1))
	b := enqueue(t, q, db, types.OpCreate, 2, record(2))
	c := enqueue(t, q, db, types.OpCreate, 3, record(3))

	for i := 0; i < 3; i++ {
		require.NoError(t, q.MarkFailed(ctx, a.ID, "timeout"))
	}
	require.NoError(t, q.MarkFailed(ctx, b.ID, "timeout"))
	require.NoError(t, q.MarkSynced(ctx, c.ID))

	got, err := q.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RetryCount)
	assert.Equal(t, "timeout", got.LastError)
	assert.False(t, got.Synced)

	ready, err := q.GetReadyForSync(ctx, 3)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, b.ID, ready[0].ID)

	ready, err = q.GetReadyForSync(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, ready, "a ceiling of 0 leaves nothing ready")

	ready, err = q.GetReadyForSync(ctx, -1)
	require.NoError(t, err)
	assert.Len(t, ready, 1, "a negative ceiling uses the default")

	exhausted, err := q.ListExhausted(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, exhausted, 2, "a ceiling of 0 exhausts every unsynced entry")

	ready, err = q.GetReadyForSync(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, ready, 2)

	exhausted, err = q.ListExhausted(ctx, 3)
	require.NoError(t, err)
	require.Len(t, exhausted, 1)
	assert.Equal(t, a.ID, exhausted[0].ID)

	ok, err := q.ResetRetries(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	got, err = q.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RetryCount)
	assert.Empty(t, got.LastError)

	ok, err = q.ResetRetries(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, ok, "synced entries are not reset")
}

func TestCleanupSyncedKeepsPending(t *testing.T) {
	q, db, _ := newTestQueue(t)
	ctx := context.Background()

	a := enqueue(t, q, db, types.OpCreate, 1, record(1))
	enqueue(t, q, db, types.OpCreate, 2, record(2))
	require.NoError(t, q.MarkSynced(ctx, a.ID))

	n, err := q.CleanupSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	all, err := q.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, int64(2), all[0].EntityID)

	n, err = q.CleanupSynced(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
