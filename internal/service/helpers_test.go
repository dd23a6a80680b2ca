package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DaveSongnata/BitTask/internal/queue"
	"github.com/DaveSongnata/BitTask/internal/store"
)

// testClock advances one millisecond per reading so every timestamp is
// distinct and ordered.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

type testEnv struct {
	ctx   context.Context
	db    *store.DB
	queue *queue.Queue
	svc   *Services
	clock *testClock
}

func testDBPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "test.db")
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(testDBPath(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(ctx))

	clock := newTestClock()
	q := queue.New(db, queue.WithClock(clock.Now))
	return &testEnv{
		ctx:   ctx,
		db:    db,
		queue: q,
		svc:   New(db, q, WithClock(clock.Now)),
		clock: clock,
	}
}

// inbox returns the board created by the migrations.
func (e *testEnv) inbox(t *testing.T) int64 {
	t.Helper()
	boards, err := e.svc.Boards.ListBoards(e.ctx)
	require.NoError(t, err)
	require.NotEmpty(t, boards)
	return boards[0].ID
}

func ptr[T any](v T) *T { return &v }
