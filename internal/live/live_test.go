package live

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func addBoard(t *testing.T, db *store.DB, name string) {
	t.Helper()
	ctx := context.Background()
	err := db.RunInTransaction(ctx, []store.Table{store.TableBoards}, func(tx *store.Tx) error {
		now := time.Now()
		return tx.InsertBoard(ctx, &types.Board{Name: name, CreatedAt: now, UpdatedAt: now})
	})
	require.NoError(t, err)
}

func countBoards(db *store.DB) QueryFunc[int] {
	return func(ctx context.Context) (int, error) {
		return db.CountBoards(ctx)
	}
}

func next(t *testing.T, q *Query[int]) int {
	t.Helper()
	select {
	case r, ok := <-q.Updates():
		require.True(t, ok, "updates closed")
		require.NoError(t, r.Err)
		return r.Value
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for update")
		return 0
	}
}

func TestWatchReRunsOnWrite(t *testing.T) {
	db := openTestDB(t)
	q := Watch(context.Background(), db, []store.Table{store.TableBoards}, countBoards(db))
	defer q.Close()

	assert.Equal(t, 1, next(t, q))

	addBoard(t, db, "Work")
	assert.Equal(t, 2, next(t, q))
}

func TestWatchIgnoresOtherTables(t *testing.T) {
	db := openTestDB(t)
	runs := make(chan struct{}, 10)
	q := Watch(context.Background(), db, []store.Table{store.TableBoards}, func(ctx context.Context) (int, error) {
		runs <- struct{}{}
		return db.CountBoards(ctx)
	})
	defer q.Close()
	next(t, q)

	ctx := context.Background()
	err := db.RunInTransaction(ctx, []store.Table{store.TableSettings}, func(tx *store.Tx) error {
		s, err := tx.GetSettings(ctx)
		if err != nil {
			return err
		}
		return tx.SaveSettings(ctx, s)
	})
	require.NoError(t, err)

	assert.Len(t, runs, 1, "settings writes do not re-run a boards query")
}

func TestWatchDeliversLatestOnly(t *testing.T) {
	db := openTestDB(t)
	q := Watch(context.Background(), db, []store.Table{store.TableBoards}, countBoards(db))
	defer q.Close()
	next(t, q)

	for i := 0; i < 5; i++ {
		addBoard(t, db, "b")
	}

	// Results may be coalesced, but the last one seen must be current.
	require.Eventually(t, func() bool {
		select {
		case r := <-q.Updates():
			return r.Value == 6
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestWatchExternalChange(t *testing.T) {
	db := openTestDB(t)
	q := Watch(context.Background(), db, []store.Table{store.TableBoards}, countBoards(db))
	defer q.Close()
	next(t, q)

	// Another process wrote the file; only the external signal reaches us.
	_, err := db.RawDB().Exec(`INSERT INTO boards (name, "order", created_at, updated_at) VALUES ('x', 9, 0, 0)`)
	require.NoError(t, err)
	db.NotifyExternal()

	assert.Equal(t, 2, next(t, q))
}

func TestCloseUnsubscribes(t *testing.T) {
	db := openTestDB(t)
	before := db.Notifier().Len()

	ctx, cancel := context.WithCancel(context.Background())
	q := Watch(ctx, db, nil, countBoards(db))
	next(t, q)
	assert.Equal(t, before+1, db.Notifier().Len())

	cancel()
	q.Close()
	q.Close()

	_, open := <-q.Updates()
	assert.False(t, open)
	assert.Equal(t, before, db.Notifier().Len())
}
