package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaveSongnata/BitTask/internal/store"
	"github.com/DaveSongnata/BitTask/internal/types"
)

type countingSignaler struct{ n atomic.Int32 }

func (c *countingSignaler) NotifyExternal() { c.n.Add(1) }

func TestNewValidates(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "x.db"), nil, Config{})
	assert.Error(t, err)
}

func TestSignalsOnForeignWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), store.FileName)

	db, err := store.Open(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))

	sig := &countingSignaler{}
	w, err := New(path, sig, Config{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()
	assert.Error(t, w.Start(), "second start is refused")

	// A second connection stands in for another process.
	other, err := store.Open(path)
	require.NoError(t, err)
	defer other.Close()
	err = other.RunInTransaction(ctx, []store.Table{store.TableBoards}, func(tx *store.Tx) error {
		now := time.Now()
		return tx.InsertBoard(ctx, &types.Board{Name: "elsewhere", CreatedAt: now, UpdatedAt: now})
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sig.n.Load() > 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int(sig.n.Load()), w.Signals())
}

func TestIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	sig := &countingSignaler{}
	w, err := New(filepath.Join(dir, store.FileName), sig, Config{Debounce: 10 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, store.FileName+"-shm"), []byte("x"), 0644))
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
	assert.Zero(t, sig.n.Load())
}
