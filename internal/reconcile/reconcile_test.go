package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/DaveSongnata/BitTask/internal/types"
)

func TestReconcile(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	op := &types.OfflineOp{OpType: types.OpUpdate, Entity: types.EntityTask, Timestamp: base}

	tests := []struct {
		name   string
		remote *RemoteState
		want   Winner
	}{
		{"remote missing", nil, Local},
		{"remote without updatedAt", &RemoteState{}, Local},
		{"local newer", &RemoteState{UpdatedAt: base.Add(-time.Millisecond)}, Local},
		{"equal timestamps", &RemoteState{UpdatedAt: base}, Remote},
		{"remote newer", &RemoteState{UpdatedAt: base.Add(time.Second)}, Remote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reconcile(op, tt.remote))
		})
	}
}

func TestReconcileDoesNotMutate(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	op := &types.OfflineOp{ID: 7, Timestamp: ts, RetryCount: 2}
	remote := &RemoteState{UpdatedAt: ts.Add(time.Hour)}

	Reconcile(op, remote)

	assert.Equal(t, int64(7), op.ID)
	assert.Equal(t, 2, op.RetryCount)
	assert.True(t, op.Timestamp.Equal(ts))
	assert.True(t, remote.UpdatedAt.Equal(ts.Add(time.Hour)))
}

func TestReconcileNullRemoteAlwaysLocal(t *testing.T) {
	for _, ts := range []time.Time{{}, time.Unix(0, 0), time.Now(), time.Now().Add(100 * 365 * 24 * time.Hour)} {
		assert.Equal(t, Local, Reconcile(&types.OfflineOp{Timestamp: ts}, nil))
	}
}
