package sync

import (
	"context"
	"time"

	"github.com/DaveSongnata/BitTask/internal/reconcile"
	"github.com/DaveSongnata/BitTask/internal/types"
)

// Envelope is one queue entry on its way to the remote. Force asks the
// remote to apply the entry even though it reported a conflict for it.
type Envelope struct {
	Op    *types.OfflineOp `json:"op"`
	Force bool             `json:"force,omitempty"`
}

// Status is the remote's verdict on one envelope.
type Status string

const (
	StatusOK       Status = "ok"
	StatusConflict Status = "conflict"
	StatusError    Status = "error"
)

// PushResult answers one envelope, matched by OpID.
type PushResult struct {
	OpID   string `json:"opId"`
	Status Status `json:"status"`
	// Remote is the server's state of the entity; set for conflicts.
	Remote *reconcile.RemoteState `json:"remote,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// PullResult carries remote task changes after a cursor.
type PullResult struct {
	Tasks []*types.Task `json:"tasks"`
	// Deleted lists task IDs removed on the remote.
	Deleted []int64 `json:"deleted"`
	// Cursor is where the next pull resumes. Zero means "the newest
	// UpdatedAt among Tasks".
	Cursor time.Time `json:"cursor"`
}

// Remote is the server side of synchronization. Implementations own the
// transport and authentication.
type Remote interface {
	// Push sends envelopes in order and returns one result per envelope.
	// An error means the whole call failed and nothing was applied.
	Push(ctx context.Context, envelopes []Envelope) ([]PushResult, error)

	// Pull returns tasks changed after since. The zero time asks for
	// everything.
	Pull(ctx context.Context, since time.Time) (*PullResult, error)
}
