// Package reconcile decides whether a pending local operation or the remote
// server's state prevails. The policy is whole-entity last-write-wins.
package reconcile

import (
	"time"

	"github.com/DaveSongnata/BitTask/internal/types"
)

// Winner is the side whose state should be kept.
type Winner string

const (
	Local  Winner = "local"
	Remote Winner = "remote"
)

// RemoteState is what the server reports about an entity on conflict. A
// zero UpdatedAt means the server did not say.
type RemoteState struct {
	UpdatedAt time.Time `json:"updatedAt"`
}

// Reconcile compares the local operation's timestamp to the remote
// entity's UpdatedAt:
//
//	remote == nil               -> Local (the entity does not exist remotely)
//	remote.UpdatedAt unset      -> Local
//	op.Timestamp >  UpdatedAt   -> Local
//	op.Timestamp <= UpdatedAt   -> Remote
//
// Ties go to the remote.
func Reconcile(op *types.OfflineOp, remote *RemoteState) Winner {
	if remote == nil || remote.UpdatedAt.IsZero() {
		return Local
	}
	if op.Timestamp.After(remote.UpdatedAt) {
		return Local
	}
	return Remote
}
