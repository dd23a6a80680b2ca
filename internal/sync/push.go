package sync

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/DaveSongnata/BitTask/internal/reconcile"
	"github.com/DaveSongnata/BitTask/internal/types"
)

// entityKey identifies the entity an entry targets.
type entityKey struct {
	kind types.EntityKind
	id   int64
}

func keyOf(op *types.OfflineOp) entityKey {
	return entityKey{kind: op.Entity, id: op.EntityID}
}

// Push sends every eligible entry once and records the outcome.
func (d *Driver) Push(ctx context.Context) (*Report, error) {
	report := &Report{}
	return report, d.push(ctx, report)
}

func (d *Driver) push(ctx context.Context, report *Report) error {
	ready, err := d.queue.GetReadyForSync(ctx, d.config.MaxRetries)
	if err != nil {
		return err
	}
	if len(ready) == 0 {
		return nil
	}

	// An exhausted entry blocks everything queued after it for its entity.
	exhausted, err := d.queue.ListExhausted(ctx, d.config.MaxRetries)
	if err != nil {
		return err
	}
	blockedAfter := make(map[entityKey]int64)
	for _, op := range exhausted {
		if _, ok := blockedAfter[keyOf(op)]; !ok {
			blockedAfter[keyOf(op)] = op.ID
		}
	}
	blocked := func(op *types.OfflineOp) bool {
		first, ok := blockedAfter[keyOf(op)]
		return ok && op.ID > first
	}

	var batch []*types.OfflineOp
	inBatch := make(map[entityKey]bool)
	flush := func() (bool, error) {
		if len(batch) == 0 {
			return true, nil
		}
		failed, transportOK, err := d.sendBatch(ctx, batch, report)
		for _, op := range failed {
			if _, ok := blockedAfter[keyOf(op)]; !ok {
				blockedAfter[keyOf(op)] = op.ID
			}
		}
		batch = batch[:0]
		clear(inBatch)
		return transportOK, err
	}

	for _, op := range ready {
		if blocked(op) {
			report.HeldBack++
			continue
		}
		// One entry per entity per batch, so a failure can still hold
		// back the entity's later entries.
		if inBatch[keyOf(op)] || len(batch) >= d.config.BatchSize {
			ok, err := flush()
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if blocked(op) {
				report.HeldBack++
				continue
			}
		}
		batch = append(batch, op)
		inBatch[keyOf(op)] = true
	}

	_, err = flush()
	return err
}

// sendBatch pushes batch and records every outcome. It returns the entries
// that failed and whether the transport worked at all.
func (d *Driver) sendBatch(ctx context.Context, batch []*types.OfflineOp, report *Report) ([]*types.OfflineOp, bool, error) {
	envelopes := make([]Envelope, len(batch))
	for i, op := range batch {
		envelopes[i] = Envelope{Op: op}
	}

	results, err := d.remote.Push(ctx, envelopes)
	if err != nil {
		d.logger.Warn("push failed", zap.Int("entries", len(batch)), zap.Error(err))
		for _, op := range batch {
			if err := d.fail(ctx, op, err.Error(), report); err != nil {
				return nil, false, err
			}
		}
		return batch, false, nil
	}

	byOpID := make(map[string]PushResult, len(results))
	for _, r := range results {
		byOpID[r.OpID] = r
	}

	var failed []*types.OfflineOp
	for _, op := range batch {
		r, ok := byOpID[op.OpID]
		if !ok {
			r = PushResult{OpID: op.OpID, Status: StatusError, Error: "no result from remote"}
		}

		success, err := d.settle(ctx, op, r, report)
		if err != nil {
			return nil, true, err
		}
		if !success {
			failed = append(failed, op)
		}
	}
	return failed, true, nil
}

// settle applies one push result. It reports false when the entry was
// marked failed.
func (d *Driver) settle(ctx context.Context, op *types.OfflineOp, r PushResult, report *Report) (bool, error) {
	switch r.Status {
	case StatusOK:
		report.Pushed++
		return true, d.queue.MarkSynced(ctx, op.ID)

	case StatusConflict:
		if reconcile.Reconcile(op, r.Remote) == reconcile.Remote {
			d.logger.Debug("remote wins conflict",
				zap.String("op_id", op.OpID),
				zap.String("entity", string(op.Entity)),
				zap.Int64("entity_id", op.EntityID))
			report.Superseded++
			return true, d.queue.MarkSynced(ctx, op.ID)
		}
		return d.force(ctx, op, report)

	default:
		msg := r.Error
		if msg == "" {
			msg = fmt.Sprintf("remote status %q", r.Status)
		}
		return false, d.fail(ctx, op, msg, report)
	}
}

// force resends an entry that won its conflict. It is tried once.
func (d *Driver) force(ctx context.Context, op *types.OfflineOp, report *Report) (bool, error) {
	report.Forced++
	results, err := d.remote.Push(ctx, []Envelope{{Op: op, Force: true}})
	if err != nil {
		return false, d.fail(ctx, op, err.Error(), report)
	}
	if len(results) != 1 || results[0].Status != StatusOK {
		msg := "forced resend rejected"
		if len(results) == 1 && results[0].Error != "" {
			msg = results[0].Error
		}
		return false, d.fail(ctx, op, msg, report)
	}
	report.Pushed++
	return true, d.queue.MarkSynced(ctx, op.ID)
}

func (d *Driver) fail(ctx context.Context, op *types.OfflineOp, msg string, report *Report) error {
	report.Failed++
	d.logger.Debug("entry failed",
		zap.String("op_id", op.OpID),
		zap.Int("retry", op.RetryCount+1),
		zap.String("error", msg))
	return d.queue.MarkFailed(ctx, op.ID, msg)
}
