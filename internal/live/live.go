// Package live re-runs queries when the tables they read change.
//
// A Query subscribes to the store's notifier for the tables it names and
// re-evaluates after every committed transaction that touched one of them.
// Consumers only ever see the freshest result: if they fall behind, older
// pending results are dropped rather than queued.
package live

import (
	"context"

	"github.com/DaveSongnata/BitTask/internal/store"
)

// Result is one evaluation of a watched query.
type Result[T any] struct {
	Value T
	Err   error
}

// QueryFunc reads the current value of a watched query.
type QueryFunc[T any] func(ctx context.Context) (T, error)

// Query is a running watch. Stop it with Close or by cancelling the
// context passed to Watch.
type Query[T any] struct {
	updates     chan Result[T]
	dirty       chan struct{}
	cancel      context.CancelFunc
	done        chan struct{}
	unsubscribe func()
}

// Watch evaluates fn once and again after every write to tables. An empty
// tables list watches every table.
func Watch[T any](ctx context.Context, db *store.DB, tables []store.Table, fn QueryFunc[T]) *Query[T] {
	ctx, cancel := context.WithCancel(ctx)
	q := &Query[T]{
		updates: make(chan Result[T], 1),
		dirty:   make(chan struct{}, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	// Subscribe before the first run so no commit slips between them.
	q.unsubscribe = db.Notifier().Subscribe(tables, func([]store.Table) {
		select {
		case q.dirty <- struct{}{}:
		default:
		}
	})

	go q.run(ctx, fn)
	return q
}

func (q *Query[T]) run(ctx context.Context, fn QueryFunc[T]) {
	defer close(q.done)
	defer close(q.updates)
	defer q.unsubscribe()

	q.publish(fn(ctx))
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.dirty:
			v, err := fn(ctx)
			if ctx.Err() != nil {
				return
			}
			q.publish(v, err)
		}
	}
}

// publish replaces any result the consumer has not read yet.
func (q *Query[T]) publish(v T, err error) {
	select {
	case <-q.updates:
	default:
	}
	q.updates <- Result[T]{Value: v, Err: err}
}

// Updates delivers results, newest only. It is closed after the query
// stops.
func (q *Query[T]) Updates() <-chan Result[T] {
	return q.updates
}

// Close stops the query and unsubscribes it. It waits for an evaluation in
// progress to finish.
func (q *Query[T]) Close() {
	q.cancel()
	<-q.done
}
