package store

import "sync"

// Notifier fans committed-write events out to subscribers keyed by table.
//
// Callbacks run synchronously on the committing goroutine and must not
// block; the live query layer only signals a channel.
type Notifier struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*subscription
}

type subscription struct {
	tables map[Table]struct{}
	fn     func(changed []Table)
}

// NewNotifier returns an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[uint64]*subscription)}
}

// Subscribe registers fn for writes to any of tables. An empty tables list
// subscribes to every table. The returned function unregisters fn and is
// safe to call more than once.
func (n *Notifier) Subscribe(tables []Table, fn func(changed []Table)) (unsubscribe func()) {
	sub := &subscription{fn: fn}
	if len(tables) > 0 {
		sub.tables = make(map[Table]struct{}, len(tables))
		for _, t := range tables {
			sub.tables[t] = struct{}{}
		}
	}

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = sub
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
		})
	}
}

// Notify invokes every subscriber watching at least one of tables.
func (n *Notifier) Notify(tables []Table) {
	if len(tables) == 0 {
		return
	}

	n.mu.Lock()
	var targets []*subscription
	for _, sub := range n.subs {
		if sub.matches(tables) {
			targets = append(targets, sub)
		}
	}
	n.mu.Unlock()

	for _, sub := range targets {
		sub.fn(tables)
	}
}

// Len returns the number of live subscriptions.
func (n *Notifier) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}

func (s *subscription) matches(tables []Table) bool {
	if s.tables == nil {
		return true
	}
	for _, t := range tables {
		if _, ok := s.tables[t]; ok {
			return true
		}
	}
	return false
}
