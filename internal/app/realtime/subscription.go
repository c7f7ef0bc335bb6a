// Package realtime delivers live views of a user's group list and of a
// group's message stream over the store's change feed.
//
// Every notification rebuilds the full result from the current snapshot
// instead of patching incrementally: the snapshot already reflects all
// adds, removes and updates atomically from the store's perspective.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
)

// A Subscription is the handle returned by the feeds' Subscribe methods.
//
// Close is idempotent and safe to call from inside an onUpdate/onError
// callback. Delivery is gated on the subscription's liveness flag checked
// immediately before each callback, so once Close returns no further
// callbacks start, even for a notification already in flight.
type Subscription struct {
	closed atomic.Bool
	cancel context.CancelFunc

	// detach unregisters the subscription from its feed's active table.
	// Set by the owning feed; may be nil in tests.
	detach func()

	detachOnce sync.Once
}

func newSubscription(cancel context.CancelFunc) *Subscription {
	return &Subscription{cancel: cancel}
}

// Close tears the subscription down. Safe to call multiple times.
func (s *Subscription) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.cancel()
	if s.detach != nil {
		s.detachOnce.Do(s.detach)
	}
}

// alive reports whether callbacks may still be delivered.
func (s *Subscription) alive() bool {
	return !s.closed.Load()
}

// ChangeCursor is the slice of the store's change-stream cursor the feeds
// consume. *mongo.ChangeStream satisfies it.
type ChangeCursor interface {
	Next(ctx context.Context) bool
	Err() error
	Close(ctx context.Context) error
}
