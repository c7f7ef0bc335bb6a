// internal/app/realtime/groupfeed.go
package realtime

import (
	"context"
	"sort"
	"sync"

	groupstore "github.com/dalemusser/studyhub/internal/app/store/groups"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// GroupSource supplies the snapshot query and change feed a GroupFeed runs
// on. The store-backed implementation is GroupSourceFromStore; tests
// substitute a fake to drive teardown races deterministically.
type GroupSource interface {
	ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error)
	Watch(ctx context.Context) (ChangeCursor, error)
}

// GroupSourceFromStore adapts the groups store to the GroupSource interface.
func GroupSourceFromStore(s *groupstore.Store) GroupSource {
	return storeGroupSource{s: s}
}

type storeGroupSource struct {
	s *groupstore.Store
}

func (g storeGroupSource) ListByMember(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	return g.s.ListByMember(ctx, userID)
}

func (g storeGroupSource) Watch(ctx context.Context) (ChangeCursor, error) {
	return g.s.Watch(ctx)
}

// GroupFeed maintains live "groups I belong to" views, one subscription
// per user. Subscribing again for a user who already holds a live
// subscription tears the old one down first, so a client reconnect never
// leaks a listener or doubles callbacks.
type GroupFeed struct {
	src GroupSource
	log *zap.Logger

	mu     sync.Mutex
	active map[primitive.ObjectID]*Subscription
}

func NewGroupFeed(src GroupSource, log *zap.Logger) *GroupFeed {
	return &GroupFeed{
		src:    src,
		log:    log,
		active: make(map[primitive.ObjectID]*Subscription),
	}
}

// Subscribe opens a live view for userID. onUpdate receives the user's
// full, ordered group list immediately and again after every store change;
// onError fires at most once, after which no further updates are
// delivered. A synchronous setup failure is returned instead, and callers
// fall back to FetchOnce.
func (f *GroupFeed) Subscribe(ctx context.Context, userID primitive.ObjectID, onUpdate func([]models.Group), onError func(error)) (*Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	cursor, err := f.src.Watch(streamCtx)
	if err != nil {
		cancel()
		return nil, err
	}

	sub := newSubscription(cancel)
	sub.detach = func() {
		f.mu.Lock()
		if f.active[userID] == sub {
			delete(f.active, userID)
		}
		f.mu.Unlock()
	}

	// Replace any live subscription for this user; closing the old one
	// happens outside the lock because Close detaches via the same lock.
	f.mu.Lock()
	prev := f.active[userID]
	f.active[userID] = sub
	f.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	go f.pump(streamCtx, cursor, sub, userID, onUpdate, onError)
	return sub, nil
}

func (f *GroupFeed) pump(ctx context.Context, cursor ChangeCursor, sub *Subscription, userID primitive.ObjectID, onUpdate func([]models.Group), onError func(error)) {
	defer cursor.Close(context.Background())
	defer sub.Close()

	// Initial snapshot so the client renders without waiting for a change.
	if !f.deliver(ctx, sub, userID, onUpdate, onError) {
		return
	}

	for cursor.Next(ctx) {
		if !f.deliver(ctx, sub, userID, onUpdate, onError) {
			return
		}
	}

	if err := cursor.Err(); err != nil && ctx.Err() == nil && sub.alive() {
		onError(err)
	}
}

// deliver re-queries the snapshot and hands the ordered list to onUpdate.
// Returns false when the subscription is finished (closed or errored).
func (f *GroupFeed) deliver(ctx context.Context, sub *Subscription, userID primitive.ObjectID, onUpdate func([]models.Group), onError func(error)) bool {
	if !sub.alive() {
		return false
	}
	groups, err := f.src.ListByMember(ctx, userID)
	if err != nil {
		if ctx.Err() == nil && sub.alive() {
			onError(err)
		}
		return false
	}
	SortByActivity(groups)
	if !sub.alive() {
		return false
	}
	onUpdate(groups)
	return true
}

// FetchOnce returns the same filtered, ordered list a subscription would
// deliver, without subscribing. This is also the fallback when Subscribe
// fails synchronously.
func (f *GroupFeed) FetchOnce(ctx context.Context, userID primitive.ObjectID) ([]models.Group, error) {
	groups, err := f.src.ListByMember(ctx, userID)
	if err != nil {
		return nil, err
	}
	SortByActivity(groups)
	return groups, nil
}

// SortByActivity orders groups by last_activity descending. Zero
// timestamps sort oldest (to the end); ties keep snapshot order.
func SortByActivity(groups []models.Group) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].LastActivity.After(groups[j].LastActivity)
	})
}
