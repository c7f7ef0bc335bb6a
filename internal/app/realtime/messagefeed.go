// internal/app/realtime/messagefeed.go
package realtime

import (
	"context"
	"sort"
	"sync"
	"time"

	messagestore "github.com/dalemusser/studyhub/internal/app/store/messages"
	"github.com/dalemusser/studyhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MessageSource supplies the per-group message snapshot and change feed.
type MessageSource interface {
	ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Message, error)
	Watch(ctx context.Context, groupID primitive.ObjectID) (ChangeCursor, error)
}

// MessageSourceFromStore adapts the messages store to MessageSource.
func MessageSourceFromStore(s *messagestore.Store) MessageSource {
	return storeMessageSource{s: s}
}

type storeMessageSource struct {
	s *messagestore.Store
}

func (m storeMessageSource) ListByGroup(ctx context.Context, groupID primitive.ObjectID) ([]models.Message, error) {
	return m.s.ListByGroup(ctx, groupID)
}

func (m storeMessageSource) Watch(ctx context.Context, groupID primitive.ObjectID) (ChangeCursor, error) {
	return m.s.Watch(ctx, groupID)
}

// subKey identifies one caller's chat subscription: the same caller
// re-subscribing to the same group replaces the previous subscription.
type subKey struct {
	caller primitive.ObjectID
	group  primitive.ObjectID
}

// MessageFeed maintains live, ordered views of one group's chat. Every
// snapshot delivered is the complete message list, normalized for display.
type MessageFeed struct {
	src MessageSource
	log *zap.Logger

	mu     sync.Mutex
	active map[subKey]*Subscription
}

func NewMessageFeed(src MessageSource, log *zap.Logger) *MessageFeed {
	return &MessageFeed{
		src:    src,
		log:    log,
		active: make(map[subKey]*Subscription),
	}
}

// Subscribe opens a live chat view on groupID for callerID. Semantics
// match GroupFeed.Subscribe: immediate first snapshot, full list on every
// change, onError at most once, synchronous setup errors returned for the
// caller to fall back to FetchOnce.
func (f *MessageFeed) Subscribe(ctx context.Context, groupID, callerID primitive.ObjectID, onMessages func([]models.Message), onError func(error)) (*Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	cursor, err := f.src.Watch(streamCtx, groupID)
	if err != nil {
		cancel()
		return nil, err
	}

	key := subKey{caller: callerID, group: groupID}
	sub := newSubscription(cancel)
	sub.detach = func() {
		f.mu.Lock()
		if f.active[key] == sub {
			delete(f.active, key)
		}
		f.mu.Unlock()
	}

	f.mu.Lock()
	prev := f.active[key]
	f.active[key] = sub
	f.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	go f.pump(streamCtx, cursor, sub, groupID, onMessages, onError)
	return sub, nil
}

func (f *MessageFeed) pump(ctx context.Context, cursor ChangeCursor, sub *Subscription, groupID primitive.ObjectID, onMessages func([]models.Message), onError func(error)) {
	defer cursor.Close(context.Background())
	defer sub.Close()

	if !f.deliver(ctx, sub, groupID, onMessages, onError) {
		return
	}

	for cursor.Next(ctx) {
		if !f.deliver(ctx, sub, groupID, onMessages, onError) {
			return
		}
	}

	if err := cursor.Err(); err != nil && ctx.Err() == nil && sub.alive() {
		onError(err)
	}
}

func (f *MessageFeed) deliver(ctx context.Context, sub *Subscription, groupID primitive.ObjectID, onMessages func([]models.Message), onError func(error)) bool {
	if !sub.alive() {
		return false
	}
	msgs, err := f.src.ListByGroup(ctx, groupID)
	if err != nil {
		if ctx.Err() == nil && sub.alive() {
			onError(err)
		}
		return false
	}
	msgs = NormalizeMessages(msgs)
	if !sub.alive() {
		return false
	}
	onMessages(msgs)
	return true
}

// FetchOnce returns the same normalized, ordered list a subscription
// would deliver.
func (f *MessageFeed) FetchOnce(ctx context.Context, groupID primitive.ObjectID) ([]models.Message, error) {
	msgs, err := f.src.ListByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return NormalizeMessages(msgs), nil
}

// NormalizeMessages prepares raw records for display: a missing timestamp
// materializes as "now" in the returned view only (the stored record is
// never mutated), and the list is kept in ascending timestamp order.
// Unrecognized file_type values pass through untouched; the rendering
// layer ignores variants it does not know.
func NormalizeMessages(msgs []models.Message) []models.Message {
	now := time.Now().UTC()
	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		out[i] = m
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
