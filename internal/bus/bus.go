// Package bus is the in-process notification hub. Subscribers learn that some
// state may have changed and re-read it themselves; no payload is delivered.
package bus

import (
	"context"
	"sync"

	"github.com/nigersavoir/savoir-client/internal/store"
	"go.uber.org/zap"
)

type Topic string

const (
	TopicSessionChanged   Topic = "session_changed"
	TopicCartChanged      Topic = "cart_changed"
	TopicReactionsChanged Topic = "reactions_changed"
)

// Unsubscribe removes a subscription. Calling it more than once is a no-op.
type Unsubscribe func()

type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic]map[uint64]func()
	nextID uint64
	logger *zap.Logger
}

func New(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[Topic]map[uint64]func()),
		logger: logger,
	}
}

// Subscribe registers fn for topic. Delivery order between subscribers is not
// defined.
func (b *Bus) Subscribe(topic Topic, fn func()) Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[uint64]func())
	}
	b.subs[topic][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
		})
	}
}

// Publish calls every current subscriber of topic on the caller's goroutine.
// A subscriber removed by an earlier callback of the same publish is skipped.
func (b *Bus) Publish(topic Topic) {
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.subs[topic]))
	for id := range b.subs[topic] {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	for _, id := range ids {
		b.mu.RLock()
		fn, ok := b.subs[topic][id]
		b.mu.RUnlock()
		if !ok {
			continue
		}
		b.deliver(topic, fn)
	}
}

// Subscribers returns the number of live subscriptions on topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *Bus) deliver(topic Topic, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("subscriber panicked", zap.String("topic", string(topic)), zap.Any("panic", r))
		}
	}()
	fn()
}

// Follow republishes writes made by other contexts on the shared store until
// ctx is done. Keys without a route are ignored.
func (b *Bus) Follow(ctx context.Context, w store.Watcher, routes map[string]Topic) error {
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	for c := range changes {
		topic, ok := routes[c.Key]
		if !ok {
			continue
		}
		b.logger.Debug("store changed in another context",
			zap.String("key", c.Key),
			zap.String("origin", c.Origin))
		b.Publish(topic)
	}
	return ctx.Err()
}
