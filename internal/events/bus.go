package events

import (
	"context"
	"sync"

	parley_errors "parley/pkg/errors"
	"parley/pkg/logger"

	"go.uber.org/zap"
)

// Publisher accepts committed change events for delivery.
type Publisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// Observer is notified of bus activity. Implemented by the metrics package.
type Observer interface {
	EventDelivered(entity Entity, subscribers int)
	SubscribersChanged(count int)
}

type BusOption func(*Bus)

func WithObserver(o Observer) BusOption {
	return func(b *Bus) { b.observer = o }
}

// Bus fans change events out to in-process subscriptions. Each subscription
// owns an unbounded queue so a slow consumer never blocks the publisher.
type Bus struct {
	mu       sync.RWMutex
	subs     map[uint64]*Subscription
	nextID   uint64
	closed   bool
	log      *logger.Logger
	observer Observer
}

func NewBus(log *logger.Logger, opts ...BusOption) *Bus {
	b := &Bus{
		subs: make(map[uint64]*Subscription),
		log:  log.Named("event-bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Publish(ctx context.Context, event ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return parley_errors.ErrClosed
	}

	delivered := 0
	for _, sub := range b.subs {
		if sub.scope.Matches(event) {
			sub.enqueue(event)
			delivered++
		}
	}
	if b.observer != nil {
		b.observer.EventDelivered(event.Entity, delivered)
	}
	b.log.Logger.Debug("event published",
		zap.String("event_id", event.ID.String()),
		zap.String("kind", string(event.Kind)),
		zap.String("entity", string(event.Entity)),
		zap.Int("subscribers", delivered),
	)
	return nil
}

// Subscribe registers a subscription for scope. The caller must Release it.
func (b *Bus) Subscribe(scope Scope) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, parley_errors.ErrClosed
	}

	b.nextID++
	sub := newSubscription(b.nextID, scope, b)
	b.subs[sub.id] = sub
	go sub.pump()

	if b.observer != nil {
		b.observer.SubscribersChanged(len(b.subs))
	}
	return sub, nil
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
	if b.observer != nil {
		b.observer.SubscribersChanged(len(b.subs))
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close releases every subscription and rejects further use.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Release()
	}
}
