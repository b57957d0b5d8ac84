package redis

import (
	"context"
	"errors"
	"sync"

	"parley/internal/events"
	"parley/pkg/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Relay forwards envelopes published on Redis into the local event bus so
// every API instance serves subscribers for events committed anywhere.
type Relay struct {
	client *redis.Client
	target events.Publisher
	log    *logger.Logger
	ready  chan struct{}
	once   sync.Once
}

func NewRelay(client *redis.Client, target events.Publisher, log *logger.Logger) *Relay {
	return &Relay{
		client: client,
		target: target,
		log:    log.Named("redis-relay"),
		ready:  make(chan struct{}),
	}
}

// Ready is closed once the first pattern subscription is confirmed. Later
// runs after a reconnect leave it closed.
func (r *Relay) Ready() <-chan struct{} {
	return r.ready
}

// Run blocks until ctx is cancelled or the subscription fails.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.PSubscribe(ctx, events.ChannelPattern)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return transient("psubscribe", err)
	}
	r.once.Do(func() { close(r.ready) })

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return transient("receive", err)
		}

		event, err := events.Unmarshal([]byte(msg.Payload))
		if err != nil {
			r.log.Logger.Warn("dropping undecodable envelope", zap.String("channel", msg.Channel), zap.Error(err))
			continue
		}
		if err := r.target.Publish(ctx, event); err != nil {
			r.log.Logger.Warn("relay publish failed", zap.String("event_id", event.ID.String()), zap.Error(err))
		}
	}
}
