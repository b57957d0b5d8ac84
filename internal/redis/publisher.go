package redis

import (
	"context"
	"fmt"

	"parley/internal/events"

	"github.com/redis/go-redis/v9"
)

// Publisher writes change event envelopes to the channels chosen by the
// resolver. It satisfies events.Publisher.
type Publisher struct {
	client   *redis.Client
	resolver events.ChannelResolver
}

func NewPublisher(client *redis.Client, resolver events.ChannelResolver) *Publisher {
	return &Publisher{client: client, resolver: resolver}
}

func (p *Publisher) Publish(ctx context.Context, event events.ChangeEvent) error {
	data, err := events.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	for _, channel := range p.resolver.ResolveChannels(event) {
		if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
			return transient("publish "+channel, err)
		}
	}
	return nil
}
