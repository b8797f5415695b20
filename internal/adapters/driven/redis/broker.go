package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/blkout/ivor-core/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.Broker = (*Broker)(nil)

// Broker implements driven.Broker with Redis pub/sub.
// Delivery is at most once: messages published while nobody listens are gone.
type Broker struct {
	client *redis.Client
	logger *slog.Logger
}

// NewBroker creates a pub/sub broker on an existing client
func NewBroker(client *redis.Client, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{client: client, logger: logger}
}

// Publish sends a payload to a channel
func (b *Broker) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe listens on the channels until ctx is cancelled.
// The subscription is confirmed before Subscribe returns.
func (b *Broker) Subscribe(ctx context.Context, channels ...string) (<-chan driven.Message, error) {
	sub := b.client.Subscribe(ctx, channels...)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan driven.Message, 64)
	in := sub.Channel()

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					b.logger.Warn("redis subscription closed")
					return
				}
				select {
				case out <- driven.Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Ping checks if Redis is reachable
func (b *Broker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
