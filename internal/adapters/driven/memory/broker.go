package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Broker = (*Broker)(nil)

const subscriberBuffer = 64

// Broker is an in-process pub/sub for single-instance deployments.
// Like Redis pub/sub it is lossy: a subscriber whose buffer is full misses the message.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	logger *slog.Logger
}

type subscriber struct {
	ch   chan driven.Message
	done chan struct{}
}

// NewBroker creates an empty broker
func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:   make(map[string]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Publish delivers the payload to every current subscriber of channel
func (b *Broker) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[channel] {
		msg := driven.Message{Channel: channel, Payload: append([]byte(nil), payload...)}
		select {
		case <-sub.done:
		case sub.ch <- msg:
		default:
			b.logger.Warn("subscriber buffer full, dropping message", "channel", channel)
		}
	}
	return nil
}

// Subscribe registers for the channels until ctx is cancelled
func (b *Broker) Subscribe(ctx context.Context, channels ...string) (<-chan driven.Message, error) {
	sub := &subscriber{
		ch:   make(chan driven.Message, subscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	for _, channel := range channels {
		if b.subs[channel] == nil {
			b.subs[channel] = make(map[*subscriber]struct{})
		}
		b.subs[channel][sub] = struct{}{}
	}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		close(sub.done)

		b.mu.Lock()
		for _, channel := range channels {
			delete(b.subs[channel], sub)
			if len(b.subs[channel]) == 0 {
				delete(b.subs, channel)
			}
		}
		b.mu.Unlock()

		// No publisher can reach sub.ch any more
		close(sub.ch)
	}()

	return sub.ch, nil
}

// Ping always succeeds
func (b *Broker) Ping(ctx context.Context) error {
	return nil
}
