package driven

import (
	"context"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
)

// Message is a payload received from a broker channel
type Message struct {
	Channel string
	Payload []byte
}

// Broker is a lossy publish/subscribe transport (Redis pub/sub)
type Broker interface {
	// Publish sends a payload to a channel
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe delivers messages from the channels until ctx is cancelled.
	// The returned channel is closed when the subscription ends.
	Subscribe(ctx context.Context, channels ...string) (<-chan Message, error)

	// Ping checks if the broker is healthy
	Ping(ctx context.Context) error
}

// MetricsCache shares coordination metrics snapshots between instances
type MetricsCache interface {
	// Get returns the cached snapshot, or nil when absent or expired
	Get(ctx context.Context) (*domain.CoordinationMetrics, error)

	// Set stores a snapshot with the given TTL
	Set(ctx context.Context, m *domain.CoordinationMetrics, ttl time.Duration) error
}
