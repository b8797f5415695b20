package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.MetricsCache = (*MetricsCache)(nil)

// MetricsCache shares the latest coordination metrics between instances.
// Expiry is left to the Redis TTL.
type MetricsCache struct {
	client *redis.Client
	key    string
}

// NewMetricsCache creates a cache under the default key
func NewMetricsCache(client *redis.Client) *MetricsCache {
	return &MetricsCache{client: client, key: domain.MetricsCacheKey}
}

// Get returns the cached snapshot, or nil when absent or expired
func (c *MetricsCache) Get(ctx context.Context) (*domain.CoordinationMetrics, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get metrics: %w", err)
	}

	var m domain.CoordinationMetrics
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode metrics: %w", err)
	}
	return &m, nil
}

// Set stores a snapshot with the given TTL
func (c *MetricsCache) Set(ctx context.Context, m *domain.CoordinationMetrics, ttl time.Duration) error {
	if ttl <= 0 {
		// Never leave a snapshot without expiry
		ttl = domain.MetricsCacheTTLs * time.Second
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}
	if err := c.client.Set(ctx, c.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set metrics: %w", err)
	}
	return nil
}
