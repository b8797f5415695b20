package driven

import (
	"context"
	"time"
)

// DistributedLock elects a single instance for periodic work such as the
// recovery sweep. Locks are advisory: holders must tolerate losing one when
// the TTL lapses.
type DistributedLock interface {
	// Acquire takes the named lock for ttl. It returns false without error
	// when another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives the lock up. Releasing a lock that is not held is not an error.
	Release(ctx context.Context, name string) error

	// Extend renews a lock this instance holds. Backends without expiry treat it as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
