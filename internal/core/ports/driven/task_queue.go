package driven

import (
	"context"

	"github.com/blkout/ivor-core/internal/core/domain"
)

// TaskQueue carries deferred work, today only handler retries, from the
// coordinator to the worker pool. Redis streams back it when Redis is
// configured; otherwise the Postgres tasks table does.
type TaskQueue interface {
	// Enqueue stores the task. It becomes visible to workers at ScheduledFor.
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout claims the next due task, blocking up to timeout
	// seconds. It returns nil, nil when nothing became due.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	Ack(ctx context.Context, taskID string) error

	// Nack records a failed attempt and reschedules while attempts remain.
	Nack(ctx context.Context, taskID string, reason string) error

	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	Stats(ctx context.Context) (*QueueStats, error)

	Ping(ctx context.Context) error
	Close() error
}

// QueueStats is a point-in-time view of the queue. Completed and failed are
// lifetime counts where the backend keeps them.
type QueueStats struct {
	PendingCount    int64 `json:"pending_count"`
	ProcessingCount int64 `json:"processing_count"`
	CompletedCount  int64 `json:"completed_count"`
	FailedCount     int64 `json:"failed_count"`
}
