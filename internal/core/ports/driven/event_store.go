package driven

import (
	"context"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
)

// EventStore is the durable source of truth for cross-domain events.
// Broker delivery is best effort; the store is what the recovery sweeper reconciles from.
type EventStore interface {
	// Create inserts a new pending event
	Create(ctx context.Context, event *domain.CrossDomainEvent) error

	// Get retrieves an event by id
	Get(ctx context.Context, id string) (*domain.CrossDomainEvent, error)

	// Transition atomically moves a pending event to a terminal status.
	// Returns false when the event was no longer pending (another writer won).
	Transition(ctx context.Context, id string, to domain.ProcessingStatus, at time.Time) (bool, error)

	// ListStalePending returns pending events created before olderThan, oldest first
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.CrossDomainEvent, error)

	// ListSince returns summaries of events created at or after since
	ListSince(ctx context.Context, since time.Time) ([]domain.EventSummary, error)

	// Ping checks if the store is healthy
	Ping(ctx context.Context) error
}
