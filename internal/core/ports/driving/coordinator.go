package driving

import (
	"context"

	"github.com/blkout/ivor-core/internal/core/domain"
)

// EventPublisher persists and fans out cross-domain events
type EventPublisher interface {
	// PublishEvent validates, stores and broadcasts an event, returning its id
	PublishEvent(ctx context.Context, draft domain.EventDraft) (string, error)
}

// EventCoordinator dispatches events to registered domain handlers
type EventCoordinator interface {
	EventPublisher

	// RegisterHandler binds a handler to a domain and event types; fails once sealed
	RegisterHandler(handlerDomain string, eventTypes []domain.EventType, handler domain.HandlerFunc, priority int) (string, error)

	// ProcessIncomingEvent runs every matching handler and records the terminal status
	ProcessIncomingEvent(ctx context.Context, event *domain.CrossDomainEvent) (*domain.ProcessingResult, error)

	// GetEvent returns the stored event
	GetEvent(ctx context.Context, id string) (*domain.CrossDomainEvent, error)
}

// MetricsService exposes coordination metrics
type MetricsService interface {
	// GetCoordinationMetrics returns the latest 24h window metrics
	GetCoordinationMetrics(ctx context.Context) (*domain.CoordinationMetrics, error)
}
