package driven

import (
	"context"

	"github.com/blkout/ivor-core/internal/core/domain"
)

// ContentStore persists classified content records (PostgreSQL).
// Records are never hard-deleted; only status changes after the first write.
type ContentStore interface {
	// Save inserts a content record keyed by its id.
	// For an existing id only status and updated_at change.
	Save(ctx context.Context, item *domain.ClassifiedContentItem) error

	// Get retrieves a content record by id
	Get(ctx context.Context, id string) (*domain.ClassifiedContentItem, error)

	// UpdateStatus changes the publish status of a stored record
	UpdateStatus(ctx context.Context, id string, status domain.ContentStatus) error
}

// ReviewQueue receives items that need human moderation
type ReviewQueue interface {
	// Enqueue adds an item to the moderation queue
	Enqueue(ctx context.Context, item *domain.ReviewItem) error
}

// LegacyPublisher forwards auto-approved items to the legacy publishing API.
// Best effort: callers log failures and carry on.
type LegacyPublisher interface {
	Publish(ctx context.Context, item *domain.ClassifiedContentItem) error
}
