package driving

import (
	"context"

	"github.com/blkout/ivor-core/internal/core/domain"
)

// IntakeService runs candidate content through classification, validation and routing
type IntakeService interface {
	// ClassifyContent enriches a raw item with category, relevance and embedding.
	// Nothing is persisted.
	ClassifyContent(ctx context.Context, raw *domain.RawContentItem) (*domain.ClassifiedContentItem, error)

	// ValidateContent scores a classified item and decides auto-approval eligibility
	ValidateContent(ctx context.Context, item *domain.ClassifiedContentItem) (*domain.ValidationResult, error)

	// StoreContent writes the item to the vector index and the relational store
	StoreContent(ctx context.Context, item *domain.ClassifiedContentItem) error

	// ProcessForAutoApproval publishes eligible items and queues the rest for review.
	// Returns true when the item was published.
	ProcessForAutoApproval(ctx context.Context, item *domain.ClassifiedContentItem, validation *domain.ValidationResult) (bool, error)

	// Process runs the full pipeline for one item
	Process(ctx context.Context, raw *domain.RawContentItem) (*domain.IntakeOutcome, error)

	// IngestBatch processes items sequentially, isolating per-item failures
	IngestBatch(ctx context.Context, items []*domain.RawContentItem) *domain.BatchResult
}
