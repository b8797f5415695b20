package postgres

import (
	"context"
	"fmt"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
	"github.com/lib/pq"
)

// Verify interface compliance
var _ driven.ReviewQueue = (*ReviewQueue)(nil)

// ReviewQueue implements driven.ReviewQueue with the review_queue table
type ReviewQueue struct {
	db *DB
}

// NewReviewQueue creates a new ReviewQueue
func NewReviewQueue(db *DB) *ReviewQueue {
	return &ReviewQueue{db: db}
}

// Enqueue adds an item to the moderation queue.
// A content id that is already queued is ignored.
func (q *ReviewQueue) Enqueue(ctx context.Context, item *domain.ReviewItem) error {
	query := `
		INSERT INTO review_queue (
			id, content_id, title, original_url, category, priority, score,
			issues, recommendations, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
	`

	_, err := q.db.ExecContext(ctx, query,
		item.ID,
		item.ContentID,
		item.Title,
		item.OriginalURL,
		string(item.Category),
		item.Priority,
		item.Score,
		pq.Array(nonNil(item.Issues)),
		pq.Array(nonNil(item.Recommendations)),
		item.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert review item: %w", err)
	}
	return nil
}
