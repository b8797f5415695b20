package supabase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/supabase-community/supabase-go"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ReviewQueue = (*ReviewQueue)(nil)

const approvalQueueTable = "approval_queue"

// ReviewQueue writes moderation entries to the approval_queue table that the
// moderator dashboard reads through Supabase.
type ReviewQueue struct {
	client *supabase.Client
	logger *slog.Logger
}

// NewReviewQueue creates a Supabase client using the service role key
func NewReviewQueue(url, serviceKey string, logger *slog.Logger) (*ReviewQueue, error) {
	if url == "" || serviceKey == "" {
		return nil, errors.New("supabase url and service key are required")
	}
	client, err := supabase.NewClient(url, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewQueue{client: client, logger: logger}, nil
}

type approvalRow struct {
	ID              string    `json:"id"`
	ContentID       string    `json:"content_id"`
	Title           string    `json:"title"`
	OriginalURL     string    `json:"original_url"`
	Category        string    `json:"category"`
	Priority        int       `json:"priority"`
	ValidationScore float64   `json:"validation_score"`
	Issues          []string  `json:"issues"`
	Recommendations []string  `json:"recommendations"`
	Status          string    `json:"status"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// Enqueue inserts a pending moderation row. A row that already exists for the
// review id is left as the moderators have it. The postgrest client carries no
// context, so cancellation is only checked up front.
func (q *ReviewQueue) Enqueue(ctx context.Context, item *domain.ReviewItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	row := approvalRow{
		ID:              item.ID,
		ContentID:       item.ContentID,
		Title:           item.Title,
		OriginalURL:     item.OriginalURL,
		Category:        string(item.Category),
		Priority:        item.Priority,
		ValidationScore: item.Score,
		Issues:          nonNil(item.Issues),
		Recommendations: nonNil(item.Recommendations),
		Status:          "pending",
		SubmittedAt:     item.CreatedAt,
	}

	if _, _, err := q.client.From(approvalQueueTable).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		if isUniqueViolation(err) {
			q.logger.Debug("already queued for review", "content_id", item.ContentID)
			return nil
		}
		return fmt.Errorf("insert %s: %w", approvalQueueTable, err)
	}
	q.logger.Debug("queued for review", "content_id", item.ContentID, "priority", item.Priority)
	return nil
}

// isUniqueViolation matches PostgREST's report of SQLSTATE 23505
func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "23505") || strings.Contains(msg, "duplicate key")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
