package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
	"github.com/lib/pq"
)

// Verify interface compliance
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore implements driven.ContentStore using PostgreSQL.
// Embeddings live in the vector index, not here.
type ContentStore struct {
	db *DB
}

// NewContentStore creates a new ContentStore
func NewContentStore(db *DB) *ContentStore {
	return &ContentStore{db: db}
}

// insertContentQuery keeps a stored record's content; a conflict only moves the status
const insertContentQuery = `
	INSERT INTO content_items (
		id, source_id, original_url, title, description, body, author, published_at,
		tags, image_url, category, subcategory, relevance_score, confidence_score,
		ai_tags, metadata, status, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		updated_at = EXCLUDED.updated_at
`

// Save inserts a content record. Re-saving an existing id only changes its status.
func (s *ContentStore) Save(ctx context.Context, item *domain.ClassifiedContentItem) error {
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if item.Metadata == nil {
		metadata = []byte("{}")
	}

	now := time.Now().UTC()
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err = s.db.ExecContext(ctx, insertContentQuery,
		item.ID,
		item.SourceID,
		item.OriginalURL,
		item.Title,
		item.Description,
		item.Body,
		item.Author,
		NullTime(item.PublishedAt),
		pq.Array(nonNil(item.Tags)),
		item.ImageURL,
		string(item.Category),
		item.Subcategory,
		item.RelevanceScore,
		item.ConfidenceScore,
		pq.Array(nonNil(item.AITags)),
		metadata,
		string(item.Status),
		createdAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert content %s: %w", item.ID, err)
	}
	return nil
}

// Get retrieves a content record by id
func (s *ContentStore) Get(ctx context.Context, id string) (*domain.ClassifiedContentItem, error) {
	query := `
		SELECT id, source_id, original_url, title, description, body, author, published_at,
		       tags, image_url, category, subcategory, relevance_score, confidence_score,
		       ai_tags, metadata, status, created_at, updated_at
		FROM content_items
		WHERE id = $1
	`

	var item domain.ClassifiedContentItem
	var publishedAt sql.NullTime
	var metadata []byte

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.SourceID,
		&item.OriginalURL,
		&item.Title,
		&item.Description,
		&item.Body,
		&item.Author,
		&publishedAt,
		pq.Array(&item.Tags),
		&item.ImageURL,
		&item.Category,
		&item.Subcategory,
		&item.RelevanceScore,
		&item.ConfidenceScore,
		pq.Array(&item.AITags),
		&metadata,
		&item.Status,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query content %s: %w", id, err)
	}

	item.PublishedAt = TimePtr(publishedAt)
	if item.Metadata, err = scanJSON(metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &item, nil
}

// UpdateStatus changes the publish status of a stored record
func (s *ContentStore) UpdateStatus(ctx context.Context, id string, status domain.ContentStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE content_items SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update content status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// nonNil keeps NOT NULL array columns from receiving SQL NULL
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
