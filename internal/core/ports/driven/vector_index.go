package driven

import (
	"context"
)

// VectorMatch is one nearest-neighbour hit.
// Distance is the cosine distance (1 - cosine similarity), lower is closer.
type VectorMatch struct {
	ID       string
	Distance float64
}

// VectorIndex stores content embeddings and answers nearest-neighbour queries
// (Vespa in production, in-memory for single-node runs and tests)
type VectorIndex interface {
	// Upsert writes the embedding for a content id, replacing any previous vector
	Upsert(ctx context.Context, id string, embedding []float32, fields map[string]any) error

	// Nearest returns up to k closest vectors ordered by ascending distance
	Nearest(ctx context.Context, embedding []float32, k int) ([]VectorMatch, error)

	// Delete removes a vector (used to compensate a failed relational write)
	Delete(ctx context.Context, id string) error

	// HealthCheck verifies the index is available
	HealthCheck(ctx context.Context) error
}
