package driven

import (
	"context"

	"github.com/blkout/ivor-core/internal/core/domain"
)

// EmbeddingService generates text embeddings
type EmbeddingService interface {
	// Embed generates embeddings for multiple texts
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension size.
	// Every vector written to the VectorIndex has exactly this length.
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}

// Classifier assigns a category, subcategory, confidence and tags to a piece of text.
// Only the numeric contract is fixed: the category is one of domain.Categories()
// and the confidence lies in [0,1].
type Classifier interface {
	// Classify classifies the given title and description
	Classify(ctx context.Context, title, description string) (*domain.Classification, error)

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the classifier is available
	HealthCheck(ctx context.Context) error
}
