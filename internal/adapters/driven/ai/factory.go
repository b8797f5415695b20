package ai

import (
	"fmt"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// ProviderOpenAI is the only provider wired today
const ProviderOpenAI = "openai"

// Config selects and configures the embedding and classifier capabilities
type Config struct {
	Provider        string
	APIKey          string
	BaseURL         string
	EmbeddingModel  string
	Dimensions      int
	ClassifierModel string
}

// Factory creates AI services based on configuration
type Factory struct {
	cfg Config
}

// NewFactory creates a new AI service factory
func NewFactory(cfg Config) *Factory {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	return &Factory{cfg: cfg}
}

// CreateEmbeddingService creates the embedding capability
func (f *Factory) CreateEmbeddingService() (driven.EmbeddingService, error) {
	switch f.cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIEmbedding(f.cfg.APIKey, f.cfg.EmbeddingModel, f.cfg.BaseURL, f.cfg.Dimensions)
	default:
		return nil, fmt.Errorf("%w: unknown AI provider %s", domain.ErrInvalidInput, f.cfg.Provider)
	}
}

// CreateClassifier creates the classification capability
func (f *Factory) CreateClassifier() (driven.Classifier, error) {
	switch f.cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClassifier(f.cfg.APIKey, f.cfg.ClassifierModel, f.cfg.BaseURL)
	default:
		return nil, fmt.Errorf("%w: unknown AI provider %s", domain.ErrInvalidInput, f.cfg.Provider)
	}
}
