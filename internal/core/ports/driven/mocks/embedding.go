package mocks

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingService = (*MockEmbeddingService)(nil)
	_ driven.Classifier       = (*MockClassifier)(nil)
)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Without hooks it returns deterministic vectors derived from the text hash.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	calls      int

	EmbedFn func(texts []string) ([][]float32, error)
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 8,
		model:      "mock-embedding-model",
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	fn := m.EmbedFn
	m.mu.Unlock()

	if fn != nil {
		return fn(texts)
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.generateEmbedding(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

// generateEmbedding generates a deterministic embedding in [-1,1) based on text hash
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%2000)/1000.0 - 1
	}
	return embedding
}

// Helper methods for testing

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.dimensions = dim
}

// Calls returns how many times Embed was invoked
func (m *MockEmbeddingService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockClassifier is a mock implementation of Classifier for testing
type MockClassifier struct {
	mu    sync.Mutex
	calls int

	// Result is returned when ClassifyFn is nil
	Result     domain.Classification
	ClassifyFn func(title, description string) (*domain.Classification, error)
}

// NewMockClassifier creates a classifier that answers "article/general" with confidence 0.9
func NewMockClassifier() *MockClassifier {
	return &MockClassifier{
		Result: domain.Classification{Category: domain.CategoryArticle, Subcategory: "general", Confidence: 0.9},
	}
}

func (m *MockClassifier) Classify(ctx context.Context, title, description string) (*domain.Classification, error) {
	m.mu.Lock()
	m.calls++
	fn := m.ClassifyFn
	res := m.Result
	m.mu.Unlock()

	if fn != nil {
		return fn(title, description)
	}
	return &res, nil
}

func (m *MockClassifier) Model() string {
	return "mock-classifier"
}

func (m *MockClassifier) HealthCheck(ctx context.Context) error {
	return nil
}

// Calls returns how many times Classify was invoked
func (m *MockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
