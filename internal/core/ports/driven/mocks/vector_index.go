package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

var _ driven.VectorIndex = (*MockVectorIndex)(nil)

// MockVectorIndex is an in-memory VectorIndex using brute-force cosine distance
type MockVectorIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32

	UpsertFn  func(id string, embedding []float32) error
	NearestFn func(embedding []float32, k int) ([]driven.VectorMatch, error)
	DeleteFn  func(id string) error
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{vectors: make(map[string][]float32)}
}

func (m *MockVectorIndex) Upsert(ctx context.Context, id string, embedding []float32, fields map[string]any) error {
	if m.UpsertFn != nil {
		if err := m.UpsertFn(id, embedding); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[id] = embedding
	return nil
}

func (m *MockVectorIndex) Nearest(ctx context.Context, embedding []float32, k int) ([]driven.VectorMatch, error) {
	if m.NearestFn != nil {
		return m.NearestFn(embedding, k)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]driven.VectorMatch, 0, len(m.vectors))
	for id, v := range m.vectors {
		matches = append(matches, driven.VectorMatch{ID: id, Distance: domain.CosineDistance(embedding, v)})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *MockVectorIndex) Delete(ctx context.Context, id string) error {
	if m.DeleteFn != nil {
		if err := m.DeleteFn(id); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, id)
	return nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	return nil
}

// Has reports whether a vector is stored for id
func (m *MockVectorIndex) Has(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vectors[id]
	return ok
}

// Count returns the number of stored vectors
func (m *MockVectorIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}
