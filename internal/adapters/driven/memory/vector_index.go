package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex is a brute-force cosine index held in process memory.
// Used when no Vespa endpoint is configured; contents are lost on restart.
type VectorIndex struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewVectorIndex creates an empty index
func NewVectorIndex() *VectorIndex {
	return &VectorIndex{vectors: make(map[string][]float32)}
}

// Upsert stores a copy of the embedding. Extra fields are not kept.
func (v *VectorIndex) Upsert(_ context.Context, id string, embedding []float32, _ map[string]any) error {
	cp := make([]float32, len(embedding))
	copy(cp, embedding)

	v.mu.Lock()
	v.vectors[id] = cp
	v.mu.Unlock()
	return nil
}

// Nearest scans every vector; ties break on id so results are stable
func (v *VectorIndex) Nearest(_ context.Context, embedding []float32, k int) ([]driven.VectorMatch, error) {
	if k <= 0 {
		return nil, nil
	}

	v.mu.RLock()
	matches := make([]driven.VectorMatch, 0, len(v.vectors))
	for id, vec := range v.vectors {
		matches = append(matches, driven.VectorMatch{ID: id, Distance: domain.CosineDistance(embedding, vec)})
	}
	v.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Delete removes a vector; unknown ids are ignored
func (v *VectorIndex) Delete(_ context.Context, id string) error {
	v.mu.Lock()
	delete(v.vectors, id)
	v.mu.Unlock()
	return nil
}

// HealthCheck always succeeds
func (v *VectorIndex) HealthCheck(context.Context) error {
	return nil
}

// Len returns the number of stored vectors
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.vectors)
}
