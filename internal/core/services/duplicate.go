package services

import (
	"context"
	"fmt"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// DuplicateDetector finds stored content whose embedding is within the duplicate distance
type DuplicateDetector struct {
	index driven.VectorIndex
}

// NewDuplicateDetector creates a detector over a vector index
func NewDuplicateDetector(index driven.VectorIndex) *DuplicateDetector {
	return &DuplicateDetector{index: index}
}

// FindDuplicate returns the closest match other than selfID with cosine distance
// below domain.DuplicateDistance, or nil when there is none.
func (d *DuplicateDetector) FindDuplicate(ctx context.Context, selfID string, embedding []float32) (*domain.DuplicateMatch, error) {
	if len(embedding) == 0 {
		return nil, nil
	}
	matches, err := d.index.Nearest(ctx, embedding, domain.DuplicateNeighbours)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbour query: %w", err)
	}

	var best *domain.DuplicateMatch
	for _, m := range matches {
		if m.ID == selfID || m.Distance >= domain.DuplicateDistance {
			continue
		}
		if best == nil || m.Distance < best.Distance {
			best = &domain.DuplicateMatch{ID: m.ID, Distance: m.Distance}
		}
	}
	return best, nil
}
