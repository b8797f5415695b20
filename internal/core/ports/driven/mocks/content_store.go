package mocks

import (
	"context"
	"sync"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

var (
	_ driven.ContentStore    = (*MockContentStore)(nil)
	_ driven.ReviewQueue     = (*MockReviewQueue)(nil)
	_ driven.LegacyPublisher = (*MockLegacyPublisher)(nil)
)

// MockContentStore is a mock implementation of ContentStore for testing
type MockContentStore struct {
	mu    sync.RWMutex
	items map[string]*domain.ClassifiedContentItem

	SaveFn         func(item *domain.ClassifiedContentItem) error
	UpdateStatusFn func(id string, status domain.ContentStatus) error
}

// NewMockContentStore creates a new MockContentStore
func NewMockContentStore() *MockContentStore {
	return &MockContentStore{items: make(map[string]*domain.ClassifiedContentItem)}
}

func (m *MockContentStore) Save(ctx context.Context, item *domain.ClassifiedContentItem) error {
	if m.SaveFn != nil {
		if err := m.SaveFn(item); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.items[item.ID]; ok {
		stored.Status = item.Status
		stored.UpdatedAt = item.UpdatedAt
		return nil
	}
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *MockContentStore) Get(ctx context.Context, id string) (*domain.ClassifiedContentItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *MockContentStore) UpdateStatus(ctx context.Context, id string, status domain.ContentStatus) error {
	if m.UpdateStatusFn != nil {
		if err := m.UpdateStatusFn(id, status); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	item.MarkStatus(status)
	return nil
}

// Count returns the number of stored records
func (m *MockContentStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// MockReviewQueue records enqueued review items, one per content id
type MockReviewQueue struct {
	mu    sync.Mutex
	items []*domain.ReviewItem

	EnqueueFn func(item *domain.ReviewItem) error
}

// NewMockReviewQueue creates a new MockReviewQueue
func NewMockReviewQueue() *MockReviewQueue {
	return &MockReviewQueue{}
}

func (m *MockReviewQueue) Enqueue(ctx context.Context, item *domain.ReviewItem) error {
	if m.EnqueueFn != nil {
		if err := m.EnqueueFn(item); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, queued := range m.items {
		if queued.ContentID == item.ContentID {
			return nil
		}
	}
	m.items = append(m.items, item)
	return nil
}

// Items returns a copy of the enqueued items
func (m *MockReviewQueue) Items() []*domain.ReviewItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.ReviewItem, len(m.items))
	copy(out, m.items)
	return out
}

// MockLegacyPublisher records published items
type MockLegacyPublisher struct {
	mu        sync.Mutex
	published []string

	PublishFn func(item *domain.ClassifiedContentItem) error
}

func (m *MockLegacyPublisher) Publish(ctx context.Context, item *domain.ClassifiedContentItem) error {
	if m.PublishFn != nil {
		if err := m.PublishFn(item); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, item.ID)
	return nil
}

// Published returns the ids passed to Publish
func (m *MockLegacyPublisher) Published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.published))
	copy(out, m.published)
	return out
}
