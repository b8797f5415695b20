package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

var _ driven.EventStore = (*MockEventStore)(nil)

// MockEventStore is an in-memory EventStore with first-writer-wins transitions
type MockEventStore struct {
	mu     sync.RWMutex
	events map[string]*domain.CrossDomainEvent

	CreateFn     func(event *domain.CrossDomainEvent) error
	TransitionFn func(id string, to domain.ProcessingStatus) (bool, error)
}

// NewMockEventStore creates a new MockEventStore
func NewMockEventStore() *MockEventStore {
	return &MockEventStore{events: make(map[string]*domain.CrossDomainEvent)}
}

func (m *MockEventStore) Create(ctx context.Context, event *domain.CrossDomainEvent) error {
	if m.CreateFn != nil {
		if err := m.CreateFn(event); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = cloneEvent(event)
	return nil
}

func (m *MockEventStore) Get(ctx context.Context, id string) (*domain.CrossDomainEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneEvent(e), nil
}

func (m *MockEventStore) Transition(ctx context.Context, id string, to domain.ProcessingStatus, at time.Time) (bool, error) {
	if m.TransitionFn != nil {
		return m.TransitionFn(id, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if e.ProcessingStatus != domain.ProcessingStatusPending {
		return false, nil
	}
	e.ProcessingStatus = to
	e.ProcessedAt = &at
	return true, nil
}

func (m *MockEventStore) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.CrossDomainEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.CrossDomainEvent
	for _, e := range m.events {
		if e.ProcessingStatus == domain.ProcessingStatusPending && e.CreatedAt.Before(olderThan) {
			out = append(out, cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockEventStore) ListSince(ctx context.Context, since time.Time) ([]domain.EventSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.EventSummary
	for _, e := range m.events {
		if !e.CreatedAt.Before(since) {
			out = append(out, e.Summary())
		}
	}
	return out, nil
}

func (m *MockEventStore) Ping(ctx context.Context) error {
	return nil
}

// Put stores an event as-is (for test setup)
func (m *MockEventStore) Put(event *domain.CrossDomainEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = cloneEvent(event)
}

// Count returns the number of stored events
func (m *MockEventStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.events)
}

// All returns copies of every stored event
func (m *MockEventStore) All() []*domain.CrossDomainEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.CrossDomainEvent, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, cloneEvent(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func cloneEvent(e *domain.CrossDomainEvent) *domain.CrossDomainEvent {
	cp := *e
	cp.TargetDomains = append([]string(nil), e.TargetDomains...)
	if e.ProcessedAt != nil {
		at := *e.ProcessedAt
		cp.ProcessedAt = &at
	}
	return &cp
}
