package mocks

import (
	"sync"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

var _ driven.MetricsRecorder = (*MockMetricsRecorder)(nil)

// MockMetricsRecorder counts recorded telemetry
type MockMetricsRecorder struct {
	mu        sync.Mutex
	Intake    map[domain.Decision]int
	Published int
	Processed map[domain.ProcessingStatus]int
	Handlers  int
	Retries   int
	Snapshots int
}

// NewMockMetricsRecorder creates a new MockMetricsRecorder
func NewMockMetricsRecorder() *MockMetricsRecorder {
	return &MockMetricsRecorder{
		Intake:    make(map[domain.Decision]int),
		Processed: make(map[domain.ProcessingStatus]int),
	}
}

func (m *MockMetricsRecorder) RecordIntake(decision domain.Decision) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Intake[decision]++
}

func (m *MockMetricsRecorder) RecordEventPublished(eventType domain.EventType, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		m.Published++
	}
}

func (m *MockMetricsRecorder) RecordEventProcessed(eventType domain.EventType, status domain.ProcessingStatus, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Processed[status]++
}

func (m *MockMetricsRecorder) RecordHandler(handlerDomain string, success bool, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Handlers++
}

func (m *MockMetricsRecorder) RecordRetryScheduled(handlerDomain string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Retries++
}

func (m *MockMetricsRecorder) SetCoordinationMetrics(metrics *domain.CoordinationMetrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots++
}

// ProcessedCount returns the number of terminal transitions recorded with status
func (m *MockMetricsRecorder) ProcessedCount(status domain.ProcessingStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Processed[status]
}
