package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

var (
	_ driven.Broker       = (*MockBroker)(nil)
	_ driven.MetricsCache = (*MockMetricsCache)(nil)
)

// Published is one recorded broker publish
type Published struct {
	Channel string
	Payload []byte
}

// MockBroker records publishes and fans them out to in-process subscribers
type MockBroker struct {
	mu        sync.Mutex
	published []Published
	subs      []*mockSubscription

	PublishFn func(channel string, payload []byte) error
}

type mockSubscription struct {
	channels map[string]bool
	ch       chan driven.Message
	done     <-chan struct{}
}

// NewMockBroker creates a new MockBroker
func NewMockBroker() *MockBroker {
	return &MockBroker{}
}

func (m *MockBroker) Publish(ctx context.Context, channel string, payload []byte) error {
	if m.PublishFn != nil {
		if err := m.PublishFn(channel, payload); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.published = append(m.published, Published{Channel: channel, Payload: payload})
	subs := append([]*mockSubscription(nil), m.subs...)
	m.mu.Unlock()

	for _, s := range subs {
		if !s.channels[channel] {
			continue
		}
		select {
		case s.ch <- driven.Message{Channel: channel, Payload: payload}:
		case <-s.done:
		}
	}
	return nil
}

func (m *MockBroker) Subscribe(ctx context.Context, channels ...string) (<-chan driven.Message, error) {
	s := &mockSubscription{
		channels: make(map[string]bool, len(channels)),
		ch:       make(chan driven.Message, 64),
		done:     ctx.Done(),
	}
	for _, c := range channels {
		s.channels[c] = true
	}

	m.mu.Lock()
	m.subs = append(m.subs, s)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, sub := range m.subs {
			if sub == s {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				break
			}
		}
		close(s.ch)
	}()
	return s.ch, nil
}

func (m *MockBroker) Ping(ctx context.Context) error {
	return nil
}

// Published returns all recorded publishes
func (m *MockBroker) Published() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Published, len(m.published))
	copy(out, m.published)
	return out
}

// Subscribers returns the number of live subscriptions
func (m *MockBroker) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Channels returns the channel of every recorded publish in order
func (m *MockBroker) Channels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.published))
	for i, p := range m.published {
		out[i] = p.Channel
	}
	return out
}

// MockMetricsCache is an in-memory MetricsCache honouring TTLs
type MockMetricsCache struct {
	mu      sync.Mutex
	value   *domain.CoordinationMetrics
	expires time.Time
	sets    int
}

func (m *MockMetricsCache) Get(ctx context.Context) (*domain.CoordinationMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.value == nil || time.Now().After(m.expires) {
		return nil, nil
	}
	cp := *m.value
	return &cp, nil
}

func (m *MockMetricsCache) Set(ctx context.Context, metrics *domain.CoordinationMetrics, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *metrics
	m.value = &cp
	m.expires = time.Now().Add(ttl)
	m.sets++
	return nil
}

// Sets returns how many snapshots were written
func (m *MockMetricsCache) Sets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets
}
