package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkout/ivor-core/internal/core/domain"
)

func noop(context.Context, *domain.CrossDomainEvent) error { return nil }

func TestHandlerRegistry_RegisterAssignsDomainScopedIDs(t *testing.T) {
	r := NewHandlerRegistry()
	types := []domain.EventType{domain.EventTypeSocialShare}

	first, err := r.Register("community", types, noop, 1)
	require.NoError(t, err)
	second, err := r.Register("community", types, noop, 1)
	require.NoError(t, err)
	other, err := r.Register(" social ", types, noop, 1)
	require.NoError(t, err)

	assert.Equal(t, "community/1", first)
	assert.Equal(t, "community/2", second)
	assert.Equal(t, "social/1", other)

	reg, ok := r.Get(other)
	require.True(t, ok)
	assert.Equal(t, "social", reg.Domain)
	assert.Equal(t, []string{"community", "social"}, r.Domains())
}

func TestHandlerRegistry_RejectsInvalidRegistrations(t *testing.T) {
	r := NewHandlerRegistry()
	types := []domain.EventType{domain.EventTypeSocialShare}

	tests := []struct {
		name    string
		domain  string
		types   []domain.EventType
		handler domain.HandlerFunc
	}{
		{"blank domain", "  ", types, noop},
		{"nil handler", "community", types, nil},
		{"no event types", "community", nil, noop},
		{"unknown event type", "community", []domain.EventType{"Gossip"}, noop},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Register(tt.domain, tt.types, tt.handler, 1)
			assert.True(t, errors.Is(err, domain.ErrInvalidInput), "got %v", err)
		})
	}
	assert.Empty(t, r.Domains())
}

func TestHandlerRegistry_LookupOrdersByPriorityThenRegistration(t *testing.T) {
	r := NewHandlerRegistry()
	insight := []domain.EventType{domain.EventTypeCommunityInsight}

	low, _ := r.Register("organizing", insight, noop, 1)
	high, _ := r.Register("community", insight, noop, 5)
	lowLater, _ := r.Register("social", insight, noop, 1)
	_, _ = r.Register("social", []domain.EventType{domain.EventTypeSocialShare}, noop, 10)

	regs := r.Lookup(domain.EventTypeCommunityInsight)
	require.Len(t, regs, 3)
	assert.Equal(t, []string{high, low, lowLater}, []string{regs[0].ID, regs[1].ID, regs[2].ID})
	assert.Empty(t, r.Lookup(domain.EventTypeResourceRequest))
}

func TestHandlerRegistry_Seal(t *testing.T) {
	r := NewHandlerRegistry()
	_, err := r.Register("community", []domain.EventType{domain.EventTypeSocialShare}, noop, 1)
	require.NoError(t, err)

	r.Seal()
	assert.True(t, r.Sealed())

	_, err = r.Register("social", []domain.EventType{domain.EventTypeSocialShare}, noop, 1)
	assert.True(t, errors.Is(err, domain.ErrRegistrySealed))
	assert.Len(t, r.Lookup(domain.EventTypeSocialShare), 1)
}

func TestRegisterDefaultHandlers(t *testing.T) {
	r := NewHandlerRegistry()
	ids, err := RegisterDefaultHandlers(r, nil)
	require.NoError(t, err)

	assert.Len(t, ids, 5)
	assert.Equal(t, []string{"community", "core", DomainNotifications, "organizing", "social"}, r.Domains())

	// every event type has at least one consumer
	for _, et := range []domain.EventType{
		domain.EventTypePersonalAchievement,
		domain.EventTypeCommunityInsight,
		domain.EventTypeProjectUpdate,
		domain.EventTypeSocialShare,
		domain.EventTypeResourceRequest,
		domain.EventTypeCommunityNotification,
	} {
		regs := r.Lookup(et)
		require.NotEmpty(t, regs, et)
		for _, reg := range regs {
			assert.NoError(t, reg.Handler(context.Background(), &domain.CrossDomainEvent{ID: "event_1", EventType: et}))
		}
	}
}
