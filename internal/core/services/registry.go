package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/blkout/ivor-core/internal/core/domain"
)

// HandlerRegistry holds domain handler registrations.
// It is written during startup and sealed before events are consumed.
type HandlerRegistry struct {
	mu        sync.RWMutex
	regs      []*domain.HandlerRegistration
	byID      map[string]*domain.HandlerRegistration
	perDomain map[string]int
	seq       int
	sealed    bool
}

// NewHandlerRegistry creates an empty registry
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{
		byID:      make(map[string]*domain.HandlerRegistration),
		perDomain: make(map[string]int),
	}
}

// Register adds a handler and returns its id ("<domain>/<n>")
func (r *HandlerRegistry) Register(handlerDomain string, eventTypes []domain.EventType, handler domain.HandlerFunc, priority int) (string, error) {
	handlerDomain = strings.TrimSpace(handlerDomain)
	if handlerDomain == "" {
		return "", fmt.Errorf("%w: handler domain is required", domain.ErrInvalidInput)
	}
	if handler == nil {
		return "", fmt.Errorf("%w: handler is required", domain.ErrInvalidInput)
	}
	if len(eventTypes) == 0 {
		return "", fmt.Errorf("%w: at least one event type is required", domain.ErrInvalidInput)
	}
	for _, et := range eventTypes {
		if !et.IsValid() {
			return "", fmt.Errorf("%w: unknown event type %q", domain.ErrInvalidInput, et)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return "", domain.ErrRegistrySealed
	}

	r.seq++
	r.perDomain[handlerDomain]++
	reg := &domain.HandlerRegistration{
		ID:         fmt.Sprintf("%s/%d", handlerDomain, r.perDomain[handlerDomain]),
		Domain:     handlerDomain,
		EventTypes: append([]domain.EventType(nil), eventTypes...),
		Handler:    handler,
		Priority:   priority,
		Seq:        r.seq,
	}
	r.regs = append(r.regs, reg)
	r.byID[reg.ID] = reg
	return reg.ID, nil
}

// Seal rejects further registrations
func (r *HandlerRegistry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

// Sealed reports whether the registry is sealed
func (r *HandlerRegistry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

// Lookup returns registrations for an event type, highest priority first,
// then in registration order.
func (r *HandlerRegistry) Lookup(eventType domain.EventType) []*domain.HandlerRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.HandlerRegistration
	for _, reg := range r.regs {
		if reg.Handles(eventType) {
			out = append(out, reg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// Get returns a registration by id
func (r *HandlerRegistry) Get(id string) (*domain.HandlerRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byID[id]
	return reg, ok
}

// Domains returns the distinct domains with at least one registration, sorted
func (r *HandlerRegistry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.perDomain))
	for d := range r.perDomain {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
