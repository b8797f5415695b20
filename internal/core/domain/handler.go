package domain

import (
	"context"
	"time"
)

// HandlerFunc processes one event on behalf of a consumer domain.
// Handlers must be idempotent: delivery is at-least-once.
type HandlerFunc func(ctx context.Context, event *CrossDomainEvent) error

// HandlerRegistration binds a handler to a domain and a set of event types
type HandlerRegistration struct {
	ID         string
	Domain     string
	EventTypes []EventType
	Handler    HandlerFunc
	Priority   int

	// Seq is the registration order, used as the tie breaker for equal priorities
	Seq int
}

// Handles reports whether the registration covers the event type
func (r *HandlerRegistration) Handles(t EventType) bool {
	for _, et := range r.EventTypes {
		if et == t {
			return true
		}
	}
	return false
}

// HandlerOutcome is the result of invoking one handler
type HandlerOutcome struct {
	RegistrationID string        `json:"registration_id"`
	Domain         string        `json:"domain"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
	RetryScheduled bool          `json:"retry_scheduled,omitempty"`

	Err error `json:"-"`
}

// ProcessingResult is the outcome of ProcessIncomingEvent
type ProcessingResult struct {
	EventID          string           `json:"event_id"`
	Status           ProcessingStatus `json:"status"`
	Outcomes         []HandlerOutcome `json:"outcomes"`
	Warnings         []string         `json:"warnings,omitempty"`
	RetriesScheduled int              `json:"retries_scheduled"`

	// Skipped is set when the event was already terminal or another instance won the transition
	Skipped  bool          `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Succeeded counts successful handler outcomes
func (r *ProcessingResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}
