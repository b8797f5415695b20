package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType is the kind of cross-domain event
type EventType string

const (
	EventTypePersonalAchievement   EventType = "PersonalAchievement"
	EventTypeCommunityInsight      EventType = "CommunityInsight"
	EventTypeProjectUpdate         EventType = "ProjectUpdate"
	EventTypeSocialShare           EventType = "SocialShare"
	EventTypeResourceRequest       EventType = "ResourceRequest"
	EventTypeCommunityNotification EventType = "CommunityNotification"
)

// EventTypes lists every event type
func EventTypes() []EventType {
	return []EventType{
		EventTypePersonalAchievement,
		EventTypeCommunityInsight,
		EventTypeProjectUpdate,
		EventTypeSocialShare,
		EventTypeResourceRequest,
		EventTypeCommunityNotification,
	}
}

// IsValid reports whether the event type is one of the known types
func (t EventType) IsValid() bool {
	for _, known := range EventTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Consumer domains that ship with default handlers
const (
	DomainCore       = "core"
	DomainCommunity  = "community"
	DomainOrganizing = "organizing"
	DomainSocial     = "social"
)

// Broker channel naming
const (
	BroadcastChannel = "ivor:coordination:broadcast"
	channelPrefix    = "ivor:"
	channelSuffix    = ":events"
)

// DomainChannel returns the broker channel for a consumer domain
func DomainChannel(domain string) string {
	return channelPrefix + domain + channelSuffix
}

// ProcessingStatus is the lifecycle state of an event
type ProcessingStatus string

const (
	ProcessingStatusPending   ProcessingStatus = "pending"
	ProcessingStatusProcessed ProcessingStatus = "processed"
	ProcessingStatusFailed    ProcessingStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible
func (s ProcessingStatus) IsTerminal() bool {
	return s == ProcessingStatusProcessed || s == ProcessingStatusFailed
}

// CanTransitionTo allows only pending -> processed and pending -> failed
func (s ProcessingStatus) CanTransitionTo(next ProcessingStatus) bool {
	return s == ProcessingStatusPending && next.IsTerminal()
}

// RetryScoreThreshold is the liberation relevance score at which failed handlers get one retry
const RetryScoreThreshold = 80

// CrossDomainEvent is the durable notification envelope fanned out to consumer domains
type CrossDomainEvent struct {
	ID                       string           `json:"id"`
	EventType                EventType        `json:"event_type"`
	SourceDomain             string           `json:"source_domain"`
	TargetDomains            []string         `json:"target_domains"`
	EventData                map[string]any   `json:"event_data"`
	JourneyContext           map[string]any   `json:"journey_context,omitempty"`
	CommunityImpactData      map[string]any   `json:"community_impact_data,omitempty"`
	ProcessingStatus         ProcessingStatus `json:"processing_status"`
	LiberationRelevanceScore int              `json:"liberation_relevance_score"`
	CulturalSensitivityCheck bool             `json:"cultural_sensitivity_check"`
	CommunityConsentVerified bool             `json:"community_consent_verified"`
	CreatedAt                time.Time        `json:"created_at"`
	ProcessedAt              *time.Time       `json:"processed_at,omitempty"`
}

// EventDraft is the publish input: an event without identity, status or timestamps
type EventDraft struct {
	EventType                EventType      `json:"event_type" validate:"required,oneof=PersonalAchievement CommunityInsight ProjectUpdate SocialShare ResourceRequest CommunityNotification"`
	SourceDomain             string         `json:"source_domain" validate:"required"`
	TargetDomains            []string       `json:"target_domains" validate:"required,min=1,dive,required"`
	EventData                map[string]any `json:"event_data"`
	JourneyContext           map[string]any `json:"journey_context,omitempty"`
	CommunityImpactData      map[string]any `json:"community_impact_data,omitempty"`
	LiberationRelevanceScore int            `json:"liberation_relevance_score" validate:"gte=0,lte=100"`
	CulturalSensitivityCheck bool           `json:"cultural_sensitivity_check"`
	CommunityConsentVerified bool           `json:"community_consent_verified"`
}

// NewEventID generates an event identifier
func NewEventID() string {
	return "event_" + uuid.NewString()
}

// NewEvent builds a pending event from a validated draft
func NewEvent(d EventDraft) *CrossDomainEvent {
	data := d.EventData
	if data == nil {
		data = map[string]any{}
	}
	targets := make([]string, len(d.TargetDomains))
	copy(targets, d.TargetDomains)
	return &CrossDomainEvent{
		ID:                       NewEventID(),
		EventType:                d.EventType,
		SourceDomain:             d.SourceDomain,
		TargetDomains:            targets,
		EventData:                data,
		JourneyContext:           d.JourneyContext,
		CommunityImpactData:      d.CommunityImpactData,
		ProcessingStatus:         ProcessingStatusPending,
		LiberationRelevanceScore: d.LiberationRelevanceScore,
		CulturalSensitivityCheck: d.CulturalSensitivityCheck,
		CommunityConsentVerified: d.CommunityConsentVerified,
		CreatedAt:                time.Now().UTC(),
	}
}

// Transition moves a pending event to a terminal status
func (e *CrossDomainEvent) Transition(to ProcessingStatus, at time.Time) error {
	if !e.ProcessingStatus.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.ProcessingStatus, to)
	}
	e.ProcessingStatus = to
	e.ProcessedAt = &at
	return nil
}

// RetryEligible reports whether failed handlers should be retried once
func (e *CrossDomainEvent) RetryEligible() bool {
	return e.LiberationRelevanceScore >= RetryScoreThreshold
}

// Channels returns the distinct broker channels the event is published to:
// the source domain, each target domain, then the broadcast channel.
func (e *CrossDomainEvent) Channels() []string {
	seen := make(map[string]bool, len(e.TargetDomains)+2)
	channels := make([]string, 0, len(e.TargetDomains)+2)
	add := func(ch string) {
		if !seen[ch] {
			seen[ch] = true
			channels = append(channels, ch)
		}
	}
	add(DomainChannel(e.SourceDomain))
	for _, d := range e.TargetDomains {
		add(DomainChannel(d))
	}
	add(BroadcastChannel)
	return channels
}

// ProcessingDuration is processed_at - created_at, zero while pending
func (e *CrossDomainEvent) ProcessingDuration() time.Duration {
	if e.ProcessedAt == nil {
		return 0
	}
	return e.ProcessedAt.Sub(e.CreatedAt)
}

// Summary projects the fields the metrics aggregator needs
func (e *CrossDomainEvent) Summary() EventSummary {
	return EventSummary{
		ID:          e.ID,
		EventType:   e.EventType,
		Status:      e.ProcessingStatus,
		Score:       e.LiberationRelevanceScore,
		CreatedAt:   e.CreatedAt,
		ProcessedAt: e.ProcessedAt,
	}
}

// EventSummary is the window projection used for metrics recomputation
type EventSummary struct {
	ID          string           `json:"id"`
	EventType   EventType        `json:"event_type"`
	Status      ProcessingStatus `json:"status"`
	Score       int              `json:"score"`
	CreatedAt   time.Time        `json:"created_at"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
}
