package domain

import "time"

// Metrics aggregation parameters
const (
	LatencyEMAAlpha  = 0.1
	MetricsWindow    = 24 * time.Hour
	MetricsTTL       = 5 * time.Minute
	MetricsInterval  = 5 * time.Minute
	MetricsCacheKey  = "ivor:coordination:metrics"
	MetricsCacheTTLs = 300
)

// CoordinationMetrics summarises event processing over the trailing 24h window.
// Efficiency and engagement are fractions in [0,1]; impact is on the 0..100 score scale.
type CoordinationMetrics struct {
	EventsProcessed24h      int       `json:"events_processed_24h"`
	TotalEvents24h          int       `json:"total_events_24h"`
	AverageProcessingTimeMs float64   `json:"average_processing_time"`
	CrossDomainEfficiency   float64   `json:"cross_domain_efficiency"`
	CommunityEngagementRate float64   `json:"community_engagement_rate"`
	LiberationImpactScore   float64   `json:"liberation_impact_score"`
	ComputedAt              time.Time `json:"computed_at"`
}

// IsFresh reports whether the snapshot is younger than ttl
func (m *CoordinationMetrics) IsFresh(ttl time.Duration, now time.Time) bool {
	return m != nil && !m.ComputedAt.IsZero() && now.Sub(m.ComputedAt) < ttl
}

// EngagementEventType reports whether processed events of this type count as community engagement
func EngagementEventType(t EventType) bool {
	switch t {
	case EventTypePersonalAchievement, EventTypeSocialShare, EventTypeCommunityNotification:
		return true
	}
	return false
}

// ComputeCoordinationMetrics derives the window metrics from event summaries.
// The average processing time is the window mean of processed_at - created_at.
func ComputeCoordinationMetrics(events []EventSummary, now time.Time) *CoordinationMetrics {
	m := &CoordinationMetrics{ComputedAt: now, TotalEvents24h: len(events)}

	var processed, engaged int
	var scoreSum int
	var latencySum time.Duration
	var latencyCount int
	for _, e := range events {
		if e.ProcessedAt != nil {
			latencySum += e.ProcessedAt.Sub(e.CreatedAt)
			latencyCount++
		}
		if e.Status != ProcessingStatusProcessed {
			continue
		}
		processed++
		scoreSum += e.Score
		if EngagementEventType(e.EventType) {
			engaged++
		}
	}

	m.EventsProcessed24h = processed
	if len(events) > 0 {
		m.CrossDomainEfficiency = float64(processed) / float64(len(events))
	}
	if processed > 0 {
		m.CommunityEngagementRate = float64(engaged) / float64(processed)
		m.LiberationImpactScore = float64(scoreSum) / float64(processed)
	}
	if latencyCount > 0 {
		m.AverageProcessingTimeMs = float64(latencySum.Milliseconds()) / float64(latencyCount)
	}
	return m
}
