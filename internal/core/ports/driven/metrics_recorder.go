package driven

import (
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
)

// MetricsRecorder exports pipeline and coordination telemetry
type MetricsRecorder interface {
	// RecordIntake counts an intake decision
	RecordIntake(decision domain.Decision)

	// RecordEventPublished counts a published event
	RecordEventPublished(eventType domain.EventType, err error)

	// RecordEventProcessed counts a terminal transition and its latency
	RecordEventProcessed(eventType domain.EventType, status domain.ProcessingStatus, latency time.Duration)

	// RecordHandler counts one handler invocation
	RecordHandler(handlerDomain string, success bool, duration time.Duration)

	// RecordRetryScheduled counts an enqueued handler retry
	RecordRetryScheduled(handlerDomain string)

	// SetCoordinationMetrics exports the latest window snapshot
	SetCoordinationMetrics(m *domain.CoordinationMetrics)
}

// NoopMetrics discards everything
type NoopMetrics struct{}

func (NoopMetrics) RecordIntake(domain.Decision) {}
func (NoopMetrics) RecordEventPublished(domain.EventType, error) {}
func (NoopMetrics) RecordEventProcessed(domain.EventType, domain.ProcessingStatus, time.Duration) {}
func (NoopMetrics) RecordHandler(string, bool, time.Duration) {}
func (NoopMetrics) RecordRetryScheduled(string) {}
func (NoopMetrics) SetCoordinationMetrics(*domain.CoordinationMetrics) {}

var _ MetricsRecorder = NoopMetrics{}
