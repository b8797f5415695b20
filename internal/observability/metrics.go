package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.MetricsRecorder = (*Collector)(nil)

// Collector holds all Prometheus metrics for the service
type Collector struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Pipeline metrics
	IntakeDecisions *prometheus.CounterVec

	// Coordination metrics
	EventsPublished  *prometheus.CounterVec
	EventsProcessed  *prometheus.CounterVec
	EventLatency     *prometheus.HistogramVec
	HandlerCalls     *prometheus.CounterVec
	HandlerDuration  *prometheus.HistogramVec
	RetriesScheduled *prometheus.CounterVec

	// Window snapshot gauges
	WindowProcessed  prometheus.Gauge
	WindowTotal      prometheus.Gauge
	WindowLatencyMs  prometheus.Gauge
	WindowEfficiency prometheus.Gauge
	WindowEngagement prometheus.Gauge
	WindowImpact     prometheus.Gauge
}

// NewCollector creates a collector on its own registry, so several can coexist in tests.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		IntakeDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intake_decisions_total",
			Help:      "Content items routed by the intake pipeline",
		}, []string{"decision"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Cross-domain events published",
		}, []string{"event_type", "status"}),
		EventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Cross-domain events that reached a terminal status",
		}, []string{"event_type", "status"}),
		EventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_processing_seconds",
			Help:      "Time from event creation to terminal status",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"event_type"}),
		HandlerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_invocations_total",
			Help:      "Domain handler invocations",
		}, []string{"domain", "status"}),
		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Domain handler duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"domain"}),
		RetriesScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_retries_scheduled_total",
			Help:      "Handler retries enqueued after a failure",
		}, []string{"domain"}),
		WindowProcessed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordination_events_processed_24h",
			Help:      "Processed events in the trailing window",
		}),
		WindowTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordination_events_total_24h",
			Help:      "Events created in the trailing window",
		}),
		WindowLatencyMs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordination_average_processing_ms",
			Help:      "Average processing time in milliseconds",
		}),
		WindowEfficiency: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordination_cross_domain_efficiency",
			Help:      "Processed fraction of windowed events",
		}),
		WindowEngagement: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordination_community_engagement_rate",
			Help:      "Engagement fraction of windowed events",
		}),
		WindowImpact: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordination_liberation_impact_score",
			Help:      "Mean liberation relevance of processed events",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.HTTPRequests, c.HTTPDuration,
		c.IntakeDecisions,
		c.EventsPublished, c.EventsProcessed, c.EventLatency,
		c.HandlerCalls, c.HandlerDuration, c.RetriesScheduled,
		c.WindowProcessed, c.WindowTotal, c.WindowLatencyMs,
		c.WindowEfficiency, c.WindowEngagement, c.WindowImpact,
	)
	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordIntake(decision domain.Decision) {
	c.IntakeDecisions.WithLabelValues(string(decision)).Inc()
}

func (c *Collector) RecordEventPublished(eventType domain.EventType, err error) {
	c.EventsPublished.WithLabelValues(string(eventType), outcome(err == nil)).Inc()
}

func (c *Collector) RecordEventProcessed(eventType domain.EventType, status domain.ProcessingStatus, latency time.Duration) {
	c.EventsProcessed.WithLabelValues(string(eventType), string(status)).Inc()
	c.EventLatency.WithLabelValues(string(eventType)).Observe(latency.Seconds())
}

func (c *Collector) RecordHandler(handlerDomain string, success bool, duration time.Duration) {
	c.HandlerCalls.WithLabelValues(handlerDomain, outcome(success)).Inc()
	c.HandlerDuration.WithLabelValues(handlerDomain).Observe(duration.Seconds())
}

func (c *Collector) RecordRetryScheduled(handlerDomain string) {
	c.RetriesScheduled.WithLabelValues(handlerDomain).Inc()
}

func (c *Collector) SetCoordinationMetrics(m *domain.CoordinationMetrics) {
	if m == nil {
		return
	}
	c.WindowProcessed.Set(float64(m.EventsProcessed24h))
	c.WindowTotal.Set(float64(m.TotalEvents24h))
	c.WindowLatencyMs.Set(m.AverageProcessingTimeMs)
	c.WindowEfficiency.Set(m.CrossDomainEfficiency)
	c.WindowEngagement.Set(m.CommunityEngagementRate)
	c.WindowImpact.Set(m.LiberationImpactScore)
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "error"
}
