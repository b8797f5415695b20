package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
	"github.com/blkout/ivor-core/internal/core/ports/driving"
)

// Verify interface compliance
var (
	_ driving.MetricsService = (*MetricsAggregator)(nil)
	_ LatencyObserver        = (*MetricsAggregator)(nil)
)

// MetricsAggregator maintains coordination metrics: a latency EMA updated on
// every processed event and a periodic recompute over the trailing window.
type MetricsAggregator struct {
	store    driven.EventStore
	cache    driven.MetricsCache
	recorder driven.MetricsRecorder
	logger   *slog.Logger

	interval time.Duration
	ttl      time.Duration
	window   time.Duration
	alpha    float64
	now      func() time.Time

	mu       sync.Mutex
	ema      float64
	observed bool
	snapshot *domain.CoordinationMetrics
}

// MetricsAggregatorConfig holds dependencies for the aggregator.
type MetricsAggregatorConfig struct {
	Store driven.EventStore
	// Cache shares snapshots between instances. Optional.
	Cache    driven.MetricsCache
	Recorder driven.MetricsRecorder
	Logger   *slog.Logger

	Interval time.Duration // default: 5m
	TTL      time.Duration // default: 5m
}

// NewMetricsAggregator creates a new aggregator
func NewMetricsAggregator(cfg MetricsAggregatorConfig) *MetricsAggregator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = driven.NoopMetrics{}
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = domain.MetricsInterval
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = domain.MetricsTTL
	}
	return &MetricsAggregator{
		store:    cfg.Store,
		cache:    cfg.Cache,
		recorder: recorder,
		logger:   logger,
		interval: interval,
		ttl:      ttl,
		window:   domain.MetricsWindow,
		alpha:    domain.LatencyEMAAlpha,
		now:      time.Now,
	}
}

// ObserveLatency folds one processing latency into the moving average
func (a *MetricsAggregator) ObserveLatency(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.observed {
		a.ema = ms
		a.observed = true
		return
	}
	a.ema = a.alpha*ms + (1-a.alpha)*a.ema
}

// AverageLatencyMs returns the moving average and whether any latency was observed
func (a *MetricsAggregator) AverageLatencyMs() (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ema, a.observed
}

// GetCoordinationMetrics returns the in-process snapshot when fresh, then the
// shared cache, and otherwise recomputes from the event store.
func (a *MetricsAggregator) GetCoordinationMetrics(ctx context.Context) (*domain.CoordinationMetrics, error) {
	a.mu.Lock()
	if a.snapshot.IsFresh(a.ttl, a.now()) {
		cp := *a.snapshot
		a.mu.Unlock()
		return &cp, nil
	}
	a.mu.Unlock()

	if a.cache != nil {
		cached, err := a.cache.Get(ctx)
		if err != nil {
			a.logger.Warn("failed to read shared metrics cache", "error", err)
		} else if cached != nil && cached.IsFresh(a.ttl, a.now()) {
			a.mu.Lock()
			a.snapshot = cached
			a.mu.Unlock()
			cp := *cached
			return &cp, nil
		}
	}

	return a.Recompute(ctx)
}

// Recompute derives metrics from the events in the trailing window, stores the
// snapshot locally and in the shared cache, and exports it.
func (a *MetricsAggregator) Recompute(ctx context.Context) (*domain.CoordinationMetrics, error) {
	now := a.now().UTC()
	events, err := a.store.ListSince(ctx, now.Add(-a.window))
	if err != nil {
		return nil, fmt.Errorf("list events in window: %w", err)
	}

	m := domain.ComputeCoordinationMetrics(events, now)
	if ema, ok := a.AverageLatencyMs(); ok {
		m.AverageProcessingTimeMs = ema
	}

	a.mu.Lock()
	a.snapshot = m
	a.mu.Unlock()

	if a.cache != nil {
		if err := a.cache.Set(ctx, m, a.ttl); err != nil {
			a.logger.Warn("failed to write shared metrics cache", "error", err)
		}
	}
	a.recorder.SetCoordinationMetrics(m)

	a.logger.Debug("coordination metrics recomputed",
		"total_events", m.TotalEvents24h,
		"processed", m.EventsProcessed24h,
		"efficiency", m.CrossDomainEfficiency,
	)

	cp := *m
	return &cp, nil
}

// Run recomputes on every interval until ctx is cancelled
func (a *MetricsAggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	if _, err := a.Recompute(ctx); err != nil {
		a.logger.Warn("initial metrics recompute failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.Recompute(ctx); err != nil {
				a.logger.Warn("metrics recompute failed", "error", err)
			}
		}
	}
}
