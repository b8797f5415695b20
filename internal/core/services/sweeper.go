package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

const sweeperLockName = "recovery-sweeper"

// EventProcessor processes one stored event
type EventProcessor interface {
	ProcessIncomingEvent(ctx context.Context, event *domain.CrossDomainEvent) (*domain.ProcessingResult, error)
}

// Sweeper re-drives events left pending because a broker notification was lost.
//
// For multi-instance deployments, configure a DistributedLock so only one
// instance sweeps per cycle. Re-processing is safe because the terminal
// transition is conditional.
type Sweeper struct {
	store     driven.EventStore
	processor EventProcessor
	lock      driven.DistributedLock
	logger    *slog.Logger

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	interval     time.Duration
	staleAfter   time.Duration
	batchSize    int
	lockTTL      time.Duration
	lockRequired bool
}

// SweeperConfig holds configuration for the recovery sweeper.
type SweeperConfig struct {
	Store        driven.EventStore
	Processor    EventProcessor
	Lock         driven.DistributedLock // Optional
	Logger       *slog.Logger
	Interval     time.Duration // How often to sweep (default: 30s)
	StaleAfter   time.Duration // Pending age before an event is re-driven (default: 60s)
	BatchSize    int           // Events per sweep (default: 50)
	LockTTL      time.Duration // default: 2x interval
	LockRequired bool
}

// NewSweeper creates a new recovery sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}
	staleAfter := cfg.StaleAfter
	if staleAfter == 0 {
		staleAfter = 60 * time.Second
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 50
	}
	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * interval
	}

	return &Sweeper{
		store:        cfg.Store,
		processor:    cfg.Processor,
		lock:         cfg.Lock,
		logger:       logger,
		interval:     interval,
		staleAfter:   staleAfter,
		batchSize:    batch,
		lockTTL:      lockTTL,
		lockRequired: cfg.Lock != nil || cfg.LockRequired,
	}
}

// Start begins the sweep loop. It runs until Stop is called or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("recovery sweeper starting",
		"interval", s.interval,
		"stale_after", s.staleAfter,
		"batch_size", s.batchSize,
	)

	go s.run(ctx)
	return nil
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("recovery sweeper stopped")
}

// IsRunning reports whether the loop is active
func (s *Sweeper) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one cycle under the distributed lock when configured
func (s *Sweeper) sweep(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, sweeperLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire sweeper lock", "error", err)
			if s.lockRequired {
				return
			}
		} else if !acquired {
			s.logger.Debug("sweeper lock held by another instance, skipping cycle")
			return
		} else {
			defer func() {
				if err := s.lock.Release(ctx, sweeperLockName); err != nil {
					s.logger.Warn("failed to release sweeper lock", "error", err)
				}
			}()
		}
	}

	if _, err := s.SweepOnce(ctx); err != nil {
		s.logger.Error("recovery sweep failed", "error", err)
	}
}

// SweepOnce re-processes up to one batch of stale pending events and returns
// how many reached a terminal status. Per-event failures are logged and skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	stale, err := s.store.ListStalePending(ctx, time.Now().Add(-s.staleAfter), s.batchSize)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	recovered := 0
	for _, event := range stale {
		if ctx.Err() != nil {
			break
		}
		result, err := s.processor.ProcessIncomingEvent(ctx, event)
		if err != nil {
			s.logger.Error("failed to recover event", "event_id", event.ID, "error", err)
			continue
		}
		if !result.Skipped {
			recovered++
		}
	}

	s.logger.Info("recovery sweep complete", "stale", len(stale), "recovered", recovered)
	return recovered, nil
}
