package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven/mocks"
)

// recordingProcessor implements EventProcessor for testing
type recordingProcessor struct {
	mu        sync.Mutex
	processed []string
	processFn func(event *domain.CrossDomainEvent) (*domain.ProcessingResult, error)
}

func (p *recordingProcessor) ProcessIncomingEvent(ctx context.Context, event *domain.CrossDomainEvent) (*domain.ProcessingResult, error) {
	p.mu.Lock()
	p.processed = append(p.processed, event.ID)
	p.mu.Unlock()
	if p.processFn != nil {
		return p.processFn(event)
	}
	return &domain.ProcessingResult{EventID: event.ID, Status: domain.ProcessingStatusProcessed}, nil
}

func (p *recordingProcessor) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.processed)
}

func pendingEvent(id string, age time.Duration) *domain.CrossDomainEvent {
	return &domain.CrossDomainEvent{
		ID:               id,
		EventType:        domain.EventTypeProjectUpdate,
		SourceDomain:     "core",
		TargetDomains:    []string{"community"},
		ProcessingStatus: domain.ProcessingStatusPending,
		CreatedAt:        time.Now().Add(-age),
	}
}

func TestNewSweeper_Defaults(t *testing.T) {
	s := NewSweeper(SweeperConfig{Store: mocks.NewMockEventStore(), Processor: &recordingProcessor{}})

	if s.interval != 30*time.Second {
		t.Errorf("expected default interval 30s, got %v", s.interval)
	}
	if s.staleAfter != 60*time.Second {
		t.Errorf("expected default stale age 60s, got %v", s.staleAfter)
	}
	if s.batchSize != 50 {
		t.Errorf("expected default batch 50, got %d", s.batchSize)
	}
	if s.lockRequired {
		t.Error("expected lock not required without a lock")
	}
}

func TestSweeper_SweepOnce_OnlyStalePending(t *testing.T) {
	store := mocks.NewMockEventStore()
	store.Put(pendingEvent("event_stale", 2*time.Minute))
	store.Put(pendingEvent("event_fresh", 5*time.Second))
	done := pendingEvent("event_done", 10*time.Minute)
	done.ProcessingStatus = domain.ProcessingStatusProcessed
	store.Put(done)

	proc := &recordingProcessor{}
	s := NewSweeper(SweeperConfig{Store: store, Processor: proc})

	recovered, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recovered != 1 {
		t.Errorf("expected 1 recovered event, got %d", recovered)
	}
	if len(proc.processed) != 1 || proc.processed[0] != "event_stale" {
		t.Errorf("expected only event_stale to be re-driven, got %v", proc.processed)
	}
}

func TestSweeper_SweepOnce_BatchLimit(t *testing.T) {
	store := mocks.NewMockEventStore()
	for i := 0; i < 5; i++ {
		store.Put(pendingEvent(domain.NewEventID(), time.Duration(i+2)*time.Minute))
	}
	proc := &recordingProcessor{}
	s := NewSweeper(SweeperConfig{Store: store, Processor: proc, BatchSize: 3})

	if _, err := s.SweepOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proc.count() != 3 {
		t.Errorf("expected 3 events processed, got %d", proc.count())
	}
}

func TestSweeper_SweepOnce_ErrorsDoNotAbort(t *testing.T) {
	store := mocks.NewMockEventStore()
	store.Put(pendingEvent("event_a", 3*time.Minute))
	store.Put(pendingEvent("event_b", 2*time.Minute))

	proc := &recordingProcessor{processFn: func(e *domain.CrossDomainEvent) (*domain.ProcessingResult, error) {
		if e.ID == "event_a" {
			return nil, errors.New("database timeout")
		}
		return &domain.ProcessingResult{EventID: e.ID, Status: domain.ProcessingStatusProcessed}, nil
	}}
	s := NewSweeper(SweeperConfig{Store: store, Processor: proc})

	recovered, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proc.count() != 2 {
		t.Errorf("expected both events attempted, got %d", proc.count())
	}
	if recovered != 1 {
		t.Errorf("expected 1 recovered, got %d", recovered)
	}
}

func TestSweeper_RecoversThroughCoordinator(t *testing.T) {
	store := mocks.NewMockEventStore()
	coord := NewCoordinator(CoordinatorConfig{Store: store, Broker: mocks.NewMockBroker()})
	_, _ = coord.RegisterHandler("community", []domain.EventType{domain.EventTypeProjectUpdate},
		func(context.Context, *domain.CrossDomainEvent) error { return nil }, 1)
	store.Put(pendingEvent("event_lost", 90*time.Second))

	s := NewSweeper(SweeperConfig{Store: store, Processor: coord})
	recovered, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recovered != 1 {
		t.Fatalf("expected 1 recovered, got %d", recovered)
	}

	event, _ := store.Get(context.Background(), "event_lost")
	if event.ProcessingStatus != domain.ProcessingStatusProcessed {
		t.Errorf("expected processed, got %s", event.ProcessingStatus)
	}

	// second sweep finds nothing
	recovered, _ = s.SweepOnce(context.Background())
	if recovered != 0 {
		t.Errorf("expected nothing left to recover, got %d", recovered)
	}
}

func TestSweeper_SkipsCycleWhenLockHeld(t *testing.T) {
	store := mocks.NewMockEventStore()
	store.Put(pendingEvent("event_stale", 2*time.Minute))
	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld(sweeperLockName, time.Minute)

	proc := &recordingProcessor{}
	s := NewSweeper(SweeperConfig{Store: store, Processor: proc, Lock: lock})
	s.sweep(context.Background())

	if proc.count() != 0 {
		t.Errorf("expected no processing while another instance holds the lock, got %d", proc.count())
	}
}

func TestSweeper_ReleasesLockAfterCycle(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	s := NewSweeper(SweeperConfig{Store: mocks.NewMockEventStore(), Processor: &recordingProcessor{}, Lock: lock})

	s.sweep(context.Background())

	if lock.Acquisitions() != 1 {
		t.Errorf("expected one acquisition, got %d", lock.Acquisitions())
	}
	if lock.IsHeld(sweeperLockName) {
		t.Error("expected lock released after sweep")
	}
}

func TestSweeper_StartStop(t *testing.T) {
	store := mocks.NewMockEventStore()
	store.Put(pendingEvent("event_stale", 2*time.Minute))
	proc := &recordingProcessor{}
	s := NewSweeper(SweeperConfig{Store: store, Processor: proc, Interval: time.Hour})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !s.IsRunning() {
		t.Error("expected sweeper running")
	}
	// starting twice is a no-op
	_ = s.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for proc.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()

	if s.IsRunning() {
		t.Error("expected sweeper stopped")
	}
	if proc.count() != 1 {
		t.Errorf("expected immediate sweep on start, got %d", proc.count())
	}
}
