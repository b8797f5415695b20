package acceptance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cucumber/godog"

	"github.com/blkout/ivor-core/internal/core/domain"
)

func (s *steps) registerCoordination(sc *godog.ScenarioContext) {
	sc.Step(`^an event coordinator backed by a durable event store$`, s.coordinatorReady)
	sc.Step(`^a "([^"]*)" handler at priority (\d+) that (succeeds|fails)$`, s.aHandler)
	sc.Step(`^a "([^"]*)" event targeting "([^"]*)" with score (\d+) is published$`, s.eventPublished)
	sc.Step(`^the event is processed$`, s.eventProcessed)
	sc.Step(`^the event status is "([^"]*)"$`, s.eventStatusIs)
	sc.Step(`^both handlers ran$`, s.bothHandlersRan)
	sc.Step(`^the event has a processed time$`, s.eventHasProcessedTime)
	sc.Step(`^(\d+) retries are scheduled$`, s.retriesScheduled)
	sc.Step(`^the result carries a warning$`, s.resultCarriesWarning)
}

func (s *steps) coordinatorReady() error {
	return s.w.store.Ping(context.Background())
}

func (s *steps) aHandler(handlerDomain string, priority int, outcome string) error {
	name := fmt.Sprintf("%s@%d", handlerDomain, priority)
	handler := func(context.Context, *domain.CrossDomainEvent) error {
		s.w.mu.Lock()
		s.w.ran = append(s.w.ran, name)
		s.w.mu.Unlock()
		if outcome == "fails" {
			return errors.New("downstream unavailable")
		}
		return nil
	}
	_, err := s.w.coordinator.RegisterHandler(handlerDomain, []domain.EventType{domain.EventTypeCommunityInsight}, handler, priority)
	return err
}

func (s *steps) eventPublished(eventType, targets string, score int) error {
	var domains []string
	for _, d := range strings.Split(targets, ",") {
		domains = append(domains, strings.TrimSpace(d))
	}

	id, err := s.w.coordinator.PublishEvent(context.Background(), domain.EventDraft{
		EventType:                domain.EventType(eventType),
		SourceDomain:             domain.DomainCore,
		TargetDomains:            domains,
		EventData:                map[string]any{"title": "Housing co-op update"},
		LiberationRelevanceScore: score,
	})
	if err != nil {
		return err
	}
	s.w.event, err = s.w.store.Get(context.Background(), id)
	return err
}

func (s *steps) eventProcessed() error {
	result, err := s.w.coordinator.ProcessIncomingEvent(context.Background(), s.w.event)
	if err != nil {
		return err
	}
	s.w.result = result
	return nil
}

func (s *steps) eventStatusIs(status string) error {
	stored, err := s.w.store.Get(context.Background(), s.w.event.ID)
	if err != nil {
		return err
	}
	if string(stored.ProcessingStatus) != status {
		return fmt.Errorf("expected status %q, got %q", status, stored.ProcessingStatus)
	}
	return nil
}

func (s *steps) bothHandlersRan() error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if len(s.w.ran) != 2 {
		return fmt.Errorf("expected 2 handler runs, got %v", s.w.ran)
	}
	for _, name := range []string{"community@5", "community@1"} {
		if !slices.Contains(s.w.ran, name) {
			return fmt.Errorf("handler %s did not run: %v", name, s.w.ran)
		}
	}
	return nil
}

func (s *steps) eventHasProcessedTime() error {
	stored, err := s.w.store.Get(context.Background(), s.w.event.ID)
	if err != nil {
		return err
	}
	if stored.ProcessedAt == nil {
		return errors.New("expected processed_at to be set")
	}
	return nil
}

func (s *steps) retriesScheduled(n int) error {
	if s.w.result.RetriesScheduled != n {
		return fmt.Errorf("expected %d retries in result, got %d", n, s.w.result.RetriesScheduled)
	}
	if got := len(s.w.tasks.Tasks()); got != n {
		return fmt.Errorf("expected %d queued retry tasks, got %d", n, got)
	}
	return nil
}

func (s *steps) resultCarriesWarning() error {
	if len(s.w.result.Warnings) == 0 {
		return errors.New("expected a warning")
	}
	return nil
}
