package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
	"github.com/blkout/ivor-core/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.EventCoordinator = (*Coordinator)(nil)

// LatencyObserver receives the processing latency of every event that reaches a terminal status
type LatencyObserver interface {
	ObserveLatency(d time.Duration)
}

// Coordinator publishes cross-domain events and dispatches them to domain handlers.
// The event store is the source of truth; the broker only notifies.
type Coordinator struct {
	store    driven.EventStore
	broker   driven.Broker
	registry *HandlerRegistry
	tasks    driven.TaskQueue
	observer LatencyObserver
	recorder driven.MetricsRecorder
	validate *validator.Validate
	logger   *slog.Logger

	domains     []string
	concurrency int

	inflightMu sync.Mutex
	inflight   map[string]struct{}
}

// CoordinatorConfig holds dependencies for the coordinator.
type CoordinatorConfig struct {
	Store    driven.EventStore
	Broker   driven.Broker
	Registry *HandlerRegistry
	// TaskQueue receives handler retry tasks. Nil disables retries.
	TaskQueue driven.TaskQueue
	Observer  LatencyObserver
	Recorder  driven.MetricsRecorder
	Logger    *slog.Logger

	// Domains are subscribed in addition to the domains that have handlers
	Domains []string
	// Concurrency bounds events processed at once by Run (default: 8)
	Concurrency int
}

// NewCoordinator creates a new coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = driven.NoopMetrics{}
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewHandlerRegistry()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Coordinator{
		store:       cfg.Store,
		broker:      cfg.Broker,
		registry:    registry,
		tasks:       cfg.TaskQueue,
		observer:    cfg.Observer,
		recorder:    recorder,
		validate:    validator.New(),
		logger:      logger,
		domains:     cfg.Domains,
		concurrency: concurrency,
		inflight:    make(map[string]struct{}),
	}
}

// Registry returns the handler registry
func (c *Coordinator) Registry() *HandlerRegistry {
	return c.registry
}

// RegisterHandler binds a handler to a domain and event types.
func (c *Coordinator) RegisterHandler(handlerDomain string, eventTypes []domain.EventType, handler domain.HandlerFunc, priority int) (string, error) {
	id, err := c.registry.Register(handlerDomain, eventTypes, handler, priority)
	if err != nil {
		return "", err
	}
	c.logger.Debug("handler registered", "registration_id", id, "event_types", eventTypes, "priority", priority)
	return id, nil
}

// PublishEvent validates the draft, persists the event as pending and then
// publishes it to the source, target and broadcast channels. Nothing is published
// unless the event was stored. A broker failure returns the id together with an
// error; the stored event is picked up by the recovery sweeper.
func (c *Coordinator) PublishEvent(ctx context.Context, draft domain.EventDraft) (id string, err error) {
	ctx, span := tracer.Start(ctx, "coordinator.PublishEvent",
		trace.WithAttributes(
			attribute.String("event.type", string(draft.EventType)),
			attribute.String("event.source_domain", draft.SourceDomain),
		),
	)
	defer func() {
		c.recorder.RecordEventPublished(draft.EventType, err)
		endSpan(span, err)
	}()

	if err := c.validate.Struct(draft); err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrInvalidInput, describeValidation(err))
	}

	event := domain.NewEvent(draft)
	span.SetAttributes(attribute.String("event.id", event.ID))

	if err := c.store.Create(ctx, event); err != nil {
		return "", fmt.Errorf("%w: store event: %w", domain.ErrPublishFailed, err)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return event.ID, fmt.Errorf("%w: encode event: %w", domain.ErrPublishFailed, err)
	}

	var errs []error
	for _, ch := range event.Channels() {
		if perr := c.broker.Publish(ctx, ch, payload); perr != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", ch, perr))
		}
	}
	if len(errs) > 0 {
		c.logger.Warn("event stored but broker publish failed, recovery sweeper will reconcile",
			"event_id", event.ID,
			"error", errors.Join(errs...),
		)
		return event.ID, fmt.Errorf("%w: %w", domain.ErrPublishFailed, errors.Join(errs...))
	}

	c.logger.Info("event published",
		"event_id", event.ID,
		"event_type", event.EventType,
		"source_domain", event.SourceDomain,
		"target_domains", event.TargetDomains,
	)
	return event.ID, nil
}

// GetEvent returns the stored event
func (c *Coordinator) GetEvent(ctx context.Context, id string) (*domain.CrossDomainEvent, error) {
	return c.store.Get(ctx, id)
}

// ProcessIncomingEvent runs every handler registered for the event type, highest
// priority first, isolating failures. At least one success marks the event
// processed, otherwise failed; no handlers marks it processed with a warning.
// The transition is conditional on the stored event still being pending, so
// redelivered or concurrently processed events are reported as skipped.
func (c *Coordinator) ProcessIncomingEvent(ctx context.Context, event *domain.CrossDomainEvent) (result *domain.ProcessingResult, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "coordinator.ProcessIncomingEvent",
		trace.WithAttributes(
			attribute.String("event.id", event.ID),
			attribute.String("event.type", string(event.EventType)),
		),
	)
	defer func() { endSpan(span, err) }()

	result = &domain.ProcessingResult{EventID: event.ID}

	stored, err := c.store.Get(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", event.ID, err)
	}
	if stored.ProcessingStatus.IsTerminal() {
		result.Skipped = true
		result.Status = stored.ProcessingStatus
		return result, nil
	}

	regs := c.registry.Lookup(stored.EventType)
	status := domain.ProcessingStatusProcessed
	if len(regs) == 0 {
		warning := fmt.Sprintf("no handlers registered for event type %s", stored.EventType)
		result.Warnings = append(result.Warnings, warning)
		c.logger.Warn("no handlers registered, marking event processed",
			"event_id", stored.ID,
			"event_type", stored.EventType,
		)
	} else {
		for _, reg := range regs {
			result.Outcomes = append(result.Outcomes, c.invoke(ctx, reg, stored))
		}
		if result.Succeeded() == 0 {
			status = domain.ProcessingStatusFailed
		}
	}

	processedAt := time.Now().UTC()
	won, err := c.store.Transition(ctx, stored.ID, status, processedAt)
	if err != nil {
		return result, fmt.Errorf("transition event %s to %s: %w", stored.ID, status, err)
	}
	result.Duration = time.Since(start)

	if !won {
		result.Skipped = true
		if current, gerr := c.store.Get(ctx, stored.ID); gerr == nil {
			result.Status = current.ProcessingStatus
		}
		c.logger.Debug("event already transitioned by another writer", "event_id", stored.ID)
		return result, nil
	}
	result.Status = status

	latency := processedAt.Sub(stored.CreatedAt)
	if c.observer != nil {
		c.observer.ObserveLatency(latency)
	}
	c.recorder.RecordEventProcessed(stored.EventType, status, latency)

	if stored.RetryEligible() {
		c.scheduleRetries(ctx, stored, result)
	}

	c.logger.Info("event processed",
		"event_id", stored.ID,
		"status", status,
		"handlers", len(result.Outcomes),
		"succeeded", result.Succeeded(),
		"retries_scheduled", result.RetriesScheduled,
	)
	return result, nil
}

// scheduleRetries enqueues one retry task per failed handler. Retries never
// change the event's recorded status.
func (c *Coordinator) scheduleRetries(ctx context.Context, event *domain.CrossDomainEvent, result *domain.ProcessingResult) {
	for i := range result.Outcomes {
		outcome := &result.Outcomes[i]
		if outcome.Success {
			continue
		}
		if c.tasks == nil {
			c.logger.Warn("handler failed on high priority event but no task queue is configured",
				"event_id", event.ID,
				"registration_id", outcome.RegistrationID,
			)
			continue
		}
		task := domain.NewHandlerRetryTask(event.ID, outcome.RegistrationID, event.LiberationRelevanceScore)
		if err := c.tasks.Enqueue(ctx, task); err != nil {
			c.logger.Error("failed to enqueue handler retry",
				"event_id", event.ID,
				"registration_id", outcome.RegistrationID,
				"error", err,
			)
			continue
		}
		outcome.RetryScheduled = true
		result.RetriesScheduled++
		c.recorder.RecordRetryScheduled(outcome.Domain)
		c.logger.Info("handler retry scheduled",
			"event_id", event.ID,
			"registration_id", outcome.RegistrationID,
			"task_id", task.ID,
			"scheduled_for", task.ScheduledFor,
		)
	}
}

// ExecuteRetry re-runs a single handler for an event. The event's status is not changed.
func (c *Coordinator) ExecuteRetry(ctx context.Context, eventID, registrationID string) error {
	reg, ok := c.registry.Get(registrationID)
	if !ok {
		return fmt.Errorf("%w: handler registration %s", domain.ErrNotFound, registrationID)
	}
	event, err := c.store.Get(ctx, eventID)
	if err != nil {
		return fmt.Errorf("load event %s: %w", eventID, err)
	}

	outcome := c.invoke(ctx, reg, event)
	if outcome.Err != nil {
		c.logger.Error("handler retry failed",
			"event_id", eventID,
			"registration_id", registrationID,
			"error", outcome.Err,
		)
		return outcome.Err
	}
	c.logger.Info("handler retry succeeded", "event_id", eventID, "registration_id", registrationID)
	return nil
}

// invoke runs one handler, converting errors and panics into the outcome
func (c *Coordinator) invoke(ctx context.Context, reg *domain.HandlerRegistration, event *domain.CrossDomainEvent) (out domain.HandlerOutcome) {
	start := time.Now()
	out = domain.HandlerOutcome{RegistrationID: reg.ID, Domain: reg.Domain}

	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("handler panic: %v", r)
		}
		out.Duration = time.Since(start)
		out.Success = out.Err == nil
		if out.Err != nil {
			out.Error = out.Err.Error()
			c.logger.Warn("handler failed",
				"event_id", event.ID,
				"registration_id", reg.ID,
				"error", out.Err,
			)
		}
		c.recorder.RecordHandler(reg.Domain, out.Success, out.Duration)
	}()

	out.Err = reg.Handler(ctx, event)
	return out
}

// Channels returns the broker channels Run subscribes to
func (c *Coordinator) Channels() []string {
	set := make(map[string]struct{})
	for _, d := range c.registry.Domains() {
		set[d] = struct{}{}
	}
	for _, d := range c.domains {
		set[d] = struct{}{}
	}
	channels := make([]string, 0, len(set)+1)
	for d := range set {
		channels = append(channels, domain.DomainChannel(d))
	}
	sort.Strings(channels)
	return append(channels, domain.BroadcastChannel)
}

// Run consumes broker notifications until ctx is cancelled. The same event
// arriving on several channels is processed once per instance at a time.
func (c *Coordinator) Run(ctx context.Context) error {
	channels := c.Channels()
	msgs, err := c.broker.Subscribe(ctx, channels...)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.logger.Info("coordinator subscribed", "channels", channels)

	sem := make(chan struct{}, c.concurrency)
	var wg sync.WaitGroup
	defer wg.Wait()

	for msg := range msgs {
		if msg.Channel == domain.BroadcastChannel {
			c.observeBroadcast(msg)
			continue
		}

		var event domain.CrossDomainEvent
		if err := json.Unmarshal(msg.Payload, &event); err != nil || event.ID == "" {
			c.logger.Warn("discarding malformed event message", "channel", msg.Channel, "error", err)
			continue
		}
		if !c.claim(event.ID) {
			continue
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			c.release(event.ID)
			return nil
		}
		wg.Add(1)
		go func(ev domain.CrossDomainEvent) {
			defer wg.Done()
			defer func() { <-sem }()
			defer c.release(ev.ID)
			if _, err := c.ProcessIncomingEvent(ctx, &ev); err != nil {
				c.logger.Error("failed to process event", "event_id", ev.ID, "error", err)
			}
		}(event)
	}
	return nil
}

func (c *Coordinator) observeBroadcast(msg driven.Message) {
	var head struct {
		ID        string           `json:"id"`
		EventType domain.EventType `json:"event_type"`
	}
	_ = json.Unmarshal(msg.Payload, &head)
	c.logger.Debug("broadcast observed", "event_id", head.ID, "event_type", head.EventType)
}

func (c *Coordinator) claim(id string) bool {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	if _, busy := c.inflight[id]; busy {
		return false
	}
	c.inflight[id] = struct{}{}
	return true
}

func (c *Coordinator) release(id string) {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	delete(c.inflight, id)
}

// describeValidation flattens validator errors into "field: rule" pairs
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += ", "
		}
		msg += fe.Field() + ": " + fe.Tag()
	}
	return msg
}
