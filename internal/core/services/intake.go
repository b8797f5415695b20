package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
	"github.com/blkout/ivor-core/internal/core/ports/driving"
)

// Verify interface compliance
var _ driving.IntakeService = (*IntakeService)(nil)

// maxEmbeddingChars bounds the text sent to the embedding capability
const maxEmbeddingChars = 8000

// DefaultDecisionTargets are the domains notified of intake decisions
var DefaultDecisionTargets = []string{domain.DomainCommunity, domain.DomainSocial}

// IntakeService classifies, validates and routes candidate content.
type IntakeService struct {
	normalisers driven.NormaliserRegistry
	embedder    driven.EmbeddingService
	classifier  driven.Classifier
	scorer      *RelevanceScorer
	validation  *ValidationEngine
	index       driven.VectorIndex
	contents    driven.ContentStore
	reviews     driven.ReviewQueue
	legacy      driven.LegacyPublisher
	events      driving.EventPublisher
	recorder    driven.MetricsRecorder
	logger      *slog.Logger

	callDelay       time.Duration
	decisionSource  string
	decisionTargets []string
}

// IntakeServiceConfig holds dependencies for the intake service.
type IntakeServiceConfig struct {
	Normalisers driven.NormaliserRegistry // Optional
	Embedder    driven.EmbeddingService
	Classifier  driven.Classifier
	Scorer      *RelevanceScorer
	Validation  *ValidationEngine
	Index       driven.VectorIndex
	Contents    driven.ContentStore
	Reviews     driven.ReviewQueue
	Legacy      driven.LegacyPublisher // Optional
	Events      driving.EventPublisher // Optional: no decision events when nil
	Recorder    driven.MetricsRecorder
	Logger      *slog.Logger

	// CallDelay is the pause between items in a batch. Zero disables it.
	CallDelay time.Duration
	// DecisionTargets receive the decision notification (default: community, social)
	DecisionTargets []string
}

// NewIntakeService creates a new intake service.
func NewIntakeService(cfg IntakeServiceConfig) *IntakeService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = driven.NoopMetrics{}
	}
	scorer := cfg.Scorer
	if scorer == nil {
		scorer = NewRelevanceScorer(nil)
	}
	engine := cfg.Validation
	if engine == nil {
		engine = NewValidationEngine(ValidationEngineConfig{
			Duplicates: NewDuplicateDetector(cfg.Index),
			Logger:     logger,
		})
	}
	targets := cfg.DecisionTargets
	if len(targets) == 0 {
		targets = DefaultDecisionTargets
	}
	return &IntakeService{
		normalisers:     cfg.Normalisers,
		embedder:        cfg.Embedder,
		classifier:      cfg.Classifier,
		scorer:          scorer,
		validation:      engine,
		index:           cfg.Index,
		contents:        cfg.Contents,
		reviews:         cfg.Reviews,
		legacy:          cfg.Legacy,
		events:          cfg.Events,
		recorder:        recorder,
		logger:          logger,
		callDelay:       cfg.CallDelay,
		decisionSource:  domain.DomainCore,
		decisionTargets: append([]string(nil), targets...),
	}
}

// ClassifyContent normalises the raw item, embeds it, classifies it and scores
// its relevance. Nothing is persisted. Capability failures wrap ErrClassificationFailed.
func (s *IntakeService) ClassifyContent(ctx context.Context, raw *domain.RawContentItem) (*domain.ClassifiedContentItem, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: content item is required", domain.ErrInvalidInput)
	}

	item := &domain.ClassifiedContentItem{RawContentItem: *raw}
	if _, err := item.AssignID(); err != nil {
		return nil, err
	}
	if s.normalisers != nil {
		item.Body = s.normalisers.Normalise(item.Body, item.MimeType)
		item.Description = s.normalisers.Normalise(item.Description, item.MimeType)
	}

	vectors, err := s.embedder.Embed(ctx, []string{truncateRunes(item.EmbeddingText(), maxEmbeddingChars)})
	if err != nil {
		return nil, fmt.Errorf("%w: embed: %w", domain.ErrClassificationFailed, err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: embed returned %d vectors", domain.ErrClassificationFailed, len(vectors))
	}
	if want := s.embedder.Dimensions(); len(vectors[0]) != want {
		return nil, fmt.Errorf("%w: %w: got %d, want %d",
			domain.ErrClassificationFailed, domain.ErrDimensionMismatch, len(vectors[0]), want)
	}

	class, err := s.classifier.Classify(ctx, item.Title, item.Description)
	if err != nil {
		return nil, fmt.Errorf("%w: classify: %w", domain.ErrClassificationFailed, err)
	}

	now := time.Now().UTC()
	item.Embedding = vectors[0]
	item.Category = class.Category
	item.Subcategory = class.Subcategory
	item.ConfidenceScore = class.Confidence
	item.AITags = class.Tags
	item.RelevanceScore = s.scorer.Score(item.Title + " " + item.Description + " " + item.Body)
	item.Status = domain.ContentStatusPending
	item.CreatedAt = now
	item.UpdatedAt = now
	item.Metadata = map[string]any{
		"word_count":            item.WordCount(),
		"has_image":             item.ImageURL != "",
		"classifier_confidence": class.Confidence,
		"embedding_model":       s.embedder.Model(),
	}
	return item, nil
}

// ValidateContent scores a classified item
func (s *IntakeService) ValidateContent(ctx context.Context, item *domain.ClassifiedContentItem) (*domain.ValidationResult, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: content item is required", domain.ErrInvalidInput)
	}
	return s.validation.Validate(ctx, item), nil
}

// StoreContent upserts the embedding into the vector index and then the record
// into the content store. When the second write fails for a new id the vector
// is removed again; if that fails too the stores have diverged and the error
// wraps ErrPersistenceInconsistency. A vector behind an existing record is
// left in place.
func (s *IntakeService) StoreContent(ctx context.Context, item *domain.ClassifiedContentItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("%w: content id is required", domain.ErrInvalidInput)
	}
	if want := s.embedder.Dimensions(); len(item.Embedding) != want {
		return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(item.Embedding), want)
	}

	existing, err := s.storedRecord(ctx, item.ID)
	if err != nil {
		return err
	}

	fields := map[string]any{
		"title":           item.Title,
		"category":        string(item.Category),
		"subcategory":     item.Subcategory,
		"relevance_score": item.RelevanceScore,
		"url":             item.OriginalURL,
	}
	if err := s.index.Upsert(ctx, item.ID, item.Embedding, fields); err != nil {
		return fmt.Errorf("upsert vector %s: %w", item.ID, err)
	}

	saveErr := s.contents.Save(ctx, item)
	if saveErr == nil {
		return nil
	}
	if existing != nil {
		return fmt.Errorf("save content %s: %w", item.ID, saveErr)
	}

	if err := s.index.Delete(ctx, item.ID); err != nil {
		s.logger.Error("PersistenceInconsistency: vector stored without content record",
			"content_id", item.ID,
			"save_error", saveErr,
			"compensation_error", err,
		)
		return fmt.Errorf("%w: content %s: %w", domain.ErrPersistenceInconsistency, item.ID, errors.Join(saveErr, err))
	}
	return fmt.Errorf("save content %s: %w", item.ID, saveErr)
}

// storedRecord returns the persisted record for id, or nil when there is none
func (s *IntakeService) storedRecord(ctx context.Context, id string) (*domain.ClassifiedContentItem, error) {
	existing, err := s.contents.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up content %s: %w", id, err)
	}
	return existing, nil
}

// ProcessForAutoApproval publishes eligible items and queues the rest for review
func (s *IntakeService) ProcessForAutoApproval(ctx context.Context, item *domain.ClassifiedContentItem, validation *domain.ValidationResult) (bool, error) {
	published, _, err := s.route(ctx, item, validation)
	return published, err
}

// route returns whether the item was published and the id of the decision event
func (s *IntakeService) route(ctx context.Context, item *domain.ClassifiedContentItem, validation *domain.ValidationResult) (bool, string, error) {
	if item == nil || validation == nil {
		return false, "", fmt.Errorf("%w: item and validation are required", domain.ErrInvalidInput)
	}

	existing, err := s.storedRecord(ctx, item.ID)
	if err != nil {
		return false, "", err
	}
	if existing != nil {
		return s.rerouteStored(ctx, item, existing, validation)
	}

	if validation.AutoApprovalEligible {
		item.MarkStatus(domain.ContentStatusPublished)
		err := s.StoreContent(ctx, item)
		if err == nil {
			s.syncLegacy(ctx, item)
			eventID := s.publishDecision(ctx, item, validation, domain.DecisionPublished)
			s.logger.Info("content auto-approved", "content_id", item.ID, "title", item.Title)
			return true, eventID, nil
		}
		s.logger.Error("auto-approval failed, falling back to review",
			"content_id", item.ID,
			"error", err,
		)
		if errors.Is(err, domain.ErrPersistenceInconsistency) {
			return false, "", err
		}
	}

	item.MarkStatus(domain.ContentStatusReview)
	if err := s.StoreContent(ctx, item); err != nil {
		return false, "", err
	}
	review := domain.NewReviewItem(item, validation)
	if err := s.reviews.Enqueue(ctx, review); err != nil {
		return false, "", fmt.Errorf("queue %s for review: %w", item.ID, err)
	}
	eventID := s.publishDecision(ctx, item, validation, domain.DecisionReview)

	s.logger.Info("content queued for review",
		"content_id", item.ID,
		"priority", review.Priority,
		"score", validation.Score,
		"issues", validation.Issues,
	)
	return false, eventID, nil
}

// rerouteStored handles an item whose id is already persisted. The stored
// record keeps its content; only its status may move from review to published.
// item is overwritten with the stored record so callers see what was kept.
func (s *IntakeService) rerouteStored(ctx context.Context, item, existing *domain.ClassifiedContentItem, validation *domain.ValidationResult) (bool, string, error) {
	embedding := item.Embedding
	*item = *existing
	item.Embedding = embedding

	if existing.Status == domain.ContentStatusPublished {
		s.logger.Info("content already published, record kept", "content_id", item.ID)
		return true, "", nil
	}

	if validation.AutoApprovalEligible {
		err := s.contents.UpdateStatus(ctx, item.ID, domain.ContentStatusPublished)
		if err == nil {
			item.MarkStatus(domain.ContentStatusPublished)
			s.syncLegacy(ctx, item)
			eventID := s.publishDecision(ctx, item, validation, domain.DecisionPublished)
			s.logger.Info("stored content auto-approved", "content_id", item.ID, "title", item.Title)
			return true, eventID, nil
		}
		s.logger.Error("auto-approval of stored content failed, keeping review status",
			"content_id", item.ID,
			"error", err,
		)
	}

	review := domain.NewReviewItem(item, validation)
	if err := s.reviews.Enqueue(ctx, review); err != nil {
		return false, "", fmt.Errorf("queue %s for review: %w", item.ID, err)
	}
	eventID := s.publishDecision(ctx, item, validation, domain.DecisionReview)
	s.logger.Info("stored content kept in review", "content_id", item.ID, "score", validation.Score)
	return false, eventID, nil
}

func (s *IntakeService) syncLegacy(ctx context.Context, item *domain.ClassifiedContentItem) {
	if s.legacy == nil {
		return
	}
	if err := s.legacy.Publish(ctx, item); err != nil {
		s.logger.Warn("legacy publish failed", "content_id", item.ID, "error", err)
	}
}

// publishDecision emits the CommunityNotification for a routing decision.
// Failures are logged; the decision itself stands.
func (s *IntakeService) publishDecision(ctx context.Context, item *domain.ClassifiedContentItem, validation *domain.ValidationResult, decision domain.Decision) string {
	if s.events == nil {
		return ""
	}
	draft := domain.EventDraft{
		EventType:     domain.EventTypeCommunityNotification,
		SourceDomain:  s.decisionSource,
		TargetDomains: s.decisionTargets,
		EventData: map[string]any{
			"content_id":       item.ID,
			"title":            item.Title,
			"category":         string(item.Category),
			"decision":         string(decision),
			"validation_score": validation.Score,
			"issues":           validation.Issues,
			"original_url":     item.OriginalURL,
		},
		LiberationRelevanceScore: int(math.Round(item.RelevanceScore * 100)),
		CulturalSensitivityCheck: len(validation.SafetyReasons) == 0,
	}

	id, err := s.events.PublishEvent(ctx, draft)
	if err != nil {
		s.logger.Warn("failed to publish intake decision",
			"content_id", item.ID,
			"decision", decision,
			"event_id", id,
			"error", err,
		)
	}
	return id
}

// Process runs one item through classification, validation and routing
func (s *IntakeService) Process(ctx context.Context, raw *domain.RawContentItem) (outcome *domain.IntakeOutcome, err error) {
	ctx, span := tracer.Start(ctx, "intake.Process")
	defer func() {
		if outcome != nil {
			span.SetAttributes(attribute.String("intake.decision", string(outcome.Decision)))
			s.recorder.RecordIntake(outcome.Decision)
		}
		endSpan(span, err)
	}()

	outcome = &domain.IntakeOutcome{Decision: domain.DecisionRejected}
	if raw != nil {
		outcome.ContentID = raw.ID
	}

	item, err := s.ClassifyContent(ctx, raw)
	if err != nil {
		outcome.Error = err.Error()
		s.logger.Warn("content classification failed, skipping item", "url", urlOf(raw), "error", err)
		return outcome, err
	}
	outcome.ContentID = item.ID
	outcome.Item = item
	span.SetAttributes(attribute.String("content.id", item.ID), attribute.String("content.category", string(item.Category)))

	validation, err := s.ValidateContent(ctx, item)
	if err != nil {
		outcome.Error = err.Error()
		return outcome, err
	}
	outcome.Validation = validation

	published, eventID, err := s.route(ctx, item, validation)
	if err != nil {
		outcome.Error = err.Error()
		return outcome, err
	}
	outcome.EventID = eventID
	if published {
		outcome.Decision = domain.DecisionPublished
	} else {
		outcome.Decision = domain.DecisionReview
	}
	return outcome, nil
}

// IngestBatch processes items one at a time with the configured delay between
// calls. A failed item is counted and the batch continues; cancellation stops it.
func (s *IntakeService) IngestBatch(ctx context.Context, items []*domain.RawContentItem) *domain.BatchResult {
	ctx, span := tracer.Start(ctx, "intake.IngestBatch", trace.WithAttributes(attribute.Int("batch.size", len(items))))
	defer span.End()

	result := &domain.BatchResult{Outcomes: make([]*domain.IntakeOutcome, 0, len(items))}
	for i, raw := range items {
		if i > 0 && s.callDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.callDelay):
			}
		}
		if ctx.Err() != nil {
			s.logger.Warn("batch cancelled", "processed", i, "total", len(items))
			break
		}
		outcome, _ := s.Process(ctx, raw)
		result.Add(outcome)
	}

	s.logger.Info("batch ingested",
		"total", result.Total,
		"published", result.Published,
		"pending_review", result.PendingReview,
		"errors", result.Errors,
	)
	return result
}

func urlOf(raw *domain.RawContentItem) string {
	if raw == nil {
		return ""
	}
	return raw.OriginalURL
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
