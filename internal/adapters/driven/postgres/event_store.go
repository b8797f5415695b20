package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EventStore = (*EventStore)(nil)

const eventsTable = "cross_domain_events"

var eventColumns = []string{
	"id", "event_type", "source_domain", "target_domains", "event_data",
	"journey_context", "community_impact_data", "processing_status",
	"liberation_relevance_score", "cultural_sensitivity_check",
	"community_consent_verified", "created_at", "processed_at",
}

// EventStore implements driven.EventStore using PostgreSQL
type EventStore struct {
	db *DB
	sb sq.StatementBuilderType
}

// NewEventStore creates a new EventStore
func NewEventStore(db *DB) *EventStore {
	return &EventStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Create inserts a new pending event
func (s *EventStore) Create(ctx context.Context, event *domain.CrossDomainEvent) error {
	data, err := json.Marshal(event.EventData)
	if err != nil {
		return fmt.Errorf("marshal event_data: %w", err)
	}
	journey, err := jsonColumn(event.JourneyContext)
	if err != nil {
		return fmt.Errorf("marshal journey_context: %w", err)
	}
	impact, err := jsonColumn(event.CommunityImpactData)
	if err != nil {
		return fmt.Errorf("marshal community_impact_data: %w", err)
	}

	query, args, err := s.sb.Insert(eventsTable).
		Columns(eventColumns...).
		Values(
			event.ID,
			string(event.EventType),
			event.SourceDomain,
			pq.Array(nonNil(event.TargetDomains)),
			data,
			journey,
			impact,
			string(event.ProcessingStatus),
			event.LiberationRelevanceScore,
			event.CulturalSensitivityCheck,
			event.CommunityConsentVerified,
			event.CreatedAt,
			NullTime(event.ProcessedAt),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert event %s: %w", event.ID, err)
	}
	return nil
}

// Get retrieves an event by id
func (s *EventStore) Get(ctx context.Context, id string) (*domain.CrossDomainEvent, error) {
	query, args, err := s.sb.Select(eventColumns...).
		From(eventsTable).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	event, err := scanEvent(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query event %s: %w", id, err)
	}
	return event, nil
}

// Transition moves a pending event to a terminal status with a conditional update.
// Only one concurrent caller sees a row affected.
func (s *EventStore) Transition(ctx context.Context, id string, to domain.ProcessingStatus, at time.Time) (bool, error) {
	if !domain.ProcessingStatusPending.CanTransitionTo(to) {
		return false, fmt.Errorf("%w: pending -> %s", domain.ErrInvalidTransition, to)
	}

	query, args, err := s.sb.Update(eventsTable).
		Set("processing_status", string(to)).
		Set("processed_at", at).
		Where(sq.Eq{"id": id, "processing_status": string(domain.ProcessingStatusPending)}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition event %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows == 1, nil
}

// ListStalePending returns pending events created before olderThan, oldest first
func (s *EventStore) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*domain.CrossDomainEvent, error) {
	builder := s.sb.Select(eventColumns...).
		From(eventsTable).
		Where(sq.Eq{"processing_status": string(domain.ProcessingStatusPending)}).
		Where(sq.Lt{"created_at": olderThan}).
		OrderBy("created_at ASC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query stale events: %w", err)
	}
	defer rows.Close()

	var events []*domain.CrossDomainEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ListSince returns summaries of events created at or after since
func (s *EventStore) ListSince(ctx context.Context, since time.Time) ([]domain.EventSummary, error) {
	query, args, err := s.sb.Select("id", "event_type", "processing_status", "liberation_relevance_score", "created_at", "processed_at").
		From(eventsTable).
		Where(sq.GtOrEq{"created_at": since}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query event window: %w", err)
	}
	defer rows.Close()

	var summaries []domain.EventSummary
	for rows.Next() {
		var e domain.EventSummary
		var processedAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.EventType, &e.Status, &e.Score, &e.CreatedAt, &processedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		e.ProcessedAt = TimePtr(processedAt)
		summaries = append(summaries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

// Ping checks if the database is reachable
func (s *EventStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.CrossDomainEvent, error) {
	var e domain.CrossDomainEvent
	var data, journey, impact []byte
	var processedAt sql.NullTime

	if err := row.Scan(
		&e.ID,
		&e.EventType,
		&e.SourceDomain,
		pq.Array(&e.TargetDomains),
		&data,
		&journey,
		&impact,
		&e.ProcessingStatus,
		&e.LiberationRelevanceScore,
		&e.CulturalSensitivityCheck,
		&e.CommunityConsentVerified,
		&e.CreatedAt,
		&processedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if e.EventData, err = scanJSON(data); err != nil {
		return nil, fmt.Errorf("decode event_data: %w", err)
	}
	if e.EventData == nil {
		e.EventData = map[string]any{}
	}
	if e.JourneyContext, err = scanJSON(journey); err != nil {
		return nil, fmt.Errorf("decode journey_context: %w", err)
	}
	if e.CommunityImpactData, err = scanJSON(impact); err != nil {
		return nil, fmt.Errorf("decode community_impact_data: %w", err)
	}
	e.ProcessedAt = TimePtr(processedAt)
	return &e, nil
}
