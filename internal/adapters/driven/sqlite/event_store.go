package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.EventStore = (*EventStore)(nil)

// ErrStoreClosed is returned after Close
var ErrStoreClosed = errors.New("event store closed")

// timeLayout is fixed-width so text comparison orders like time
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const eventsTable = "cross_domain_events"

var eventColumns = []string{
	"id", "event_type", "source_domain", "target_domains", "event_data",
	"journey_context", "community_impact_data", "processing_status",
	"liberation_relevance_score", "cultural_sensitivity_check",
	"community_consent_verified", "created_at", "processed_at",
}

// EventStore persists cross-domain events in SQLite.
// Meant for single-node deployments and tests; use the postgres store for multiple instances.
type EventStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewEventStore opens (or creates) the store.
// The path is a file path (e.g. "./ivor-events.db") or ":memory:" for tests.
func NewEventStore(path string) (*EventStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; also keeps ":memory:" on a single connection
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS cross_domain_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			source_domain TEXT NOT NULL,
			target_domains TEXT NOT NULL,
			event_data TEXT NOT NULL,
			journey_context TEXT,
			community_impact_data TEXT,
			processing_status TEXT NOT NULL,
			liberation_relevance_score INTEGER NOT NULL,
			cultural_sensitivity_check INTEGER NOT NULL,
			community_consent_verified INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			processed_at TEXT
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_status_created
		ON cross_domain_events(processing_status, created_at)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	return &EventStore{db: db}, nil
}

// Create inserts a new pending event
func (s *EventStore) Create(ctx context.Context, event *domain.CrossDomainEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	targets, err := json.Marshal(event.TargetDomains)
	if err != nil {
		return fmt.Errorf("marshal target_domains: %w", err)
	}
	data, err := json.Marshal(event.EventData)
	if err != nil {
		return fmt.Errorf("marshal event_data: %w", err)
	}
	journey, err := jsonText(event.JourneyContext)
	if err != nil {
		return fmt.Errorf("marshal journey_context: %w", err)
	}
	impact, err := jsonText(event.CommunityImpactData)
	if err != nil {
		return fmt.Errorf("marshal community_impact_data: %w", err)
	}

	query, args, err := sq.Insert(eventsTable).
		Columns(eventColumns...).
		Values(
			event.ID,
			string(event.EventType),
			event.SourceDomain,
			string(targets),
			string(data),
			journey,
			impact,
			string(event.ProcessingStatus),
			event.LiberationRelevanceScore,
			event.CulturalSensitivityCheck,
			event.CommunityConsentVerified,
			formatTime(event.CreatedAt),
			formatTimePtr(event.ProcessedAt),
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
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	query, args, err := sq.Select(eventColumns...).From(eventsTable).Where(sq.Eq{"id": id}).ToSql()
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

// Transition moves a pending event to a terminal status.
// The status predicate in the WHERE clause makes concurrent transitions race-free.
func (s *EventStore) Transition(ctx context.Context, id string, to domain.ProcessingStatus, at time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrStoreClosed
	}
	if !domain.ProcessingStatusPending.CanTransitionTo(to) {
		return false, fmt.Errorf("%w: pending -> %s", domain.ErrInvalidTransition, to)
	}

	query, args, err := sq.Update(eventsTable).
		Set("processing_status", string(to)).
		Set("processed_at", formatTime(at)).
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
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	builder := sq.Select(eventColumns...).
		From(eventsTable).
		Where(sq.Eq{"processing_status": string(domain.ProcessingStatusPending)}).
		Where(sq.Lt{"created_at": formatTime(olderThan)}).
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
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	query, args, err := sq.Select("id", "event_type", "processing_status", "liberation_relevance_score", "created_at", "processed_at").
		From(eventsTable).
		Where(sq.GtOrEq{"created_at": formatTime(since)}).
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
		var createdAt string
		var processedAt sql.NullString
		if err := rows.Scan(&e.ID, &e.EventType, &e.Status, &e.Score, &createdAt, &processedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if e.ProcessedAt, err = parseTimePtr(processedAt); err != nil {
			return nil, err
		}
		summaries = append(summaries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summaries: %w", err)
	}
	return summaries, nil
}

// Ping checks the database handle
func (s *EventStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *EventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.CrossDomainEvent, error) {
	var e domain.CrossDomainEvent
	var targets, data, createdAt string
	var journey, impact, processedAt sql.NullString

	if err := row.Scan(
		&e.ID,
		&e.EventType,
		&e.SourceDomain,
		&targets,
		&data,
		&journey,
		&impact,
		&e.ProcessingStatus,
		&e.LiberationRelevanceScore,
		&e.CulturalSensitivityCheck,
		&e.CommunityConsentVerified,
		&createdAt,
		&processedAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(targets), &e.TargetDomains); err != nil {
		return nil, fmt.Errorf("decode target_domains: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &e.EventData); err != nil {
		return nil, fmt.Errorf("decode event_data: %w", err)
	}
	if e.EventData == nil {
		e.EventData = map[string]any{}
	}
	if journey.Valid {
		if err := json.Unmarshal([]byte(journey.String), &e.JourneyContext); err != nil {
			return nil, fmt.Errorf("decode journey_context: %w", err)
		}
	}
	if impact.Valid {
		if err := json.Unmarshal([]byte(impact.String), &e.CommunityImpactData); err != nil {
			return nil, fmt.Errorf("decode community_impact_data: %w", err)
		}
	}

	var err error
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.ProcessedAt, err = parseTimePtr(processedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func jsonText(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
