package services

import (
	"context"
	"log/slog"

	"github.com/blkout/ivor-core/internal/core/domain"
)

// DomainNotifications is the consumer domain for intake decision notifications
const DomainNotifications = "notifications"

// defaultSubscriptions lists the event types each built-in consumer domain handles
var defaultSubscriptions = []struct {
	domain string
	action string
	types  []domain.EventType
}{
	{domain.DomainCore, "update journey insights", []domain.EventType{
		domain.EventTypeCommunityInsight, domain.EventTypeResourceRequest, domain.EventTypeProjectUpdate,
	}},
	{domain.DomainCommunity, "celebrate with the community", []domain.EventType{
		domain.EventTypePersonalAchievement, domain.EventTypeProjectUpdate, domain.EventTypeSocialShare,
	}},
	{domain.DomainOrganizing, "route to organizing projects", []domain.EventType{
		domain.EventTypeCommunityInsight, domain.EventTypePersonalAchievement, domain.EventTypeResourceRequest,
	}},
	{domain.DomainSocial, "queue for amplification", []domain.EventType{
		domain.EventTypeProjectUpdate, domain.EventTypePersonalAchievement, domain.EventTypeCommunityInsight,
	}},
	{DomainNotifications, "record intake decision", []domain.EventType{
		domain.EventTypeCommunityNotification,
	}},
}

// RegisterDefaultHandlers registers the built-in consumer domain handlers.
// They only log, so repeated delivery has no further effect.
func RegisterDefaultHandlers(registry *HandlerRegistry, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ids := make([]string, 0, len(defaultSubscriptions))
	for _, sub := range defaultSubscriptions {
		id, err := registry.Register(sub.domain, sub.types, loggingHandler(logger, sub.domain, sub.action), 1)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func loggingHandler(logger *slog.Logger, handlerDomain, action string) domain.HandlerFunc {
	return func(ctx context.Context, event *domain.CrossDomainEvent) error {
		logger.InfoContext(ctx, "domain handler",
			"domain", handlerDomain,
			"action", action,
			"event_id", event.ID,
			"event_type", event.EventType,
			"source_domain", event.SourceDomain,
			"score", event.LiberationRelevanceScore,
		)
		return nil
	}
}
