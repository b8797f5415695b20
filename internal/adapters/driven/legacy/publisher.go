package legacy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.LegacyPublisher = (*Publisher)(nil)

// Config holds the legacy publishing API settings
type Config struct {
	// BaseURL is the API root, e.g. https://blkout-beta.vercel.app/api
	BaseURL string
	Timeout time.Duration

	// Breaker settings: trip once FailureThreshold of at least MinRequests fail
	MaxRequests      uint32
	Interval         time.Duration
	OpenTimeout      time.Duration
	FailureThreshold float64
	MinRequests      uint32

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		Timeout:          10 * time.Second,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		OpenTimeout:      60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Publisher forwards auto-approved content to the legacy events/articles API
// through a circuit breaker, so a dead legacy API costs one fast failure per item.
type Publisher struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewPublisher creates a legacy API client
func NewPublisher(cfg Config) *Publisher {
	defaults := DefaultConfig(cfg.BaseURL)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = defaults.MaxRequests
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = defaults.OpenTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = defaults.MinRequests
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &Publisher{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "legacy-api",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return p
}

type eventPayload struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Date        *time.Time     `json:"date"`
	Location    map[string]any `json:"location"`
	Category    string         `json:"category"`
	Status      string         `json:"status"`
}

type articlePayload struct {
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	Content  string `json:"content"`
	Category string `json:"category"`
	Status   string `json:"status"`
}

// Publish posts events to /events and everything else to /articles
func (p *Publisher) Publish(ctx context.Context, item *domain.ClassifiedContentItem) error {
	path, body := p.payload(item)

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal legacy payload: %w", err)
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.post(ctx, path, data)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: legacy api: %v", domain.ErrServiceUnavailable, err)
	}
	return err
}

func (p *Publisher) payload(item *domain.ClassifiedContentItem) (string, any) {
	if item.Category == domain.CategoryEvent {
		return "/events", eventPayload{
			Title:       item.Title,
			Description: item.Description,
			Date:        item.PublishedAt,
			Location:    map[string]any{"type": "online", "address": "Online"},
			Category:    item.Subcategory,
			Status:      string(domain.ContentStatusPublished),
		}
	}
	return "/articles", articlePayload{
		Title:    item.Title,
		Excerpt:  item.Description,
		Content:  item.Body,
		Category: item.Subcategory,
		Status:   string(domain.ContentStatusPublished),
	}
}

func (p *Publisher) post(ctx context.Context, path string, data []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("legacy api %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("legacy api %s failed: %s - %s", path, resp.Status, string(respBody))
	}
	return nil
}

// State reports the breaker state for health output
func (p *Publisher) State() string {
	return p.breaker.State().String()
}
