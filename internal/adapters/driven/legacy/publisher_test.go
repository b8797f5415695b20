package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkout/ivor-core/internal/core/domain"
)

type recorded struct {
	path string
	body map[string]any
}

func newRecordingServer(t *testing.T, status int) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var reqs []recorded
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		reqs = append(reqs, recorded{path: r.URL.Path, body: body})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), reqs...)
	}
}

func item(category domain.Category) *domain.ClassifiedContentItem {
	published := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	return &domain.ClassifiedContentItem{
		RawContentItem: domain.RawContentItem{
			ID:          "content_1",
			Title:       "Black Queer Organisers Weekend",
			Description: "A weekend gathering",
			Body:        "Full programme",
			PublishedAt: &published,
		},
		Category:    category,
		Subcategory: "gathering",
	}
}

func TestPublisher_EventGoesToEvents(t *testing.T) {
	server, requests := newRecordingServer(t, http.StatusCreated)
	p := NewPublisher(DefaultConfig(server.URL + "/api/"))

	require.NoError(t, p.Publish(context.Background(), item(domain.CategoryEvent)))

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/events", reqs[0].path)
	assert.Equal(t, "Black Queer Organisers Weekend", reqs[0].body["title"])
	assert.Equal(t, "A weekend gathering", reqs[0].body["description"])
	assert.Equal(t, "2025-06-01T18:00:00Z", reqs[0].body["date"])
	assert.Equal(t, "gathering", reqs[0].body["category"])
	assert.Equal(t, "published", reqs[0].body["status"])
	assert.Equal(t, map[string]any{"type": "online", "address": "Online"}, reqs[0].body["location"])
}

func TestPublisher_OtherCategoriesGoToArticles(t *testing.T) {
	server, requests := newRecordingServer(t, http.StatusOK)
	p := NewPublisher(DefaultConfig(server.URL))

	require.NoError(t, p.Publish(context.Background(), item(domain.CategoryNews)))

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/articles", reqs[0].path)
	assert.Equal(t, "A weekend gathering", reqs[0].body["excerpt"])
	assert.Equal(t, "Full programme", reqs[0].body["content"])
}

func TestPublisher_ErrorStatus(t *testing.T) {
	server, _ := newRecordingServer(t, http.StatusBadGateway)
	p := NewPublisher(DefaultConfig(server.URL))

	err := p.Publish(context.Background(), item(domain.CategoryArticle))
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrServiceUnavailable))
}

func TestPublisher_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	server, requests := newRecordingServer(t, http.StatusInternalServerError)
	cfg := DefaultConfig(server.URL)
	cfg.MinRequests = 3
	cfg.FailureThreshold = 0.5
	p := NewPublisher(cfg)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.Error(t, p.Publish(ctx, item(domain.CategoryArticle)))
	}
	assert.Equal(t, "open", p.State())

	err := p.Publish(ctx, item(domain.CategoryArticle))
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))
	assert.Len(t, requests(), 3, "open breaker must not reach the API")
}
