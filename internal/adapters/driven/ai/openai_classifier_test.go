package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blkout/ivor-core/internal/core/domain"
)

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json_object", req.ResponseFormat["type"])
		assert.Len(t, req.Messages, 2)

		resp := chatResponse{}
		resp.Choices = append(resp.Choices, struct {
			Message chatMessage `json:"message"`
		}{Message: chatMessage{Role: "assistant", Content: content}})
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestOpenAIClassifier_Classify(t *testing.T) {
	server := chatServer(t, `{"category":"Event","subcategory":"workshop","confidence":0.92,"tags":["organizing"]}`)
	defer server.Close()

	c, err := NewOpenAIClassifier("sk-test", "", server.URL)
	require.NoError(t, err)

	got, err := c.Classify(context.Background(), "Community organizing workshop", "Join us")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryEvent, got.Category)
	assert.Equal(t, "workshop", got.Subcategory)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)
	assert.Equal(t, []string{"organizing"}, got.Tags)
}

func TestOpenAIClassifier_UnparseableAnswerFallsBack(t *testing.T) {
	server := chatServer(t, "I think this is an article")
	defer server.Close()

	c, err := NewOpenAIClassifier("sk-test", "", server.URL)
	require.NoError(t, err)

	got, err := c.Classify(context.Background(), "title", "desc")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultClassification().Category, got.Category)
	assert.Equal(t, "general", got.Subcategory)
	assert.Equal(t, 0.5, got.Confidence)
}

func TestOpenAIClassifier_TransportError(t *testing.T) {
	c, err := NewOpenAIClassifier("sk-test", "", "http://localhost:99999")
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "title", "desc")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestParseClassification_ClampsConfidence(t *testing.T) {
	got := parseClassification(`{"category":"podcast","confidence":1.7}`)
	assert.Equal(t, domain.CategoryArticle, got.Category)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, "general", got.Subcategory)

	got = parseClassification(`{"category":"news","confidence":-2}`)
	assert.Equal(t, 0.0, got.Confidence)
}
