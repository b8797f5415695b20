package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blkout/ivor-core/internal/core/domain"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
)

// Ensure OpenAIClassifier implements Classifier
var _ driven.Classifier = (*OpenAIClassifier)(nil)

const classifierSystemPrompt = `You classify community content for a Black queer liberation platform.
Answer with a JSON object: {"category": one of "event","article","resource","news","community",
"subcategory": short label, "confidence": number between 0 and 1, "tags": up to 5 short tags}.`

// OpenAIClassifier implements Classifier using OpenAI chat completions in JSON mode
type OpenAIClassifier struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewOpenAIClassifier creates a new classifier
func NewOpenAIClassifier(apiKey, model, baseURL string) (*OpenAIClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrInvalidInput)
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClassifier{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// classifierAnswer is the JSON object the model is asked to produce
type classifierAnswer struct {
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Confidence  float64  `json:"confidence"`
	Tags        []string `json:"tags"`
}

// Classify classifies the given title and description.
// Transport and API errors are returned; an unparseable answer falls back to
// domain.DefaultClassification.
func (c *OpenAIClassifier) Classify(ctx context.Context, title, description string) (*domain.Classification, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: classifierSystemPrompt},
			{Role: "user", Content: "Title: " + title + "\nDescription: " + description},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	var resp chatResponse
	if err := postJSON(ctx, c.client, c.baseURL+"/chat/completions", c.apiKey, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned by classifier")
	}

	return parseClassification(resp.Choices[0].Message.Content), nil
}

func parseClassification(content string) *domain.Classification {
	var ans classifierAnswer
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &ans); err != nil || ans.Category == "" {
		def := domain.DefaultClassification()
		return &def
	}

	conf := ans.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	sub := ans.Subcategory
	if sub == "" {
		sub = "general"
	}
	return &domain.Classification{
		Category:    domain.ParseCategory(ans.Category),
		Subcategory: sub,
		Confidence:  conf,
		Tags:        ans.Tags,
	}
}

// Model returns the model name being used
func (c *OpenAIClassifier) Model() string {
	return c.model
}

// HealthCheck verifies the classifier is available
func (c *OpenAIClassifier) HealthCheck(ctx context.Context) error {
	_, err := c.Classify(ctx, "health check", "")
	return err
}
