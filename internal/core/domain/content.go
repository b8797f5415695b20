package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Category is the content category assigned by the classifier
type Category string

const (
	CategoryEvent     Category = "event"
	CategoryArticle   Category = "article"
	CategoryResource  Category = "resource"
	CategoryNews      Category = "news"
	CategoryCommunity Category = "community"
)

// Categories lists every category the classifier may return
func Categories() []Category {
	return []Category{CategoryEvent, CategoryArticle, CategoryResource, CategoryNews, CategoryCommunity}
}

// ParseCategory maps a classifier label onto the fixed category set.
// Unknown labels fall back to article.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories() {
		if c == known {
			return c
		}
	}
	return CategoryArticle
}

// ContentStatus tracks where a classified item sits in the publish flow
type ContentStatus string

const (
	ContentStatusPending   ContentStatus = "pending"
	ContentStatusReview    ContentStatus = "review"
	ContentStatusPublished ContentStatus = "published"
)

// RawContentItem is a candidate piece of content as received from a scraper or submitter.
// It is transient and never persisted on its own.
type RawContentItem struct {
	ID          string     `json:"id,omitempty"`
	SourceID    string     `json:"source_id"`
	OriginalURL string     `json:"original_url" validate:"required,url"`
	Title       string     `json:"title" validate:"max=500"`
	Description string     `json:"description"`
	Body        string     `json:"body,omitempty"`
	Author      string     `json:"author,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	ImageURL    string     `json:"image_url,omitempty" validate:"omitempty,url"`

	// MimeType selects the normaliser for Body/Description (defaults to text/plain)
	MimeType string `json:"mime_type,omitempty"`
}

// ContentID derives the deduplication key for a source/URL pair.
func ContentID(sourceID, url string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(sourceID))
	h.Write([]byte{'\n'})
	h.Write([]byte(url))
	return "content_" + hex.EncodeToString(h.Sum(nil))
}

// AssignID sets the ID to the source/URL dedup key. A submitted ID is only
// accepted when it equals that key.
func (r *RawContentItem) AssignID() (string, error) {
	if r.SourceID == "" && r.OriginalURL == "" {
		return "", fmt.Errorf("%w: source_id or original_url is required", ErrInvalidInput)
	}
	id := ContentID(r.SourceID, r.OriginalURL)
	if r.ID != "" && r.ID != id {
		return "", fmt.Errorf("%w: id %q does not match source_id and original_url", ErrInvalidInput, r.ID)
	}
	r.ID = id
	return id, nil
}

// EmbeddingText is the text sent to the embedding capability
func (r *RawContentItem) EmbeddingText() string {
	return strings.TrimSpace(r.Title + " " + r.Description)
}

// Classification is the numeric contract of the external text classifier
type Classification struct {
	Category    Category `json:"category"`
	Subcategory string   `json:"subcategory"`
	Confidence  float64  `json:"confidence"`
	Tags        []string `json:"tags,omitempty"`
}

// DefaultClassification is used when the classifier answers with something unparseable
func DefaultClassification() Classification {
	return Classification{Category: CategoryArticle, Subcategory: "general", Confidence: 0.5}
}

// ClassifiedContentItem is a raw item enriched with classification, relevance and embedding.
// Only Status and UpdatedAt change after the first store.
type ClassifiedContentItem struct {
	RawContentItem

	Category        Category       `json:"category"`
	Subcategory     string         `json:"subcategory"`
	RelevanceScore  float64        `json:"relevance_score"`
	ConfidenceScore float64        `json:"confidence_score"`
	AITags          []string       `json:"ai_tags,omitempty"`
	Embedding       []float32      `json:"-"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	Status          ContentStatus  `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// WordCount counts whitespace-separated words in the title, description and body
func (c *ClassifiedContentItem) WordCount() int {
	return len(strings.Fields(c.Title + " " + c.Description + " " + c.Body))
}

// MarkStatus updates the publish status
func (c *ClassifiedContentItem) MarkStatus(status ContentStatus) {
	c.Status = status
	c.UpdatedAt = time.Now()
}
