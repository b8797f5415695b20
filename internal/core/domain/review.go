package domain

import (
	"strings"
	"time"
)

// ReviewItem is an entry in the human moderation queue
type ReviewItem struct {
	ID              string    `json:"id"`
	ContentID       string    `json:"content_id"`
	Title           string    `json:"title"`
	OriginalURL     string    `json:"original_url"`
	Category        Category  `json:"category"`
	Priority        int       `json:"priority"`
	Score           float64   `json:"score"`
	Issues          []string  `json:"issues"`
	Recommendations []string  `json:"recommendations"`
	CreatedAt       time.Time `json:"created_at"`
}

// ReviewID is the moderation entry id for a content id. One entry per content.
func ReviewID(contentID string) string {
	return "review_" + strings.TrimPrefix(contentID, "content_")
}

// NewReviewItem builds a review entry for an item that failed auto-approval
func NewReviewItem(item *ClassifiedContentItem, v *ValidationResult) *ReviewItem {
	return &ReviewItem{
		ID:              ReviewID(item.ID),
		ContentID:       item.ID,
		Title:           item.Title,
		OriginalURL:     item.OriginalURL,
		Category:        item.Category,
		Priority:        v.ReviewPriority(),
		Score:           v.Score,
		Issues:          v.Issues,
		Recommendations: v.Recommendations,
		CreatedAt:       time.Now().UTC(),
	}
}

// Decision is the routing outcome for one item
type Decision string

const (
	DecisionPublished Decision = "published"
	DecisionReview    Decision = "review"
	DecisionRejected  Decision = "error"
)

// IntakeOutcome is the result of running one raw item through the pipeline
type IntakeOutcome struct {
	ContentID  string                 `json:"content_id"`
	Decision   Decision               `json:"decision"`
	Item       *ClassifiedContentItem `json:"item,omitempty"`
	Validation *ValidationResult      `json:"validation,omitempty"`
	EventID    string                 `json:"event_id,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// BatchResult summarises a batch ingestion
type BatchResult struct {
	Total         int              `json:"total"`
	Published     int              `json:"published"`
	PendingReview int              `json:"pending_review"`
	Errors        int              `json:"errors"`
	Outcomes      []*IntakeOutcome `json:"outcomes"`
}

// Add records one outcome
func (b *BatchResult) Add(o *IntakeOutcome) {
	b.Total++
	switch o.Decision {
	case DecisionPublished:
		b.Published++
	case DecisionReview:
		b.PendingReview++
	default:
		b.Errors++
	}
	b.Outcomes = append(b.Outcomes, o)
}
