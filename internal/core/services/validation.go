package services

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/blkout/ivor-core/internal/core/domain"
)

// ValidationEngine scores a classified item and decides auto-approval eligibility
type ValidationEngine struct {
	duplicates *DuplicateDetector
	safety     *SafetyScreener
	logger     *slog.Logger
}

// ValidationEngineConfig holds dependencies for the validation engine
type ValidationEngineConfig struct {
	Duplicates *DuplicateDetector
	Safety     *SafetyScreener
	Logger     *slog.Logger
}

// NewValidationEngine creates a new validation engine
func NewValidationEngine(cfg ValidationEngineConfig) *ValidationEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	safety := cfg.Safety
	if safety == nil {
		safety = NewSafetyScreener(nil)
	}
	return &ValidationEngine{
		duplicates: cfg.Duplicates,
		safety:     safety,
		logger:     logger,
	}
}

// Validate applies the deductions in a fixed order:
// title, description, relevance, duplicate, safety.
// A failed duplicate lookup is logged and treated as no duplicate.
func (v *ValidationEngine) Validate(ctx context.Context, item *domain.ClassifiedContentItem) *domain.ValidationResult {
	result := domain.NewValidationResult()

	if utf8.RuneCountInString(strings.TrimSpace(item.Title)) < domain.MinTitleLength {
		result.Deduct(domain.DeductionTitle, domain.IssueTitle)
	}

	if utf8.RuneCountInString(strings.TrimSpace(item.Description)) < domain.MinDescriptionLength {
		result.Deduct(domain.DeductionDescription, domain.IssueDescription)
		result.Recommend(domain.RecommendDescription)
	}

	if item.RelevanceScore < domain.RelevanceThreshold {
		result.Deduct(domain.DeductionRelevance, domain.IssueRelevance)
	}

	if v.duplicates != nil {
		match, err := v.duplicates.FindDuplicate(ctx, item.ID, item.Embedding)
		if err != nil {
			v.logger.Warn("duplicate check failed, treating as unique",
				"content_id", item.ID,
				"error", err,
			)
		} else if match != nil {
			result.Duplicate = match
			result.Deduct(domain.DeductionDuplicate, domain.IssueDuplicate)
		}
	}

	safe, reasons := v.safety.Screen(item.Title + " " + item.Description + " " + item.Body)
	if !safe {
		result.SafetyReasons = reasons
		result.Deduct(domain.DeductionUnsafe, domain.IssueUnsafe)
	}

	result.Finalize(item.RelevanceScore)
	return result
}
