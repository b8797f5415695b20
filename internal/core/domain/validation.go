package domain

import "math"

// Validation thresholds and deductions
const (
	MinTitleLength       = 10
	MinDescriptionLength = 50

	RelevanceThreshold    = 0.6
	AutoApproveScore      = 0.8
	AutoApproveRelevance  = 0.8
	ValidScoreThreshold   = 0.5
	DuplicateDistance     = 0.3
	DuplicateNeighbours   = 5
	HighPriorityThreshold = 0.6

	DeductionTitle       = 0.2
	DeductionDescription = 0.1
	DeductionRelevance   = 0.3
	DeductionDuplicate   = 0.4
	DeductionUnsafe      = 0.5
)

// Review queue priorities (lower is more urgent)
const (
	ReviewPriorityHigh   = 1
	ReviewPriorityNormal = 5
)

// Issue and recommendation messages
const (
	IssueTitle       = "Title too short or missing"
	IssueDescription = "Description too short or missing"
	IssueRelevance   = "Low relevance to BLKOUT community"
	IssueDuplicate   = "Potential duplicate content detected"
	IssueUnsafe      = "Content flagged by safety check"

	RecommendDescription = "Add a more detailed description"
)

// DuplicateMatch is the closest existing item within the duplicate distance
type DuplicateMatch struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// ValidationResult is the outcome of validating one classified item.
// Score is kept at two-decimal precision and is never negative.
type ValidationResult struct {
	IsValid              bool            `json:"is_valid"`
	Score                float64         `json:"score"`
	Issues               []string        `json:"issues"`
	Recommendations      []string        `json:"recommendations"`
	AutoApprovalEligible bool            `json:"auto_approval_eligible"`
	Duplicate            *DuplicateMatch `json:"duplicate,omitempty"`
	SafetyReasons        []string        `json:"safety_reasons,omitempty"`
}

// NewValidationResult starts a result at the full score
func NewValidationResult() *ValidationResult {
	return &ValidationResult{
		Score:           1.0,
		Issues:          []string{},
		Recommendations: []string{},
	}
}

// Deduct subtracts a penalty and records the issue
func (v *ValidationResult) Deduct(amount float64, issue string) {
	v.Score = RoundScore(v.Score - amount)
	v.Issues = append(v.Issues, issue)
}

// Recommend records a non-blocking suggestion
func (v *ValidationResult) Recommend(rec string) {
	v.Recommendations = append(v.Recommendations, rec)
}

// Finalize clamps the score and derives validity and auto-approval eligibility
func (v *ValidationResult) Finalize(relevance float64) {
	if v.Score < 0 {
		v.Score = 0
	}
	v.IsValid = v.Score >= ValidScoreThreshold
	v.AutoApprovalEligible = AutoApprovalEligible(v.Score, len(v.Issues), relevance)
}

// ReviewPriority maps the score to a review queue priority
func (v *ValidationResult) ReviewPriority() int {
	if v.Score < HighPriorityThreshold {
		return ReviewPriorityHigh
	}
	return ReviewPriorityNormal
}

// AutoApprovalEligible reports whether an item can be published without review
func AutoApprovalEligible(score float64, issues int, relevance float64) bool {
	return score >= AutoApproveScore && issues == 0 && relevance >= AutoApproveRelevance
}

// RoundScore rounds to two decimal places so repeated deductions stay exact
func RoundScore(f float64) float64 {
	return math.Round(f*100) / 100
}
