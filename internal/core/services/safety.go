package services

import (
	"strings"
)

// DefaultUnsafeTerms is the screening list used when none is configured
var DefaultUnsafeTerms = []string{"spam", "scam", "violence", "harassment"}

// SafetyScreener flags content containing any configured term
type SafetyScreener struct {
	terms []string
}

// NewSafetyScreener creates a screener. An empty list falls back to DefaultUnsafeTerms.
func NewSafetyScreener(terms []string) *SafetyScreener {
	if len(terms) == 0 {
		terms = DefaultUnsafeTerms
	}
	normalised := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			normalised = append(normalised, t)
		}
	}
	return &SafetyScreener{terms: normalised}
}

// Screen returns whether text is safe and, if not, one reason per matched term
func (s *SafetyScreener) Screen(text string) (bool, []string) {
	text = strings.ToLower(text)
	var reasons []string
	for _, t := range s.terms {
		if strings.Contains(text, t) {
			reasons = append(reasons, "Flagged pattern: "+t)
		}
	}
	return len(reasons) == 0, reasons
}
