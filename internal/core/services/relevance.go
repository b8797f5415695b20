package services

import (
	"strings"
)

// DefaultRelevanceKeywords is the community keyword list used when none is configured
var DefaultRelevanceKeywords = []string{
	"black", "queer", "lgbt", "lgbtq", "liberation", "organizing", "community",
	"activist", "activism", "social justice", "equality", "rights", "protest",
	"movement", "solidarity", "intersectional", "marginalized", "oppression",
	"empowerment", "collective", "mutual aid", "grassroots",
}

// RelevanceScorer scores text against a keyword list.
// score = min(1, matched/len(keywords) * 2), matching case-insensitive substrings.
type RelevanceScorer struct {
	keywords []string
}

// NewRelevanceScorer creates a scorer. An empty list falls back to DefaultRelevanceKeywords.
func NewRelevanceScorer(keywords []string) *RelevanceScorer {
	if len(keywords) == 0 {
		keywords = DefaultRelevanceKeywords
	}
	normalised := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			normalised = append(normalised, k)
		}
	}
	return &RelevanceScorer{keywords: normalised}
}

// Score returns the relevance of text in [0,1]
func (s *RelevanceScorer) Score(text string) float64 {
	if len(s.keywords) == 0 {
		return 0
	}
	text = strings.ToLower(text)
	matched := 0
	for _, k := range s.keywords {
		if strings.Contains(text, k) {
			matched++
		}
	}
	score := float64(matched) / float64(len(s.keywords)) * 2
	if score > 1 {
		return 1
	}
	return score
}

// Keywords returns the active keyword list
func (s *RelevanceScorer) Keywords() []string {
	out := make([]string, len(s.keywords))
	copy(out, s.keywords)
	return out
}
