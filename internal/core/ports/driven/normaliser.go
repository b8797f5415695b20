package driven

// Normaliser turns scraped or submitted content into plain text before it is
// embedded and classified.
type Normaliser interface {
	Normalise(content string, mimeType string) string

	// SupportedTypes lists handled MIME types; "text/*" style wildcards are allowed.
	SupportedTypes() []string

	// Priority breaks ties between matching normalisers; higher wins.
	// HTML and Markdown use 50-89, the plain-text fallback 1-9.
	Priority() int
}

// NormaliserRegistry picks the highest priority normaliser for a MIME type.
type NormaliserRegistry interface {
	// Get returns nil when nothing is registered for mimeType
	Get(mimeType string) Normaliser
	Register(normaliser Normaliser)
	// Normalise returns content unchanged when no normaliser matches
	Normalise(content string, mimeType string) string
}
