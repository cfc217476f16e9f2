package domain

import "time"

// Default metadata values applied when a manifest entry leaves a field empty.
const (
	DefaultTitle   = "Unknown Title"
	DefaultSection = "Uncategorized"
	DefaultAuthor  = "Unknown Author"
	DefaultDate    = "Unknown Date"
)

// DocumentMeta describes one source document as listed in the acquisition manifest.
type DocumentMeta struct {
	Title         string `json:"title"`
	Section       string `json:"section"`
	Author        string `json:"author"`
	Date          string `json:"date"`
	Link          string `json:"link"`
	LocalFilename string `json:"local_filename" validate:"required"`
}

// WithDefaults returns a copy of m with empty descriptive fields filled in.
func (m DocumentMeta) WithDefaults() DocumentMeta {
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	if m.Section == "" {
		m.Section = DefaultSection
	}
	if m.Author == "" {
		m.Author = DefaultAuthor
	}
	if m.Date == "" {
		m.Date = DefaultDate
	}
	return m
}

// Passage is a contiguous span of normalized text from one document, the unit of retrieval.
// CharStart and CharEnd are character (code point) offsets into the normalized document
// text, end-exclusive.
type Passage struct {
	ID             int    `json:"id"`
	Title          string `json:"title"`
	Section        string `json:"section"`
	Author         string `json:"author"`
	Date           string `json:"date"`
	Link           string `json:"link"`
	SourceFilename string `json:"source_filename"`
	CharStart      int    `json:"char_start"`
	CharEnd        int    `json:"char_end"`
	Heading        string `json:"heading,omitempty"`
	Text           string `json:"text"`
}

// RetrievedPassage pairs a passage with its similarity to the query.
type RetrievedPassage struct {
	Passage Passage `json:"passage"`
	Score   float32 `json:"score"`
}

// SourceCitation attributes part of an answer to a retrieved passage.
type SourceCitation struct {
	PassageID      int     `json:"passage_id"`
	Title          string  `json:"title"`
	Section        string  `json:"section"`
	Link           string  `json:"link"`
	SourceFilename string  `json:"source_filename"`
	Snippet        string  `json:"snippet"`
	Score          float32 `json:"score"`
}

// Answer is the composer's output.
type Answer struct {
	Text          string           `json:"answer"`
	Citations     []SourceCitation `json:"sources"`
	ContextTokens int              `json:"context_tokens,omitempty"`
}

// ConversationTurn is one question and its grounded answer.
type ConversationTurn struct {
	ID            string           `json:"id"`
	SessionID     string           `json:"session_id,omitempty"`
	Query         string           `json:"query"`
	Answer        string           `json:"answer"`
	Sources       []SourceCitation `json:"sources"`
	ContextTokens int              `json:"context_tokens,omitempty"`
	Policy        string           `json:"policy,omitempty"`
	AskedAt       time.Time        `json:"asked_at"`
}
