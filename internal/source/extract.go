package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/reiness/edos-jls-chatbot/internal/normalize"
)

// Document is the raw text of one source file plus whatever heading hints the
// format provides.
type Document struct {
	// Text is the raw extracted text, lines separated by '\n'.
	Text string
	// Runs carry font sizes for formats that have them (PDF).
	Runs []normalize.TextRun
	// Headings are explicit headings for structured formats (Markdown).
	Headings []string
}

// Extractor pulls text out of one file format.
type Extractor interface {
	Extract(path string) (Document, error)
}

var extractors = map[string]Extractor{
	".pdf":      PDFExtractor{},
	".md":       MarkdownExtractor{},
	".markdown": MarkdownExtractor{},
	".txt":      TextExtractor{},
}

// ExtractorFor picks an extractor by file extension.
func ExtractorFor(path string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if e, ok := extractors[ext]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("unsupported document type %q", ext)
}

// Extract reads path with the extractor for its extension.
func Extract(path string) (Document, error) {
	e, err := ExtractorFor(path)
	if err != nil {
		return Document{}, err
	}
	return e.Extract(path)
}

// DetectHeadings returns the heading candidates for doc: explicit headings
// when present, then font-size headings, then line-shape headings.
func (d Document) DetectHeadings() []string {
	if len(d.Headings) > 0 {
		return d.Headings
	}
	if h := normalize.FontHeadings(d.Runs); len(h) > 0 {
		return h
	}
	return normalize.LineHeadings(d.Text)
}

// TextExtractor reads plain UTF-8 text.
type TextExtractor struct{}

func (TextExtractor) Extract(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	return Document{Text: strings.ToValidUTF8(string(data), "�")}, nil
}
