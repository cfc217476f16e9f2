package vectordb

import (
	"fmt"
	"strings"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// FormatResults renders search results as human-readable text.
func FormatResults(results []domain.RetrievedPassage) string {
	if len(results) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n\n", len(results)))

	for i, r := range results {
		p := r.Passage
		sb.WriteString(fmt.Sprintf("--- Result %d (score: %.4f) ---\n", i+1, r.Score))
		sb.WriteString(fmt.Sprintf("Document: %s\n", p.Title))
		if p.Section != "" {
			sb.WriteString(fmt.Sprintf("Section: %s\n", p.Section))
		}
		if p.Heading != "" {
			sb.WriteString(fmt.Sprintf("Heading: %s\n", p.Heading))
		}
		sb.WriteString(fmt.Sprintf("File: %s [%d:%d]\n", p.SourceFilename, p.CharStart, p.CharEnd))
		if p.Link != "" {
			sb.WriteString(fmt.Sprintf("Link: %s\n", p.Link))
		}

		sb.WriteString("\n")
		sb.WriteString(p.Text)
		sb.WriteString("\n\n")
	}

	return sb.String()
}
