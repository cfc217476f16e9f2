package composer

import (
	"fmt"
	"strings"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// NotAvailable is the answer given when no passage was retrieved.
const NotAvailable = "I'm sorry, but the information needed to answer this question is not available in the provided SOPs."

const blockSeparator = "\n\n---\n\n"

const promptTemplate = `You are an expert assistant for our company. Answer questions using ONLY the context below, which is taken from the company's Standard Operating Procedures (SOPs).

Follow these rules:
1. Synthesize information from all of the context snippets into one complete, thorough response.
2. If the question asks how to do something, give a clear step-by-step guide.
3. Answer the question fully. Do not leave out details that are present in the context; prefer detail over brevity.
4. If the context does not contain the answer, state that the information is not available in the provided SOPs. Do not use any external knowledge.
5. After the answer, cite the source documents you used, one per line, each with its title and link.

CONTEXT:
%s

QUESTION:
%s

ANSWER:
[Your detailed, step-by-step answer based only on the context]

SOURCES:
- [Source Document Title](Link)
`

// ContextBlock renders passages, in relevance order, as the context section
// of the prompt.
func ContextBlock(passages []domain.RetrievedPassage) string {
	blocks := make([]string, len(passages))
	for i, rp := range passages {
		p := rp.Passage
		var sb strings.Builder
		fmt.Fprintf(&sb, "Source Document: %s\n", p.Title)
		fmt.Fprintf(&sb, "Section: %s\n", p.Section)
		if p.Heading != "" {
			fmt.Fprintf(&sb, "Heading: %s\n", p.Heading)
		}
		fmt.Fprintf(&sb, "Author: %s, Date: %s\n", p.Author, p.Date)
		fmt.Fprintf(&sb, "Content Snippet: %s", p.Text)
		blocks[i] = sb.String()
	}
	return strings.Join(blocks, blockSeparator)
}

// RenderPrompt fills the instruction template.
func RenderPrompt(contextBlock, question string) string {
	return fmt.Sprintf(promptTemplate, contextBlock, question)
}
