// Package composer turns retrieved passages into a grounded answer with
// citations.
package composer

import (
	"context"
	"errors"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// Generator produces answer text from a rendered context block and question.
type Generator interface {
	Generate(ctx context.Context, contextBlock, question string) (string, error)
}

type Composer struct {
	gen        Generator
	tokens     TokenCounter
	snippetLen int
}

// Option configures a Composer.
type Option func(*Composer)

// WithSnippetLength sets the citation snippet length in characters.
func WithSnippetLength(n int) Option {
	return func(c *Composer) {
		if n > 0 {
			c.snippetLen = n
		}
	}
}

// WithTokenCounter reports the context size of each answer using tc.
func WithTokenCounter(tc TokenCounter) Option {
	return func(c *Composer) { c.tokens = tc }
}

func New(gen Generator, opts ...Option) *Composer {
	c := &Composer{gen: gen, snippetLen: DefaultSnippetLength}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compose generates an answer grounded in passages. Citations always come
// from the passages themselves, never from the generated text. With no
// passages the generator is not called and the NotAvailable answer is
// returned with no sources.
func (c *Composer) Compose(ctx context.Context, question string, passages []domain.RetrievedPassage) (domain.Answer, error) {
	if len(passages) == 0 {
		return domain.Answer{Text: NotAvailable, Citations: []domain.SourceCitation{}}, nil
	}

	block := ContextBlock(passages)
	text, err := c.gen.Generate(ctx, block, question)
	if err != nil {
		var be *domain.BackendCallError
		if errors.As(err, &be) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return domain.Answer{}, err
		}
		return domain.Answer{}, domain.NewBackendError("generator", "generate", nil, err)
	}

	answer := domain.Answer{Text: text, Citations: c.Citations(passages)}
	if c.tokens != nil {
		answer.ContextTokens = c.tokens.Count(RenderPrompt(block, question))
	}
	return answer, nil
}

// Citations builds one citation per passage, in relevance order.
func (c *Composer) Citations(passages []domain.RetrievedPassage) []domain.SourceCitation {
	out := make([]domain.SourceCitation, len(passages))
	for i, rp := range passages {
		p := rp.Passage
		out[i] = domain.SourceCitation{
			PassageID:      p.ID,
			Title:          p.Title,
			Section:        p.Section,
			Link:           p.Link,
			SourceFilename: p.SourceFilename,
			Snippet:        Snippet(p.Text, c.snippetLen),
			Score:          rp.Score,
		}
	}
	return out
}
