// Package retriever finds the passages relevant to a question.
package retriever

import (
	"context"
	"fmt"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/vectordb"
)

// QueryEmbedder embeds a single question. *embeddings.Provider satisfies it.
type QueryEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// IndexSource yields the index to query. It returns *domain.IndexNotFoundError
// when none is available.
type IndexSource interface {
	Index(ctx context.Context) (*vectordb.Index, error)
}

type Retriever struct {
	embedder QueryEmbedder
	indexes  IndexSource
}

func New(embedder QueryEmbedder, indexes IndexSource) *Retriever {
	return &Retriever{embedder: embedder, indexes: indexes}
}

// Retrieve embeds the question and applies policy against the current index.
// The index is resolved once, so a concurrent rebuild never mixes results
// from two generations.
func (r *Retriever) Retrieve(ctx context.Context, question string, policy Policy) ([]domain.RetrievedPassage, error) {
	ix, err := r.indexes.Index(ctx)
	if err != nil {
		return nil, err
	}

	q, err := r.embedder.EmbedOne(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := policy.apply(ix, q)
	if err != nil {
		return nil, fmt.Errorf("retrieve (%s): %w", policy, err)
	}
	return hits, nil
}
