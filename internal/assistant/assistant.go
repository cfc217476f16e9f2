// Package assistant wires retrieval and answer composition behind the two
// entry points the presentation layers use: BuildOrLoadIndex and AnswerQuery.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reiness/edos-jls-chatbot/internal/composer"
	"github.com/reiness/edos-jls-chatbot/internal/config"
	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/embeddings"
	"github.com/reiness/edos-jls-chatbot/internal/lifecycle"
	"github.com/reiness/edos-jls-chatbot/internal/llm"
	"github.com/reiness/edos-jls-chatbot/internal/retriever"
	"github.com/reiness/edos-jls-chatbot/internal/vectordb"
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is empty")

// Assistant answers questions over the SOP index.
type Assistant struct {
	indexes   *lifecycle.Manager
	retriever *retriever.Retriever
	composer  *composer.Composer
	policy    retriever.Policy
}

// New assembles an Assistant. def is used when a query names no policy.
func New(indexes *lifecycle.Manager, embedder retriever.QueryEmbedder, comp *composer.Composer, def retriever.Policy) *Assistant {
	return &Assistant{
		indexes:   indexes,
		retriever: retriever.New(embedder, indexes),
		composer:  comp,
		policy:    def,
	}
}

// FromConfig builds the embedding and generation backends named in cfg and
// returns a ready Assistant. No index is loaded until first use.
func FromConfig(cfg *config.Config) (*Assistant, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	emb, err := embeddings.FromConfig(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	provider, err := llm.FromConfig(cfg.Generation)
	if err != nil {
		return nil, err
	}
	comp := composer.New(composer.NewLLMGenerator(provider, cfg.Generation),
		composer.WithSnippetLength(cfg.Composer.SnippetLength),
		composer.WithTokenCounter(composer.NewTiktokenCounter(cfg.Composer.TokenizerModel)),
	)
	return New(lifecycle.New(cfg.Paths, emb), emb, comp, retriever.FromConfig(cfg.Retrieval)), nil
}

// Indexes exposes the index lifecycle manager.
func (a *Assistant) Indexes() *lifecycle.Manager { return a.indexes }

// DefaultPolicy is the configured retrieval policy.
func (a *Assistant) DefaultPolicy() retriever.Policy { return a.policy }

// BuildOrLoadIndex loads the persisted index, building it from the chunk
// artifacts when absent or when force is set.
func (a *Assistant) BuildOrLoadIndex(ctx context.Context, force bool) (*vectordb.Index, error) {
	return a.indexes.BuildOrLoad(ctx, force)
}

// Search returns the passages policy selects for query, without generation.
// A nil policy means the default.
func (a *Assistant) Search(ctx context.Context, query string, policy retriever.Policy) ([]domain.RetrievedPassage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuestion
	}
	if policy == nil {
		policy = a.policy
	}
	return a.retriever.Retrieve(ctx, query, policy)
}

// AnswerQuery retrieves passages for question and composes a grounded
// answer. The returned turn has no ID; recording it is up to the caller.
func (a *Assistant) AnswerQuery(ctx context.Context, question string, policy retriever.Policy) (domain.ConversationTurn, error) {
	if policy == nil {
		policy = a.policy
	}
	hits, err := a.Search(ctx, question, policy)
	if err != nil {
		return domain.ConversationTurn{}, err
	}

	answer, err := a.composer.Compose(ctx, question, hits)
	if err != nil {
		return domain.ConversationTurn{}, fmt.Errorf("compose answer: %w", err)
	}

	return domain.ConversationTurn{
		Query:         question,
		Answer:        answer.Text,
		Sources:       answer.Citations,
		ContextTokens: answer.ContextTokens,
		Policy:        policy.String(),
		AskedAt:       time.Now(),
	}, nil
}
