// Package embeddings turns text into unit-length vectors. Backends talk to a
// concrete embedding service; Provider adds the guarantees callers rely on.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// Embedder is an embedding backend. Implementations return one raw vector per
// input text, in input order. They do not retry or batch internally.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// normEpsilon keeps a degenerate all-zero embedding at zero instead of NaN.
const normEpsilon = 1e-10

// Provider wraps a backend and L2-normalizes everything it returns, so inner
// product equals cosine similarity downstream.
type Provider struct {
	backend Embedder
}

// NewProvider wraps the given backend.
func NewProvider(backend Embedder) *Provider {
	return &Provider{backend: backend}
}

// Name returns the backend's model identifier.
func (p *Provider) Name() string {
	return p.backend.Name()
}

// EmbedBatch embeds texts and normalizes each vector. An empty input returns
// an empty result without calling the backend. Any backend failure or
// malformed response fails the whole batch with a *domain.BackendCallError.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	raw, err := p.backend.Embed(ctx, texts)
	if err != nil {
		var be *domain.BackendCallError
		if errors.As(err, &be) {
			return nil, err
		}
		return nil, domain.NewBackendError(p.backend.Name(), "embed", nil, err)
	}
	if len(raw) != len(texts) {
		return nil, domain.NewBackendError(p.backend.Name(), "embed", nil,
			fmt.Errorf("returned %d vectors for %d texts", len(raw), len(texts)))
	}

	dim := 0
	for _, v := range raw {
		if len(v) > dim {
			dim = len(v)
		}
	}
	if dim == 0 {
		return nil, domain.NewBackendError(p.backend.Name(), "embed", nil, errors.New("backend returned only empty vectors"))
	}

	out := make([][]float32, len(raw))
	for i, v := range raw {
		switch len(v) {
		case dim:
			out[i] = Normalize(v)
		case 0:
			// Empty input may come back empty; keep it as the all-zero vector.
			out[i] = make([]float32, dim)
		default:
			return nil, domain.NewBackendError(p.backend.Name(), "embed", nil,
				fmt.Errorf("vector %d has dimension %d, batch dimension is %d", i, len(v), dim))
		}
	}
	return out, nil
}

// EmbedOne embeds a single text.
func (p *Provider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Normalize returns v / (‖v‖ + 1e-10) as a new slice.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum) + normEpsilon
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
