package retriever

import (
	"errors"
	"fmt"

	"github.com/reiness/edos-jls-chatbot/internal/config"
	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/vectordb"
)

// ErrConflictingPolicy is returned when a request sets both top_k and threshold.
var ErrConflictingPolicy = errors.New("set either top_k or threshold, not both")

// Policy selects which scored passages are returned for a question.
type Policy interface {
	apply(ix *vectordb.Index, q []float32) ([]domain.RetrievedPassage, error)
	fmt.Stringer
}

// TopK returns exactly min(K, n) passages, best first.
type TopK struct {
	K int
}

func (p TopK) apply(ix *vectordb.Index, q []float32) ([]domain.RetrievedPassage, error) {
	if p.K < 1 {
		return nil, fmt.Errorf("top_k policy: %w", vectordb.ErrInvalidK)
	}
	return ix.Search(q, p.K)
}

func (p TopK) String() string { return fmt.Sprintf("top_k=%d", p.K) }

// ScoreThreshold returns every passage scoring at least Threshold, best first.
// An empty result is valid.
type ScoreThreshold struct {
	Threshold float32
}

func (p ScoreThreshold) apply(ix *vectordb.Index, q []float32) ([]domain.RetrievedPassage, error) {
	if ix.Len() == 0 {
		return []domain.RetrievedPassage{}, nil
	}
	all, err := ix.Search(q, ix.Len())
	if err != nil {
		return nil, err
	}
	n := 0
	for n < len(all) && all[n].Score >= p.Threshold {
		n++
	}
	return all[:n], nil
}

func (p ScoreThreshold) String() string { return fmt.Sprintf("threshold=%.2f", p.Threshold) }

// FromConfig returns the configured default policy.
func FromConfig(cfg config.RetrievalConfig) Policy {
	if cfg.Mode == config.RetrievalTopK {
		return TopK{K: cfg.TopK}
	}
	return ScoreThreshold{Threshold: float32(cfg.Threshold)}
}

// Resolve picks the policy for a single request: an explicit top_k or
// threshold wins over def. Setting both is an error.
func Resolve(topK *int, threshold *float64, def Policy) (Policy, error) {
	switch {
	case topK != nil && threshold != nil:
		return nil, ErrConflictingPolicy
	case topK != nil:
		if *topK < 1 {
			return nil, fmt.Errorf("top_k must be at least 1, got %d", *topK)
		}
		return TopK{K: *topK}, nil
	case threshold != nil:
		if *threshold < 0 || *threshold > 1 {
			return nil, fmt.Errorf("threshold must be between 0 and 1, got %g", *threshold)
		}
		return ScoreThreshold{Threshold: float32(*threshold)}, nil
	default:
		return def, nil
	}
}
