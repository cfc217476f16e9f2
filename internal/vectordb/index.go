// Package vectordb holds the in-memory passage index and its on-disk form.
package vectordb

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// ErrInvalidK is returned by Search when fewer than one result is requested.
var ErrInvalidK = errors.New("k must be at least 1")

// Info describes a built index. It is persisted as index.json.
type Info struct {
	Dimension int       `json:"dimension"`
	Count     int       `json:"count"`
	Embedder  string    `json:"embedder,omitempty"`
	BuiltAt   time.Time `json:"built_at"`
}

// Index is an immutable set of passages and their unit-length embeddings.
// Position i of the passage list and of the vector list describe the same
// passage. An Index is safe for concurrent readers.
type Index struct {
	passages []domain.Passage
	vectors  [][]float32
	info     Info
}

// Build creates an index from aligned passages and vectors. The slices are
// retained; callers must not modify them afterwards.
func Build(passages []domain.Passage, vectors [][]float32) (*Index, error) {
	if len(passages) != len(vectors) {
		return nil, &domain.DimensionMismatchError{
			Context: "passage count vs vector count",
			Want:    len(passages),
			Got:     len(vectors),
		}
	}

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &domain.DimensionMismatchError{
				Context: fmt.Sprintf("vector %d", i),
				Want:    dim,
				Got:     len(v),
			}
		}
	}

	return &Index{
		passages: passages,
		vectors:  vectors,
		info: Info{
			Dimension: dim,
			Count:     len(passages),
			BuiltAt:   time.Now().UTC().Truncate(time.Second),
		},
	}, nil
}

// WithEmbedder records the name of the model that produced the vectors.
func (ix *Index) WithEmbedder(name string) *Index {
	ix.info.Embedder = name
	return ix
}

func (ix *Index) Info() Info { return ix.info }

func (ix *Index) Dimension() int { return ix.info.Dimension }

func (ix *Index) Len() int { return len(ix.passages) }

// Passage returns the passage at position i.
func (ix *Index) Passage(i int) domain.Passage { return ix.passages[i] }

// Search returns the k passages whose vectors have the largest inner product
// with q, best first. Ties are broken by ascending passage ID. Fewer than k
// results are returned when the index is smaller than k.
//
// The scan is exact and brute force: O(n·d) per query over every stored
// vector.
func (ix *Index) Search(q []float32, k int) ([]domain.RetrievedPassage, error) {
	if k < 1 {
		return nil, ErrInvalidK
	}
	if len(ix.passages) == 0 {
		return []domain.RetrievedPassage{}, nil
	}
	if len(q) != ix.info.Dimension {
		return nil, &domain.DimensionMismatchError{
			Context: "query vector",
			Want:    ix.info.Dimension,
			Got:     len(q),
		}
	}

	scored := ix.scoreAll(q)
	if k > len(scored) {
		k = len(scored)
	}

	out := make([]domain.RetrievedPassage, k)
	for i := 0; i < k; i++ {
		out[i] = domain.RetrievedPassage{
			Passage: ix.passages[scored[i].pos],
			Score:   scored[i].score,
		}
	}
	return out, nil
}

type scoredPos struct {
	pos   int
	score float32
}

func (ix *Index) scoreAll(q []float32) []scoredPos {
	scored := make([]scoredPos, len(ix.vectors))
	for i, v := range ix.vectors {
		scored[i] = scoredPos{pos: i, score: dot(q, v)}
	}
	sort.Slice(scored, func(a, b int) bool {
		sa, sb := scored[a], scored[b]
		if sa.score != sb.score {
			return sa.score > sb.score
		}
		return ix.passages[sa.pos].ID < ix.passages[sb.pos].ID
	})
	return scored
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}
