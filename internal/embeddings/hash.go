package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

const defaultHashDimensions = 256

// HashEmbedder is an offline embedder that hashes lower-cased words into a
// fixed number of signed buckets. It needs no network access, which makes it
// useful for air-gapped demos and tests, but it only captures word overlap.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a feature-hashing embedder with dims buckets
// (256 when dims <= 0).
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = defaultHashDimensions
	}
	return &HashEmbedder{dims: dims}
}

func (e *HashEmbedder) Name() string {
	return fmt.Sprintf("hash/%d", e.dims)
}

func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dims)
		for _, tok := range tokenize(text) {
			h := fnv.New64a()
			h.Write([]byte(tok))
			sum := h.Sum64()
			idx := sum % uint64(e.dims)
			if sum>>63 == 0 {
				vec[idx]++
			} else {
				vec[idx]--
			}
		}
		out[i] = vec
	}
	return out, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
