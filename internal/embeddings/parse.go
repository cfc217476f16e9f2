package embeddings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// ErrUnrecognizedShape is wrapped by ParseResponse when no known layout matches.
var ErrUnrecognizedShape = errors.New("unrecognized embedding response shape")

// ParseResponse extracts vectors from a raw embedding API response. Known
// layouts are tried in order:
//
//	{"embeddings": [[...], ...]}               ollama /api/embed
//	{"embeddings": [{"values": [...]}, ...]}   gemini batchEmbedContents
//	{"embeddings": [{"embedding": [...]}]}
//	{"embedding": {"values": [...]}}           gemini embedContent
//	{"embedding": [...]}                       ollama /api/embeddings
//	{"data": [{"embedding": [...]}, ...]}      openai-compatible
//	{"results": [...]}
//	[[...], ...]
//
// Any other payload yields a *domain.BackendCallError carrying the start of the
// payload for diagnosis.
func ParseResponse(raw []byte) ([][]float32, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, parseError(raw, errors.New("empty response body"))
	}

	if raw[0] == '[' {
		vecs, err := parseItems(raw)
		if err != nil {
			return nil, parseError(raw, err)
		}
		return vecs, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, parseError(raw, err)
	}

	for _, key := range []string{"embeddings", "data", "results"} {
		field, ok := obj[key]
		if !ok {
			continue
		}
		vecs, err := parseItems(field)
		if err != nil {
			return nil, parseError(raw, fmt.Errorf("field %q: %w", key, err))
		}
		return vecs, nil
	}

	if field, ok := obj["embedding"]; ok {
		vec, err := parseItem(field)
		if err != nil {
			return nil, parseError(raw, fmt.Errorf("field %q: %w", "embedding", err))
		}
		return [][]float32{vec}, nil
	}

	return nil, parseError(raw, ErrUnrecognizedShape)
}

func parseItems(raw json.RawMessage) ([][]float32, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected a list: %w", err)
	}
	vecs := make([][]float32, 0, len(items))
	for i, item := range items {
		vec, err := parseItem(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		vecs = append(vecs, vec)
	}
	return vecs, nil
}

// parseItem accepts a bare number list or an object holding one under
// "values" or "embedding".
func parseItem(raw json.RawMessage) ([]float32, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrUnrecognizedShape
	}

	switch raw[0] {
	case '[':
		var nums []float64
		if err := json.Unmarshal(raw, &nums); err != nil {
			return nil, err
		}
		vec := make([]float32, len(nums))
		for i, x := range nums {
			vec[i] = float32(x)
		}
		return vec, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		for _, key := range []string{"values", "embedding"} {
			if inner, ok := obj[key]; ok {
				return parseItem(inner)
			}
		}
	}
	return nil, ErrUnrecognizedShape
}

func parseError(raw []byte, err error) error {
	return domain.NewBackendError("embedding", "parse response", raw, err)
}
