// Package chunker splits normalized document text into overlapping
// fixed-size passages.
package chunker

import "fmt"

// Span is one passage of a document. Start and End are character offsets
// into the input, End exclusive.
type Span struct {
	Start int
	End   int
	Text  string
}

// Split cuts text into consecutive spans of size characters, each starting
// size-overlap characters after the previous one. The last span is clipped to
// the end of the text, so spans tile the input with no gaps. When the overlap
// leaves no forward progress the step falls back to size.
//
// Split is deterministic for a given (text, size, overlap).
func Split(text string, size, overlap int) ([]Span, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must be non-negative, got %d", overlap)
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}

	step := size - overlap
	if step <= 0 {
		step = size
	}

	spans := make([]Span, 0, n/step+1)
	for start := 0; start < n; start += step {
		end := start + size
		if end > n {
			end = n
		}
		spans = append(spans, Span{
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
		if end == n {
			break
		}
	}
	return spans, nil
}
