package composer

import (
	"log"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many model tokens a text occupies.
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts with the BPE encoding of a model. The encoding is
// loaded on first use; if it cannot be loaded (tiktoken fetches its ranks on
// first run), counts fall back to a four-characters-per-token estimate.
type TiktokenCounter struct {
	model string
	once  sync.Once
	enc   *tiktoken.Tiktoken
}

func NewTiktokenCounter(model string) *TiktokenCounter {
	if model == "" {
		model = "gpt-4o"
	}
	return &TiktokenCounter{model: model}
}

func (c *TiktokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			log.Printf("composer: tokenizer for %s unavailable, estimating: %v", c.model, err)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return EstimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// EstimateTokens approximates token count as one token per four bytes.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
