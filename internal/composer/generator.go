package composer

import (
	"context"

	"github.com/reiness/edos-jls-chatbot/internal/config"
	"github.com/reiness/edos-jls-chatbot/internal/llm"
)

// LLMGenerator renders the SOP prompt and sends it to an llm.Provider.
type LLMGenerator struct {
	provider    llm.Provider
	temperature float64
	maxTokens   int
}

func NewLLMGenerator(provider llm.Provider, cfg config.GenerationConfig) *LLMGenerator {
	return &LLMGenerator{
		provider:    provider,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, contextBlock, question string) (string, error) {
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: RenderPrompt(contextBlock, question)}},
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
