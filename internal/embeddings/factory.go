package embeddings

import (
	"fmt"

	"github.com/reiness/edos-jls-chatbot/internal/config"
	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// FromConfig builds a normalizing Provider for the configured backend.
func FromConfig(cfg config.EmbeddingConfig) (*Provider, error) {
	if cfg.Model == "" && cfg.Provider != config.ProviderHash {
		return nil, &domain.ConfigurationError{Key: "embedding.model", Msg: "an embedding model is required"}
	}

	var backend Embedder
	switch cfg.Provider {
	case config.ProviderGoogle:
		if cfg.APIKey == "" {
			return nil, &domain.ConfigurationError{
				Key: "embedding.api_key",
				Msg: fmt.Sprintf("set %s for Gemini embeddings", config.APIKeyEnvVar(cfg.Provider)),
			}
		}
		backend = NewGoogleEmbedder(cfg.APIKey, cfg.Model, cfg.Dimensions, cfg.BaseURL)
	case config.ProviderOpenAI:
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, &domain.ConfigurationError{
				Key: "embedding.api_key",
				Msg: fmt.Sprintf("set %s for OpenAI embeddings", config.APIKeyEnvVar(cfg.Provider)),
			}
		}
		backend = NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.Dimensions, cfg.BaseURL)
	case config.ProviderOllama:
		backend = NewOllamaEmbedder(cfg.Model, cfg.BaseURL)
	case config.ProviderHash:
		backend = NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, &domain.ConfigurationError{
			Key: "embedding.provider",
			Msg: fmt.Sprintf("unsupported embedding provider %q", cfg.Provider),
		}
	}
	return NewProvider(backend), nil
}
