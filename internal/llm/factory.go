package llm

import (
	"fmt"

	"github.com/reiness/edos-jls-chatbot/internal/config"
	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// FromConfig creates the generation provider described by cfg. Credentials
// are expected to be resolved already by config.Load. A positive
// RequestsPerMinute wraps the provider in a rate limiter.
func FromConfig(cfg config.GenerationConfig) (Provider, error) {
	if cfg.Model == "" {
		return nil, &domain.ConfigurationError{Key: "generation.model", Msg: "a generation model is required"}
	}

	var p Provider
	switch cfg.Provider {
	case config.ProviderOpenAI:
		if cfg.APIKey == "" && cfg.BaseURL == "" {
			return nil, missingKey(cfg.Provider)
		}
		p = NewOpenAIProvider(cfg.APIKey, cfg.Model, cfg.BaseURL)

	case config.ProviderGoogle:
		if cfg.APIKey == "" {
			return nil, missingKey(cfg.Provider)
		}
		p = NewGoogleProvider(cfg.APIKey, cfg.Model, cfg.BaseURL)

	case config.ProviderOllama:
		host := cfg.BaseURL
		if host == "" {
			host = config.DefaultOllamaHost
		}
		p = NewOllamaProvider(host, cfg.Model)

	default:
		return nil, &domain.ConfigurationError{
			Key: "generation.provider",
			Msg: fmt.Sprintf("unsupported provider type: %s", cfg.Provider),
		}
	}

	if cfg.RequestsPerMinute > 0 {
		p = NewRateLimitedProvider(p, cfg.RequestsPerMinute)
	}
	return p, nil
}

func missingKey(p config.ProviderType) error {
	return &domain.ConfigurationError{
		Key: "generation.api_key",
		Msg: fmt.Sprintf("%s environment variable is not set", config.APIKeyEnvVar(p)),
	}
}
