package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// EnvPrefix prefixes every environment override. Nested keys are separated
// by a double underscore: SOPBOT_EMBEDDING__MODEL sets embedding.model.
const EnvPrefix = "SOPBOT_"

// DefaultOllamaHost is used when neither base_url nor OLLAMA_HOST is set.
const DefaultOllamaHost = "http://localhost:11434"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (SOPBOT_*), then resolves API keys.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	cfg.resolveCredentials()
	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// resolveCredentials fills API keys and hosts from the provider-specific
// environment variables unless an override already set them.
func (c *Config) resolveCredentials() {
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = apiKeyFromEnv(c.Embedding.Provider)
	}
	if c.Generation.APIKey == "" {
		c.Generation.APIKey = apiKeyFromEnv(c.Generation.Provider)
	}
	if c.Embedding.Provider == ProviderOllama && c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = ollamaHost()
	}
	if c.Generation.Provider == ProviderOllama && c.Generation.BaseURL == "" {
		c.Generation.BaseURL = ollamaHost()
	}
}

func apiKeyFromEnv(p ProviderType) string {
	switch p {
	case ProviderGoogle:
		if v := os.Getenv("GEMINI_API_KEY"); v != "" {
			return v
		}
		return os.Getenv("GOOGLE_API_KEY")
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	default:
		return ""
	}
}

func ollamaHost() string {
	if h := os.Getenv("OLLAMA_HOST"); h != "" {
		if !strings.HasPrefix(h, "http://") && !strings.HasPrefix(h, "https://") {
			h = "http://" + h
		}
		return h
	}
	return DefaultOllamaHost
}

// Save writes the configuration to the given YAML file path. API keys are
// never written.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validEmbeddingProviders = map[ProviderType]bool{
	ProviderGoogle: true,
	ProviderOpenAI: true,
	ProviderOllama: true,
	ProviderHash:   true,
}

var validGenerationProviders = map[ProviderType]bool{
	ProviderGoogle: true,
	ProviderOpenAI: true,
	ProviderOllama: true,
}

var validRetrievalModes = map[RetrievalMode]bool{
	RetrievalThreshold: true,
	RetrievalTopK:      true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if !validEmbeddingProviders[c.Embedding.Provider] {
		return invalid("embedding.provider", "invalid provider %q: must be one of google, openai, ollama, hash", c.Embedding.Provider)
	}
	if c.Embedding.Provider != ProviderHash && c.Embedding.Model == "" {
		return invalid("embedding.model", "model is required")
	}
	if c.Embedding.BatchSize < 1 {
		return invalid("embedding.batch_size", "must be at least 1")
	}
	if c.Embedding.Dimensions < 0 {
		return invalid("embedding.dimensions", "must be non-negative")
	}

	if !validGenerationProviders[c.Generation.Provider] {
		return invalid("generation.provider", "invalid provider %q: must be one of google, openai, ollama", c.Generation.Provider)
	}
	if c.Generation.Model == "" {
		return invalid("generation.model", "model is required")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return invalid("generation.temperature", "must be between 0 and 2")
	}

	if c.Chunking.Size < 1 {
		return invalid("chunking.size", "must be at least 1")
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return invalid("chunking.overlap", "must satisfy 0 <= overlap < size")
	}

	if !validRetrievalModes[c.Retrieval.Mode] {
		return invalid("retrieval.mode", "invalid mode %q: must be threshold or top_k", c.Retrieval.Mode)
	}
	if c.Retrieval.TopK < 1 {
		return invalid("retrieval.top_k", "must be at least 1")
	}
	if c.Retrieval.Threshold < 0 || c.Retrieval.Threshold > 1 {
		return invalid("retrieval.threshold", "must be between 0 and 1")
	}

	if c.Composer.SnippetLength < 1 {
		return invalid("composer.snippet_length", "must be at least 1")
	}

	if c.Paths.ChunksDir == "" {
		return invalid("paths.chunks_dir", "is required")
	}
	if c.Paths.IndexDir == "" {
		return invalid("paths.index_dir", "is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port", "must be a valid TCP port")
	}

	return nil
}

func invalid(key, format string, args ...any) error {
	return &domain.ConfigurationError{Key: key, Msg: fmt.Sprintf(format, args...)}
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GEMINI_API_KEY"
	default:
		return ""
	}
}
