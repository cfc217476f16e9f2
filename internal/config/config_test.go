package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY", "OLLAMA_HOST"} {
		t.Setenv(v, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Embedding.Provider != ProviderGoogle {
		t.Errorf("expected default embedding provider %q, got %q", ProviderGoogle, cfg.Embedding.Provider)
	}
	if cfg.Chunking.Size != 1000 || cfg.Chunking.Overlap != 200 {
		t.Errorf("unexpected chunking defaults %+v", cfg.Chunking)
	}
	if cfg.Embedding.BatchSize != 50 {
		t.Errorf("expected batch size 50, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.Retrieval.Mode != RetrievalThreshold || cfg.Retrieval.Threshold != 0.75 {
		t.Errorf("unexpected retrieval defaults %+v", cfg.Retrieval)
	}
	if cfg.Generation.Temperature != 0.1 {
		t.Errorf("expected temperature 0.1, got %f", cfg.Generation.Temperature)
	}
}

func TestSaveAndLoad(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.sopbot.yml")

	original := DefaultConfig()
	original.Generation.Provider = ProviderOpenAI
	original.Generation.Model = "gpt-4o"
	original.Retrieval.Mode = RetrievalTopK
	original.Retrieval.TopK = 3
	original.Paths.SourceDir = "docs/sops"
	original.Source.Exclude = []string{"drafts/**"}

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Generation.Provider != ProviderOpenAI {
		t.Errorf("generation.provider: got %q", loaded.Generation.Provider)
	}
	if loaded.Generation.Model != "gpt-4o" {
		t.Errorf("generation.model: got %q", loaded.Generation.Model)
	}
	if loaded.Retrieval.Mode != RetrievalTopK || loaded.Retrieval.TopK != 3 {
		t.Errorf("retrieval: got %+v", loaded.Retrieval)
	}
	if loaded.Paths.SourceDir != "docs/sops" {
		t.Errorf("paths.source_dir: got %q", loaded.Paths.SourceDir)
	}
	if len(loaded.Source.Exclude) != 1 || loaded.Source.Exclude[0] != "drafts/**" {
		t.Errorf("source.exclude: got %v", loaded.Source.Exclude)
	}
}

func TestSaveOmitsAPIKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yml")
	cfg := DefaultConfig()
	cfg.Embedding.APIKey = "secret-embed"
	cfg.Generation.APIKey = "secret-gen"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Errorf("saved config contains an API key:\n%s", data)
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.Embedding.Model != "gemini-embedding-001" {
		t.Errorf("expected default embedding model, got %q", cfg.Embedding.Model)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	clearKeyEnv(t)
	path := filepath.Join(t.TempDir(), "test.yml")
	if err := DefaultConfig().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("SOPBOT_EMBEDDING__MODEL", "text-embedding-3-large")
	t.Setenv("SOPBOT_CHUNKING__SIZE", "500")
	t.Setenv("SOPBOT_RETRIEVAL__THRESHOLD", "0.5")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Embedding.Model != "text-embedding-3-large" {
		t.Errorf("embedding.model override failed: got %q", loaded.Embedding.Model)
	}
	if loaded.Chunking.Size != 500 {
		t.Errorf("chunking.size override failed: got %d", loaded.Chunking.Size)
	}
	if loaded.Retrieval.Threshold != 0.5 {
		t.Errorf("retrieval.threshold override failed: got %f", loaded.Retrieval.Threshold)
	}
}

func TestLoadResolvesCredentials(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("OLLAMA_HOST", "gpu-box:11434")
	t.Setenv("SOPBOT_GENERATION__PROVIDER", "ollama")

	cfg, err := Load(filepath.Join(t.TempDir(), "none.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Embedding.APIKey != "google-key" {
		t.Errorf("embedding api key = %q", cfg.Embedding.APIKey)
	}
	if cfg.Generation.BaseURL != "http://gpu-box:11434" {
		t.Errorf("generation base url = %q", cfg.Generation.BaseURL)
	}

	t.Setenv("GEMINI_API_KEY", "gemini-key")
	cfg, err = Load(filepath.Join(t.TempDir(), "none.yml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Embedding.APIKey != "gemini-key" {
		t.Errorf("GEMINI_API_KEY should take precedence, got %q", cfg.Embedding.APIKey)
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}

	cfg.Embedding.Provider = ProviderHash
	cfg.Embedding.Model = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("hash embedder without model should be valid, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		mutate func(*Config)
	}{
		{"embedding provider", "embedding.provider", func(c *Config) { c.Embedding.Provider = "bogus" }},
		{"hash generation", "generation.provider", func(c *Config) { c.Generation.Provider = ProviderHash }},
		{"empty embedding model", "embedding.model", func(c *Config) { c.Embedding.Model = "" }},
		{"empty generation model", "generation.model", func(c *Config) { c.Generation.Model = "" }},
		{"zero batch", "embedding.batch_size", func(c *Config) { c.Embedding.BatchSize = 0 }},
		{"zero chunk size", "chunking.size", func(c *Config) { c.Chunking.Size = 0 }},
		{"overlap equals size", "chunking.overlap", func(c *Config) { c.Chunking.Overlap = c.Chunking.Size }},
		{"negative overlap", "chunking.overlap", func(c *Config) { c.Chunking.Overlap = -1 }},
		{"retrieval mode", "retrieval.mode", func(c *Config) { c.Retrieval.Mode = "mmr" }},
		{"top k zero", "retrieval.top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"threshold above one", "retrieval.threshold", func(c *Config) { c.Retrieval.Threshold = 1.5 }},
		{"snippet length", "composer.snippet_length", func(c *Config) { c.Composer.SnippetLength = 0 }},
		{"empty index dir", "paths.index_dir", func(c *Config) { c.Paths.IndexDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ce *domain.ConfigurationError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigurationError, got %v", err)
			}
			if ce.Key != tt.key {
				t.Errorf("Key = %q, want %q", ce.Key, tt.key)
			}
		})
	}
}

func TestGetPreset(t *testing.T) {
	if p := GetPreset(ProviderOpenAI); p.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("expected text-embedding-3-small, got %q", p.EmbeddingModel)
	}
	// Unknown provider falls back to Google.
	if p := GetPreset("unknown"); p.Model != "gemini-2.5-flash" {
		t.Errorf("expected fallback to gemini-2.5-flash, got %q", p.Model)
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderGoogle, "GEMINI_API_KEY"},
		{ProviderOllama, ""},
		{ProviderHash, ""},
	}
	for _, tt := range tests {
		if got := APIKeyEnvVar(tt.provider); got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"drafts/**", []string{"drafts/**"}},
		{"", nil},
		{"  ,  , ", nil},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) len = %d, want %d", tt.input, len(got), len(tt.want))
			continue
		}
		for i, v := range got {
			if v != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
			}
		}
	}
}
