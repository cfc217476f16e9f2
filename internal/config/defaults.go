package config

// ModelPreset names the default models for a provider.
type ModelPreset struct {
	Model          string
	EmbeddingModel string
}

var modelPresets = map[ProviderType]ModelPreset{
	ProviderGoogle: {Model: "gemini-2.5-flash", EmbeddingModel: "gemini-embedding-001"},
	ProviderOpenAI: {Model: "gpt-4o-mini", EmbeddingModel: "text-embedding-3-small"},
	ProviderOllama: {Model: "llama3", EmbeddingModel: "nomic-embed-text"},
}

// DefaultExcludes are glob patterns skipped during ingestion by default.
var DefaultExcludes = []string{
	"**/.*",
	"**/~$*",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  ProviderGoogle,
			Model:     "gemini-embedding-001",
			BatchSize: 50,
		},
		Generation: GenerationConfig{
			Provider:    ProviderGoogle,
			Model:       "gemini-2.5-flash",
			Temperature: 0.1,
		},
		Paths: PathsConfig{
			SourceDir: "data/source_documents",
			ChunksDir: "data/processed/chunks",
			IndexDir:  "data/processed/index",
			HistoryDB: "data/processed/history.db",
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalConfig{
			Mode:      RetrievalThreshold,
			TopK:      5,
			Threshold: 0.75,
		},
		Composer: ComposerConfig{
			SnippetLength:  350,
			TokenizerModel: "gpt-4o",
		},
		Source: SourceConfig{
			Exclude: DefaultExcludes,
		},
		Server: ServerConfig{
			Port: 8080,
		},
	}
}

// GetPreset returns the default models for the given provider, falling back
// to the Google preset.
func GetPreset(provider ProviderType) ModelPreset {
	if preset, ok := modelPresets[provider]; ok {
		return preset
	}
	return modelPresets[ProviderGoogle]
}
