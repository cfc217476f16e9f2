package config

// ProviderType identifies an embedding or generation backend.
type ProviderType string

const (
	ProviderGoogle ProviderType = "google"
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
	// ProviderHash is an offline feature-hashing embedder. Embedding only.
	ProviderHash ProviderType = "hash"
)

// RetrievalMode selects how passages are chosen for a question.
type RetrievalMode string

const (
	RetrievalThreshold RetrievalMode = "threshold"
	RetrievalTopK      RetrievalMode = "top_k"
)

// Config is the top-level sopbot configuration, corresponding to .sopbot.yml.
type Config struct {
	Embedding  EmbeddingConfig  `yaml:"embedding" koanf:"embedding"`
	Generation GenerationConfig `yaml:"generation" koanf:"generation"`
	Paths      PathsConfig      `yaml:"paths" koanf:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking" koanf:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" koanf:"retrieval"`
	Composer   ComposerConfig   `yaml:"composer" koanf:"composer"`
	Source     SourceConfig     `yaml:"source" koanf:"source"`
	Server     ServerConfig     `yaml:"server" koanf:"server"`
}

// EmbeddingConfig selects the embedding backend. APIKey is resolved from the
// environment at load time and never saved.
type EmbeddingConfig struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	BaseURL           string       `yaml:"base_url,omitempty" koanf:"base_url"`
	Dimensions        int          `yaml:"dimensions,omitempty" koanf:"dimensions"`
	BatchSize         int          `yaml:"batch_size" koanf:"batch_size"`
	RequestsPerMinute int          `yaml:"requests_per_minute,omitempty" koanf:"requests_per_minute"`
	APIKey            string       `yaml:"-" koanf:"api_key"`
}

// GenerationConfig selects the answer-generation backend.
type GenerationConfig struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	BaseURL           string       `yaml:"base_url,omitempty" koanf:"base_url"`
	Temperature       float64      `yaml:"temperature" koanf:"temperature"`
	MaxTokens         int          `yaml:"max_tokens,omitempty" koanf:"max_tokens"`
	RequestsPerMinute int          `yaml:"requests_per_minute,omitempty" koanf:"requests_per_minute"`
	APIKey            string       `yaml:"-" koanf:"api_key"`
}

// PathsConfig locates the source documents and every derived artifact.
type PathsConfig struct {
	SourceDir string `yaml:"source_dir" koanf:"source_dir"`
	ChunksDir string `yaml:"chunks_dir" koanf:"chunks_dir"`
	IndexDir  string `yaml:"index_dir" koanf:"index_dir"`
	HistoryDB string `yaml:"history_db" koanf:"history_db"`
}

type ChunkingConfig struct {
	Size    int `yaml:"size" koanf:"size"`
	Overlap int `yaml:"overlap" koanf:"overlap"`
}

// RetrievalConfig is the default retrieval policy. TopK is used in top_k
// mode and Threshold in threshold mode.
type RetrievalConfig struct {
	Mode      RetrievalMode `yaml:"mode" koanf:"mode"`
	TopK      int           `yaml:"top_k" koanf:"top_k"`
	Threshold float64       `yaml:"threshold" koanf:"threshold"`
}

type ComposerConfig struct {
	SnippetLength  int    `yaml:"snippet_length" koanf:"snippet_length"`
	TokenizerModel string `yaml:"tokenizer_model" koanf:"tokenizer_model"`
}

// SourceConfig holds ingestion filters. Exclude entries are doublestar globs
// matched against manifest filenames.
type SourceConfig struct {
	Exclude []string `yaml:"exclude,omitempty" koanf:"exclude"`
}

type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	Watch           bool `yaml:"watch" koanf:"watch"`
}
