// Package lifecycle owns the live vector index: building it from ingestion
// artifacts, loading it from disk, and swapping it for readers.
package lifecycle

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/reiness/edos-jls-chatbot/internal/config"
	"github.com/reiness/edos-jls-chatbot/internal/corpus"
	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/vectordb"
)

// State is the lifecycle stage of the index.
type State int32

const (
	Absent State = iota
	Built
	Loaded
)

func (s State) String() string {
	switch s {
	case Built:
		return "built"
	case Loaded:
		return "loaded"
	default:
		return "absent"
	}
}

// dimensionSample is embedded after every build and load to confirm the live
// embedding model still matches the stored vectors.
const dimensionSample = "dimension-check"

// Embedder is what the manager needs from the embedding provider.
type Embedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Manager builds, loads and publishes the index. Readers call Current or
// Index and never block on a rebuild; builds and loads are serialized.
type Manager struct {
	chunksDir string
	indexDir  string
	embedder  Embedder

	mu      sync.Mutex
	current atomic.Pointer[vectordb.Index]
	state   atomic.Int32
}

func New(paths config.PathsConfig, embedder Embedder) *Manager {
	return &Manager{
		chunksDir: paths.ChunksDir,
		indexDir:  paths.IndexDir,
		embedder:  embedder,
	}
}

// State reports whether an index is live and how it got there.
func (m *Manager) State() State { return State(m.state.Load()) }

// Current returns the live index, or nil when none has been built or loaded.
func (m *Manager) Current() *vectordb.Index { return m.current.Load() }

// Index returns the live index, loading it from disk on first use.
// Concurrent first callers share a single load.
func (m *Manager) Index(ctx context.Context) (*vectordb.Index, error) {
	if ix := m.current.Load(); ix != nil {
		return ix, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ix := m.current.Load(); ix != nil {
		return ix, nil
	}
	return m.load(ctx)
}

// BuildOrLoad loads the persisted index unless force is set or none exists,
// in which case it rebuilds from the chunk and embedding files.
func (m *Manager) BuildOrLoad(ctx context.Context, force bool) (*vectordb.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !force && vectordb.Exists(m.indexDir) {
		return m.load(ctx)
	}
	return m.build(ctx)
}

// Load reads the persisted index and publishes it. It returns
// *domain.IndexNotFoundError when nothing has been built yet.
func (m *Manager) Load(ctx context.Context) (*vectordb.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load(ctx)
}

// Build rebuilds the index from ingestion artifacts, persists it and
// publishes it. In-flight queries keep the index they started with.
func (m *Manager) Build(ctx context.Context) (*vectordb.Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.build(ctx)
}

func (m *Manager) load(ctx context.Context) (*vectordb.Index, error) {
	ix, err := vectordb.Load(ctx, m.indexDir)
	if err != nil {
		return nil, err
	}
	if err := m.checkDimension(ctx, ix); err != nil {
		return nil, err
	}
	m.publish(ix, Loaded)
	log.Printf("lifecycle: loaded index (%d passages, dim %d, embedder %s)", ix.Len(), ix.Dimension(), ix.Info().Embedder)
	return ix, nil
}

func (m *Manager) build(ctx context.Context) (*vectordb.Index, error) {
	chunksPath := corpus.ChunksPath(m.chunksDir)
	passages, err := corpus.ReadChunks(chunksPath)
	if err != nil {
		return nil, err
	}
	if len(passages) == 0 {
		return nil, &domain.SourceDataError{
			Artifact: "chunk file",
			Path:     chunksPath,
			Remedy:   "add documents to the manifest and run `sopbot ingest`",
			Err:      fmt.Errorf("no passages"),
		}
	}
	vectors, err := corpus.ReadNPY(corpus.EmbeddingsPath(m.chunksDir))
	if err != nil {
		return nil, err
	}

	ix, err := vectordb.Build(passages, vectors)
	if err != nil {
		return nil, err
	}
	ix.WithEmbedder(m.embedder.Name())

	if err := m.checkDimension(ctx, ix); err != nil {
		return nil, err
	}
	if err := ix.Persist(ctx, m.indexDir); err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	m.publish(ix, Built)
	log.Printf("lifecycle: built index (%d passages, dim %d)", ix.Len(), ix.Dimension())
	return ix, nil
}

// checkDimension embeds a sample with the live model and compares its length
// with the corpus dimension.
func (m *Manager) checkDimension(ctx context.Context, ix *vectordb.Index) error {
	if ix.Len() == 0 {
		return nil
	}
	sample, err := m.embedder.EmbedOne(ctx, dimensionSample)
	if err != nil {
		return fmt.Errorf("dimension check: %w", err)
	}
	if len(sample) != ix.Dimension() {
		return &domain.DimensionMismatchError{
			Context: fmt.Sprintf("live %s embedding vs stored index", m.embedder.Name()),
			Want:    ix.Dimension(),
			Got:     len(sample),
		}
	}
	return nil
}

func (m *Manager) publish(ix *vectordb.Index, s State) {
	m.current.Store(ix)
	m.state.Store(int32(s))
}
