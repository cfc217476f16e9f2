// Package ingest turns the acquired SOP documents into the chunk and embedding
// artifacts the index is built from.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/reiness/edos-jls-chatbot/internal/chunker"
	"github.com/reiness/edos-jls-chatbot/internal/composer"
	"github.com/reiness/edos-jls-chatbot/internal/config"
	"github.com/reiness/edos-jls-chatbot/internal/corpus"
	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/fsutil"
	"github.com/reiness/edos-jls-chatbot/internal/llm"
	"github.com/reiness/edos-jls-chatbot/internal/normalize"
	"github.com/reiness/edos-jls-chatbot/internal/progress"
	"github.com/reiness/edos-jls-chatbot/internal/source"
)

// sampleLength is how much of the first chunk the summary shows.
const sampleLength = 500

// BatchEmbedder embeds a batch of texts into unit vectors.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Result describes a completed ingestion run.
type Result struct {
	Documents int
	Skipped   []string
	Passages  int
	Dimension int
	Duration  time.Duration
}

// Summary is printed before any embedding call is made.
type Summary struct {
	Documents       int
	Chunks          int
	BatchSize       int
	APICalls        int
	EstimatedTokens int
	Sample          string
}

// Pipeline runs manifest -> extract -> normalize -> chunk -> embed -> write.
type Pipeline struct {
	embedder  BatchEmbedder
	paths     config.PathsConfig
	chunking  config.ChunkingConfig
	exclude   []string
	batchSize int
	limiter   *rate.Limiter
	tokens    composer.TokenCounter
	reporter  progress.Reporter
	out       io.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithReporter sets the progress reporter for embedding batches.
func WithReporter(r progress.Reporter) Option {
	return func(p *Pipeline) { p.reporter = r }
}

// WithTokenCounter sets the tokenizer used for the summary estimate.
func WithTokenCounter(tc composer.TokenCounter) Option {
	return func(p *Pipeline) { p.tokens = tc }
}

// WithOutput sets where the pre-embedding summary is printed.
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) { p.out = w }
}

// NewPipeline creates a Pipeline from configuration.
func NewPipeline(embedder BatchEmbedder, cfg *config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		embedder:  embedder,
		paths:     cfg.Paths,
		chunking:  cfg.Chunking,
		exclude:   cfg.Source.Exclude,
		batchSize: cfg.Embedding.BatchSize,
		limiter:   llm.NewLimiter(cfg.Embedding.RequestsPerMinute),
		reporter:  progress.Nop{},
		out:       io.Discard,
	}
	if p.batchSize < 1 {
		p.batchSize = config.DefaultConfig().Embedding.BatchSize
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run ingests every manifest document and writes chunks.jsonl and
// embeddings.npy to the chunks directory. Any failure aborts the run and
// leaves the previous pair of artifacts untouched.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	passages, res, err := p.Chunk()
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(passages))
	for i, ps := range passages {
		texts[i] = EmbedContent(ps)
	}
	p.printSummary(p.summarize(res.Documents, passages, texts))

	vectors, err := p.embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.paths.ChunksDir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunks dir: %w", err)
	}
	npy, err := corpus.StageNPY(corpus.EmbeddingsPath(p.paths.ChunksDir), vectors)
	if err != nil {
		return nil, fmt.Errorf("write embeddings: %w", err)
	}
	defer npy.Discard()
	chunks, err := corpus.StageChunks(corpus.ChunksPath(p.paths.ChunksDir), passages)
	if err != nil {
		return nil, fmt.Errorf("write chunks: %w", err)
	}
	defer chunks.Discard()
	// Both files are replaced or neither is; the chunk file is never newer
	// than its embeddings.
	if err := fsutil.Commit(npy, chunks); err != nil {
		return nil, fmt.Errorf("publish ingestion output: %w", err)
	}

	res.Dimension = len(vectors[0])
	res.Duration = time.Since(start)
	return res, nil
}

// Chunk reads, normalizes and splits every manifest document. Missing files
// and extraction failures are skipped with a warning. Passage IDs are
// assigned from 0 in manifest order.
func (p *Pipeline) Chunk() ([]domain.Passage, *Result, error) {
	entries, err := source.LoadManifest(p.paths.SourceDir, p.exclude)
	if err != nil {
		return nil, nil, err
	}

	res := &Result{}
	var passages []domain.Passage
	for _, e := range entries {
		if _, err := os.Stat(e.Path); err != nil {
			log.Printf("ingest: skipping %s: not found", e.LocalFilename)
			res.Skipped = append(res.Skipped, e.LocalFilename)
			continue
		}
		doc, err := source.Extract(e.Path)
		if err != nil {
			log.Printf("ingest: skipping %s: %v", e.LocalFilename, err)
			res.Skipped = append(res.Skipped, e.LocalFilename)
			continue
		}

		chunks, err := passagesFor(e, doc, p.chunking, len(passages))
		if err != nil {
			return nil, nil, fmt.Errorf("chunk %s: %w", e.LocalFilename, err)
		}
		passages = append(passages, chunks...)
		res.Documents++
	}

	if len(passages) == 0 {
		return nil, nil, &domain.SourceDataError{
			Artifact: "source documents",
			Path:     p.paths.SourceDir,
			Remedy:   "no text could be extracted; check the manifest and document files",
			Err:      errors.New("no passages produced"),
		}
	}
	res.Passages = len(passages)
	return passages, res, nil
}

func passagesFor(e source.Entry, doc source.Document, cfg config.ChunkingConfig, nextID int) ([]domain.Passage, error) {
	text := normalize.Normalize(doc.Text)
	spans, err := chunker.Split(text, cfg.Size, cfg.Overlap)
	if err != nil {
		return nil, err
	}
	anchors := normalize.Locate(text, doc.DetectHeadings())

	out := make([]domain.Passage, len(spans))
	for i, s := range spans {
		out[i] = domain.Passage{
			ID:             nextID + i,
			Title:          e.Title,
			Section:        e.Section,
			Author:         e.Author,
			Date:           e.Date,
			Link:           e.Link,
			SourceFilename: e.LocalFilename,
			CharStart:      s.Start,
			CharEnd:        s.End,
			Heading:        normalize.HeadingAt(anchors, s.Start),
			Text:           s.Text,
		}
	}
	return out, nil
}

// EmbedContent is the text embedded for a passage: its document metadata
// followed by the passage text.
func EmbedContent(p domain.Passage) string {
	return fmt.Sprintf("SOP Title: %s\nSection: %s\nAuthor: %s\nDate: %s\n\nContent: %s",
		p.Title, p.Section, p.Author, p.Date, p.Text)
}

func (p *Pipeline) embed(ctx context.Context, texts []string) ([][]float32, error) {
	batches := (len(texts) + p.batchSize - 1) / p.batchSize
	p.reporter.Start(batches, "Embedding chunks")
	defer p.reporter.Finish()

	vectors := make([][]float32, 0, len(texts))
	for b := 0; b < batches; b++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		lo := b * p.batchSize
		hi := min(lo+p.batchSize, len(texts))
		vecs, err := p.embedder.EmbedBatch(ctx, texts[lo:hi])
		if err != nil {
			return nil, fmt.Errorf("embedding batch starting at %d: %w", lo, err)
		}
		if len(vecs) != hi-lo {
			return nil, &domain.DimensionMismatchError{Context: fmt.Sprintf("batch starting at %d", lo), Want: hi - lo, Got: len(vecs)}
		}
		vectors = append(vectors, vecs...)
		p.reporter.Update(b+1, fmt.Sprintf("batch %d/%d", b+1, batches))
	}
	return vectors, nil
}

func (p *Pipeline) summarize(docs int, passages []domain.Passage, texts []string) Summary {
	count := composer.EstimateTokens
	if p.tokens != nil {
		count = p.tokens.Count
	}
	tokens := 0
	for _, t := range texts {
		tokens += count(t)
	}
	sample := passages[0].Text
	if r := []rune(sample); len(r) > sampleLength {
		sample = string(r[:sampleLength])
	}
	return Summary{
		Documents:       docs,
		Chunks:          len(passages),
		BatchSize:       p.batchSize,
		APICalls:        (len(passages) + p.batchSize - 1) / p.batchSize,
		EstimatedTokens: tokens,
		Sample:          sample + "...",
	}
}

func (p *Pipeline) printSummary(s Summary) {
	rule := strings.Repeat("=", 50)
	fmt.Fprintln(p.out, rule)
	fmt.Fprintf(p.out, "Documents processed: %d\n", s.Documents)
	fmt.Fprintf(p.out, "Text chunks created: %d\n", s.Chunks)
	fmt.Fprintf(p.out, "Embedding batch size: %d\n", s.BatchSize)
	fmt.Fprintf(p.out, "Estimated API calls: %d\n", s.APICalls)
	fmt.Fprintf(p.out, "Estimated tokens: %d\n", s.EstimatedTokens)
	fmt.Fprintln(p.out, "Sample chunk:")
	fmt.Fprintln(p.out, s.Sample)
	fmt.Fprintln(p.out, rule)
}
