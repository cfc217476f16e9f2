package embeddings

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/reiness/edos-jls-chatbot/internal/config"
	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// countingEmbedder records how often it is called and returns canned vectors.
type countingEmbedder struct {
	mu      sync.Mutex
	calls   int
	vectors [][]float32
	err     error
}

func (c *countingEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	if c.vectors != nil {
		return c.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 3, 4}
	}
	return out, nil
}

func (c *countingEmbedder) Name() string { return "counting" }

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestEmbedBatchEmptySkipsBackend(t *testing.T) {
	backend := &countingEmbedder{}
	p := NewProvider(backend)

	got, err := p.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %d vectors", len(got))
	}
	if backend.calls != 0 {
		t.Errorf("backend called %d times, want 0", backend.calls)
	}
}

func TestEmbedBatchNormalizes(t *testing.T) {
	p := NewProvider(NewHashEmbedder(64))
	texts := []string{
		"How do I request leave?",
		"Submit Form HR-12 to your manager",
		"x",
		strings.Repeat("expense reimbursement ", 50),
	}
	vecs, err := p.EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, v := range vecs {
		if n := norm(v); math.Abs(n-1) > 1e-6 {
			t.Errorf("vector %d norm = %f, want 1", i, n)
		}
	}
}

func TestEmbedOneNormalizesBackendOutput(t *testing.T) {
	p := NewProvider(&countingEmbedder{})
	v, err := p.EmbedOne(context.Background(), "abc")
	if err != nil {
		t.Fatalf("EmbedOne: %v", err)
	}
	if n := norm(v); math.Abs(n-1) > 1e-6 {
		t.Errorf("norm = %f, want 1", n)
	}
}

func TestEmbedBatchZeroVectorStaysZero(t *testing.T) {
	p := NewProvider(NewHashEmbedder(16))
	vecs, err := p.EmbedBatch(context.Background(), []string{"", "leave"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for _, x := range vecs[0] {
		if x != 0 || math.IsNaN(float64(x)) {
			t.Fatalf("expected all-zero vector, got %v", vecs[0])
		}
	}
}

func TestEmbedBatchEmptyVectorBecomesZero(t *testing.T) {
	backend := &countingEmbedder{vectors: [][]float32{{}, {1, 0}}}
	vecs, err := NewProvider(backend).EmbedBatch(context.Background(), []string{"", "a"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vecs[0]) != 2 || vecs[0][0] != 0 || vecs[0][1] != 0 {
		t.Errorf("vecs[0] = %v, want [0 0]", vecs[0])
	}
}

func TestEmbedBatchFailures(t *testing.T) {
	tests := []struct {
		name    string
		backend *countingEmbedder
	}{
		{"backend error", &countingEmbedder{err: errors.New("quota exceeded")}},
		{"count mismatch", &countingEmbedder{vectors: [][]float32{{1, 2}}}},
		{"ragged dimensions", &countingEmbedder{vectors: [][]float32{{1, 2}, {1, 2, 3}}}},
		{"all empty", &countingEmbedder{vectors: [][]float32{{}, {}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.backend).EmbedBatch(context.Background(), []string{"a", "b"})
			var be *domain.BackendCallError
			if !errors.As(err, &be) {
				t.Fatalf("expected BackendCallError, got %v", err)
			}
			if tt.backend.calls != 1 {
				t.Errorf("backend called %d times, want exactly 1 (no retry)", tt.backend.calls)
			}
		})
	}
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(32)
	a, _ := e.Embed(context.Background(), []string{"Leave Request Procedure"})
	b, _ := e.Embed(context.Background(), []string{"leave request procedure!"})
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("vectors differ at %d", i)
		}
	}
	if e.Name() != "hash/32" {
		t.Errorf("Name = %q", e.Name())
	}
}

func TestGoogleEmbedderBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gemini-embedding-001:batchEmbedContents") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte(`{"embeddings":[{"values":[3,4]},{"values":[0,2]}]}`))
	}))
	defer srv.Close()

	p := NewProvider(NewGoogleEmbedder("test-key", "models/gemini-embedding-001", 0, srv.URL))
	vecs, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if math.Abs(float64(vecs[0][0])-0.6) > 1e-6 || math.Abs(float64(vecs[1][1])-1) > 1e-6 {
		t.Errorf("unexpected vectors %v", vecs)
	}
}

func TestGoogleEmbedderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"RESOURCE_EXHAUSTED"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewProvider(NewGoogleEmbedder("k", "gemini-embedding-001", 0, srv.URL))
	_, err := p.EmbedBatch(context.Background(), []string{"a"})
	var be *domain.BackendCallError
	if !errors.As(err, &be) {
		t.Fatalf("expected BackendCallError, got %v", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should mention status: %v", err)
	}
}

func TestOllamaEmbedderBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"model":"nomic-embed-text","embeddings":[[1,0,0],[0,0,5]]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder("nomic-embed-text", srv.URL)
	vecs, err := NewProvider(e).EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if vecs[1][2] < 0.999 {
		t.Errorf("expected normalized second vector, got %v", vecs[1])
	}
	if e.Name() != "ollama/nomic-embed-text" {
		t.Errorf("Name = %q", e.Name())
	}
}

func TestFromConfig(t *testing.T) {
	if _, err := FromConfig(config.EmbeddingConfig{Provider: config.ProviderGoogle, Model: "gemini-embedding-001"}); err == nil {
		t.Error("expected configuration error for missing google key")
	} else {
		var ce *domain.ConfigurationError
		if !errors.As(err, &ce) {
			t.Errorf("expected ConfigurationError, got %T", err)
		}
	}

	p, err := FromConfig(config.EmbeddingConfig{Provider: config.ProviderHash, Dimensions: 8})
	if err != nil {
		t.Fatalf("hash provider: %v", err)
	}
	if p.Name() != "hash/8" {
		t.Errorf("Name = %q", p.Name())
	}

	if _, err := FromConfig(config.EmbeddingConfig{Provider: "bogus", Model: "m"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
