package corpus

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

func TestChunksRoundTrip(t *testing.T) {
	path := ChunksPath(t.TempDir())
	in := []domain.Passage{
		{ID: 0, Title: "Leave", Section: "HR", Author: "Ops", Date: "2024", SourceFilename: "leave.pdf", CharStart: 0, CharEnd: 12, Heading: "Scope", Text: "Submit HR-12"},
		{ID: 1, Title: "Leave", Section: "HR", Author: "Ops", Date: "2024", SourceFilename: "leave.pdf", CharStart: 8, CharEnd: 20, Text: "<manager> & HR"},
	}
	if err := WriteChunks(path, in); err != nil {
		t.Fatalf("WriteChunks: %v", err)
	}
	out, err := ReadChunks(path)
	if err != nil {
		t.Fatalf("ReadChunks: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d passages", len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("passage %d: got %+v, want %+v", i, out[i], in[i])
		}
	}

	data, _ := os.ReadFile(path)
	if n := bytes.Count(data, []byte("\n")); n != 2 {
		t.Errorf("expected 2 lines, got %d", n)
	}
	if !bytes.HasPrefix(data, []byte(`{"id":0,"title":"Leave","section":"HR","author":"Ops","date":"2024","link":"","source_filename":"leave.pdf"`)) {
		t.Errorf("unexpected field layout: %s", data)
	}
}

func TestReadChunksErrors(t *testing.T) {
	dir := t.TempDir()
	var sde *domain.SourceDataError

	if _, err := ReadChunks(filepath.Join(dir, "missing.jsonl")); !errors.As(err, &sde) {
		t.Errorf("missing file: expected SourceDataError, got %v", err)
	}

	bad := filepath.Join(dir, "bad.jsonl")
	os.WriteFile(bad, []byte(`{"id":0,"text":"a"}`+"\n"+`{"id":5,"text":"b"}`+"\n"), 0o644)
	if _, err := ReadChunks(bad); !errors.As(err, &sde) {
		t.Errorf("out-of-sequence ids: expected SourceDataError, got %v", err)
	}
}

func TestNPYRoundTrip(t *testing.T) {
	path := EmbeddingsPath(t.TempDir())
	in := [][]float32{
		{0.6, 0.8, 0},
		{float32(math.Inf(1)), -0, 1e-30},
	}
	if err := WriteNPY(path, in); err != nil {
		t.Fatalf("WriteNPY: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !bytes.HasPrefix(data, []byte("\x93NUMPY\x01\x00")) {
		t.Errorf("bad magic: %q", data[:8])
	}
	if dataStart := len(data) - 4*6; dataStart%64 != 0 {
		t.Errorf("array data starts at %d, want 64-byte alignment", dataStart)
	}
	if !bytes.Contains(data, []byte("'shape': (2, 3)")) {
		t.Errorf("header missing shape")
	}

	out, err := ReadNPY(path)
	if err != nil {
		t.Fatalf("ReadNPY: %v", err)
	}
	for i := range in {
		for j := range in[i] {
			if math.Float32bits(out[i][j]) != math.Float32bits(in[i][j]) {
				t.Errorf("[%d][%d] = %v, want %v", i, j, out[i][j], in[i][j])
			}
		}
	}
}

func TestNPYEmpty(t *testing.T) {
	path := EmbeddingsPath(t.TempDir())
	if err := WriteNPY(path, nil); err != nil {
		t.Fatal(err)
	}
	out, err := ReadNPY(path)
	if err != nil || len(out) != 0 {
		t.Errorf("out=%v err=%v", out, err)
	}
}

func TestNPYRejects(t *testing.T) {
	var dm *domain.DimensionMismatchError
	if err := WriteNPY(filepath.Join(t.TempDir(), "x.npy"), [][]float32{{1}, {1, 2}}); !errors.As(err, &dm) {
		t.Errorf("ragged rows: expected DimensionMismatchError, got %v", err)
	}

	tests := map[string]string{
		"float64":  "{'descr': '<f8', 'fortran_order': False, 'shape': (1, 1), }",
		"fortran":  "{'descr': '<f4', 'fortran_order': True, 'shape': (1, 1), }",
		"1-D":      "{'descr': '<f4', 'fortran_order': False, 'shape': (3,), }",
		"no shape": "{'descr': '<f4', 'fortran_order': False, }",
	}
	for name, h := range tests {
		if _, _, err := parseNPYHeader(h); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	var sde *domain.SourceDataError
	path := filepath.Join(t.TempDir(), "junk.npy")
	os.WriteFile(path, []byte("not numpy at all"), 0o644)
	if _, err := ReadNPY(path); !errors.As(err, &sde) {
		t.Errorf("junk file: expected SourceDataError, got %v", err)
	}
}

func TestReadNPYRejectsOversizedShape(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]struct {
		rows, cols int
		data       int
	}{
		"huge":          {rows: 1 << 40, cols: 1024, data: 8},
		"one row short": {rows: 3, cols: 2, data: 4 * 2 * 2},
		"zero width":    {rows: 1 << 40, cols: 0},
		"wide":          {rows: 1, cols: 1 << 62, data: 16},
	}
	for name, tt := range tests {
		path := filepath.Join(dir, name+".npy")
		b := append(npyHeader(tt.rows, tt.cols), make([]byte, tt.data)...)
		if err := os.WriteFile(path, b, 0o644); err != nil {
			t.Fatal(err)
		}
		var sde *domain.SourceDataError
		if _, err := ReadNPY(path); !errors.As(err, &sde) {
			t.Errorf("%s: expected SourceDataError, got %v", name, err)
		}
	}

	path := filepath.Join(dir, "exact.npy")
	b := append(npyHeader(2, 2), make([]byte, 4*2*2)...)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := ReadNPY(path)
	if err != nil || len(out) != 2 || len(out[1]) != 2 {
		t.Errorf("exact fit: out=%v err=%v", out, err)
	}
}
