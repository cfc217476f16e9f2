// Package corpus reads and writes the ingestion artifacts: the chunk file
// (one passage per JSON line) and the embeddings matrix aligned with it.
package corpus

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/fsutil"
)

const (
	ChunksFile     = "chunks.jsonl"
	EmbeddingsFile = "embeddings.npy"
)

const ingestRemedy = "run `sopbot ingest` first"

// maxLine bounds a single chunk-file line.
const maxLine = 16 << 20

// ChunksPath and EmbeddingsPath locate the artifacts inside dir.
func ChunksPath(dir string) string     { return filepath.Join(dir, ChunksFile) }
func EmbeddingsPath(dir string) string { return filepath.Join(dir, EmbeddingsFile) }

// WriteChunks replaces the chunk file at path with passages, one JSON object
// per line. The output depends only on the passages, so re-ingesting an
// unchanged corpus produces an identical file.
func WriteChunks(path string, passages []domain.Passage) error {
	s, err := StageChunks(path, passages)
	if err != nil {
		return err
	}
	defer s.Discard()
	return fsutil.Commit(s)
}

// StageChunks writes the chunk file next to path without replacing it; see
// fsutil.Commit.
func StageChunks(path string, passages []domain.Passage) (*fsutil.Staged, error) {
	return fsutil.StageFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for i := range passages {
			if err := enc.Encode(&passages[i]); err != nil {
				return fmt.Errorf("encode chunk %d: %w", passages[i].ID, err)
			}
		}
		return nil
	})
}

// ReadChunks loads the chunk file at path. Passage IDs must run from 0 in
// file order.
func ReadChunks(path string) ([]domain.Passage, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.SourceDataError{Artifact: "chunk file", Path: path, Remedy: ingestRemedy, Err: err}
		}
		return nil, fmt.Errorf("open chunk file: %w", err)
	}
	defer f.Close()

	var passages []domain.Passage
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var p domain.Passage
		if err := json.Unmarshal(sc.Bytes(), &p); err != nil {
			return nil, malformedChunks(path, fmt.Errorf("line %d: %w", line, err))
		}
		if p.ID != len(passages) {
			return nil, malformedChunks(path, fmt.Errorf("line %d: id %d out of sequence, want %d", line, p.ID, len(passages)))
		}
		passages = append(passages, p)
	}
	if err := sc.Err(); err != nil {
		return nil, malformedChunks(path, err)
	}
	return passages, nil
}

func malformedChunks(path string, err error) error {
	return &domain.SourceDataError{Artifact: "chunk file", Path: path, Remedy: "re-run `sopbot ingest`", Err: err}
}
