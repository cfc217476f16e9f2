// Package fsutil holds small filesystem helpers shared by the ingest and
// index layers.
package fsutil

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic streams write's output into a temporary file next to path
// and renames it into place once fully written and synced. Readers observe
// either the old file or the complete new one.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	s, err := StageFile(path, write)
	if err != nil {
		return err
	}
	if err := os.Rename(s.tmp, path); err != nil {
		s.Discard()
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// WriteBytesAtomic is WriteFileAtomic for an in-memory payload.
func WriteBytesAtomic(path string, data []byte) error {
	return WriteFileAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// Staged is a complete, synced file waiting to replace its target.
type Staged struct {
	path      string
	tmp       string
	backup    string
	committed bool
}

// StageFile writes write's output to a temporary file next to path. path
// itself is untouched until Commit.
func StageFile(path string, write func(w io.Writer) error) (_ *Staged, err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = write(bw); err != nil {
		return nil, err
	}
	if err = bw.Flush(); err != nil {
		return nil, fmt.Errorf("flush %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return nil, fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return &Staged{path: path, tmp: tmp.Name()}, nil
}

// Discard removes the staged file unless it was committed. It is safe to
// defer right after staging.
func (s *Staged) Discard() {
	if !s.committed {
		os.Remove(s.tmp)
	}
}

// Commit renames every staged file over its target, in order. If one fails,
// the targets already replaced get their previous contents back, so either
// all targets change or none do.
func Commit(files ...*Staged) error {
	var done []*Staged
	for _, s := range files {
		if err := s.swap(); err != nil {
			for i := len(done) - 1; i >= 0; i-- {
				done[i].restore()
			}
			return err
		}
		done = append(done, s)
	}
	for _, s := range done {
		if s.backup != "" {
			os.Remove(s.backup)
			s.backup = ""
		}
	}
	return nil
}

// swap keeps a hard link to the current target, so the target never goes
// missing and can be put back by restore.
func (s *Staged) swap() error {
	if _, err := os.Lstat(s.path); err == nil {
		backup := s.tmp + ".prev"
		if err := os.Link(s.path, backup); err != nil {
			return fmt.Errorf("keep previous %s: %w", s.path, err)
		}
		s.backup = backup
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		if s.backup != "" {
			os.Remove(s.backup)
			s.backup = ""
		}
		return fmt.Errorf("rename into %s: %w", s.path, err)
	}
	s.committed = true
	return nil
}

func (s *Staged) restore() {
	if s.backup != "" {
		os.Rename(s.backup, s.path)
		s.backup = ""
	} else {
		os.Remove(s.path)
	}
}
