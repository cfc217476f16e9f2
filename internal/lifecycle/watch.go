package lifecycle

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/reiness/edos-jls-chatbot/internal/corpus"
)

// DefaultDebounce waits for ingestion to finish writing both artifacts.
const DefaultDebounce = 2 * time.Second

// Watch rebuilds the index whenever the chunk or embeddings file in the
// chunks directory is replaced. It blocks until ctx is cancelled. Failed
// rebuilds are logged and the previous index stays live.
func (m *Manager) Watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: atomic renames replace the files' inodes.
	if err := watcher.Add(m.chunksDir); err != nil {
		return fmt.Errorf("watch %s: %w", m.chunksDir, err)
	}
	log.Printf("watch: watching %s for new ingestion output", m.chunksDir)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isArtifact(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)

		case <-fire:
			fire = nil
			if _, err := m.Build(ctx); err != nil {
				log.Printf("watch: rebuild failed, keeping previous index: %v", err)
				continue
			}
			log.Printf("watch: index rebuilt")
		}
	}
}

func isArtifact(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Rename) {
		return false
	}
	switch filepath.Base(ev.Name) {
	case corpus.ChunksFile, corpus.EmbeddingsFile:
		return true
	}
	return false
}
