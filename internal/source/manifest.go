// Package source reads the acquisition manifest and extracts text from the
// documents it lists.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-playground/validator/v10"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// ManifestFile is the acquisition manifest inside the source directory.
const ManifestFile = ".metadata.json"

var validate = validator.New()

// Entry is a manifest document with defaults applied and its resolved path.
type Entry struct {
	domain.DocumentMeta
	Path string
}

// LoadManifest reads sourceDir/.metadata.json. Entries failing validation,
// matching an exclude glob, or repeating an earlier filename are skipped
// with a log line. Manifest order is preserved.
func LoadManifest(sourceDir string, exclude []string) ([]Entry, error) {
	path := filepath.Join(sourceDir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.SourceDataError{
				Artifact: "manifest",
				Path:     path,
				Remedy:   "run the document acquisition step first",
				Err:      err,
			}
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var metas []domain.DocumentMeta
	if err := json.Unmarshal(data, &metas); err != nil {
		return nil, &domain.SourceDataError{
			Artifact: "manifest",
			Path:     path,
			Remedy:   "the manifest must be a JSON array of document entries",
			Err:      err,
		}
	}

	seen := make(map[string]bool, len(metas))
	entries := make([]Entry, 0, len(metas))
	for i, m := range metas {
		if err := validateEntry(m); err != nil {
			log.Printf("source: skipping manifest entry %d: %v", i, err)
			continue
		}
		name := filepath.ToSlash(m.LocalFilename)
		if pattern, ok := excluded(name, exclude); ok {
			log.Printf("source: excluding %s (matches %s)", name, pattern)
			continue
		}
		if seen[name] {
			log.Printf("source: skipping duplicate manifest entry for %s", name)
			continue
		}
		seen[name] = true
		entries = append(entries, Entry{
			DocumentMeta: m.WithDefaults(),
			Path:         filepath.Join(sourceDir, filepath.FromSlash(name)),
		})
	}
	return entries, nil
}

func validateEntry(m domain.DocumentMeta) error {
	if err := validate.Struct(m); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, len(verrs))
			for i, e := range verrs {
				fields[i] = fmt.Sprintf("%s failed on '%s'", e.Field(), e.Tag())
			}
			return errors.New(strings.Join(fields, ", "))
		}
		return err
	}
	if !filepath.IsLocal(filepath.FromSlash(m.LocalFilename)) {
		return fmt.Errorf("local_filename %q escapes the source directory", m.LocalFilename)
	}
	return nil
}

func excluded(name string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return p, true
		}
	}
	return "", false
}
