package vectordb

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/fsutil"
)

const (
	collectionName = "passages"
	currentFile    = "CURRENT"
	passagesFile   = "passages.gob.gz"
	infoFile       = "index.json"
	generationGlob = "gen-*"
)

// chromem rewrites any embedding whose norm is not within this tolerance of 1.
const unitTolerance = 1e-6

// Metadata keys stored on each chromem document.
const (
	metaID        = "id"
	metaTitle     = "title"
	metaSection   = "section"
	metaAuthor    = "author"
	metaDate      = "date"
	metaLink      = "link"
	metaSource    = "source_filename"
	metaCharStart = "char_start"
	metaCharEnd   = "char_end"
	metaHeading   = "heading"
	metaRawVector = "raw_vector"
)

// errNoEmbedding guards the collection's embedding func; vectors are always
// supplied by the caller.
var errNoEmbedding = errors.New("vectordb: collections store precomputed vectors only")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// Persist writes the index into a fresh generation directory under dir and
// then atomically points dir/CURRENT at it. A reader of dir sees either the
// previous generation or this one, never a mix. Older generations other than
// the one just replaced are removed.
func (ix *Index) Persist(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	previous, _ := readCurrent(dir)

	genDir, err := os.MkdirTemp(dir, "gen-")
	if err != nil {
		return fmt.Errorf("create generation dir: %w", err)
	}
	gen := filepath.Base(genDir)

	if err := ix.export(ctx, filepath.Join(genDir, passagesFile)); err != nil {
		os.RemoveAll(genDir)
		return err
	}

	infoJSON, err := json.MarshalIndent(ix.info, "", "  ")
	if err != nil {
		os.RemoveAll(genDir)
		return fmt.Errorf("marshal index info: %w", err)
	}
	if err := fsutil.WriteBytesAtomic(filepath.Join(genDir, infoFile), infoJSON); err != nil {
		os.RemoveAll(genDir)
		return err
	}

	if err := fsutil.WriteBytesAtomic(filepath.Join(dir, currentFile), []byte(gen+"\n")); err != nil {
		os.RemoveAll(genDir)
		return fmt.Errorf("publish generation: %w", err)
	}

	pruneGenerations(dir, gen, previous)
	return nil
}

func (ix *Index) export(ctx context.Context, path string) error {
	db := chromem.NewDB()
	col, err := db.CreateCollection(collectionName, map[string]string{
		"dimension": strconv.Itoa(ix.info.Dimension),
	}, noEmbedding)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	if len(ix.passages) > 0 {
		docs := make([]chromem.Document, len(ix.passages))
		for i, p := range ix.passages {
			docs[i] = chromem.Document{
				ID:        strconv.Itoa(i),
				Content:   p.Text,
				Embedding: ix.vectors[i],
				Metadata:  passageToMap(p, ix.vectors[i]),
			}
		}
		if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("add documents: %w", err)
		}
	}

	if err := db.ExportToFile(path, true, "", collectionName); err != nil {
		return fmt.Errorf("export index: %w", err)
	}
	return nil
}

// Load reads the generation named by dir/CURRENT. It returns
// *domain.IndexNotFoundError when no index has been persisted.
func Load(ctx context.Context, dir string) (*Index, error) {
	gen, err := readCurrent(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.IndexNotFoundError{Dir: dir}
		}
		return nil, fmt.Errorf("read %s: %w", currentFile, err)
	}
	genDir := filepath.Join(dir, gen)

	infoJSON, err := os.ReadFile(filepath.Join(genDir, infoFile))
	if err != nil {
		return nil, corrupt(genDir, err)
	}
	var info Info
	if err := json.Unmarshal(infoJSON, &info); err != nil {
		return nil, corrupt(genDir, fmt.Errorf("parse %s: %w", infoFile, err))
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(filepath.Join(genDir, passagesFile), ""); err != nil {
		return nil, corrupt(genDir, fmt.Errorf("import passages: %w", err))
	}

	passages := make([]domain.Passage, 0, info.Count)
	vectors := make([][]float32, 0, info.Count)
	if info.Count > 0 {
		col := db.GetCollection(collectionName, noEmbedding)
		if col == nil {
			return nil, corrupt(genDir, fmt.Errorf("collection %q not found after import", collectionName))
		}
		if col.Count() != info.Count {
			return nil, &domain.DimensionMismatchError{Context: "stored passage count", Want: info.Count, Got: col.Count()}
		}
		for i := 0; i < info.Count; i++ {
			doc, err := col.GetByID(ctx, strconv.Itoa(i))
			if err != nil {
				return nil, corrupt(genDir, fmt.Errorf("passage %d: %w", i, err))
			}
			p, vec, err := mapToPassage(i, doc)
			if err != nil {
				return nil, corrupt(genDir, err)
			}
			passages = append(passages, p)
			vectors = append(vectors, vec)
		}
	}

	ix, err := Build(passages, vectors)
	if err != nil {
		return nil, err
	}
	if info.Count > 0 && ix.info.Dimension != info.Dimension {
		return nil, &domain.DimensionMismatchError{Context: "stored index dimension", Want: info.Dimension, Got: ix.info.Dimension}
	}
	ix.info = info
	return ix, nil
}

// Exists reports whether dir holds a published index generation.
func Exists(dir string) bool {
	_, err := readCurrent(dir)
	return err == nil
}

func readCurrent(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, currentFile))
	if err != nil {
		return "", err
	}
	gen := strings.TrimSpace(string(data))
	if gen == "" || strings.ContainsAny(gen, `/\`) {
		return "", fmt.Errorf("invalid generation name %q", gen)
	}
	return gen, nil
}

func pruneGenerations(dir string, keep ...string) {
	matches, _ := filepath.Glob(filepath.Join(dir, generationGlob))
	for _, m := range matches {
		name := filepath.Base(m)
		kept := false
		for _, k := range keep {
			if name == k {
				kept = true
				break
			}
		}
		if kept {
			continue
		}
		if err := os.RemoveAll(m); err != nil {
			log.Printf("vectordb: could not remove old generation %s: %v", name, err)
		}
	}
}

func corrupt(path string, err error) error {
	return &domain.SourceDataError{
		Artifact: "index",
		Path:     path,
		Remedy:   "run `sopbot build --force` to rebuild it",
		Err:      err,
	}
}

// passageToMap flattens a passage into chromem's string metadata. Vectors
// that chromem would renormalize are also stored bit-exactly.
func passageToMap(p domain.Passage, vec []float32) map[string]string {
	md := map[string]string{
		metaID:        strconv.Itoa(p.ID),
		metaTitle:     p.Title,
		metaSection:   p.Section,
		metaAuthor:    p.Author,
		metaDate:      p.Date,
		metaLink:      p.Link,
		metaSource:    p.SourceFilename,
		metaCharStart: strconv.Itoa(p.CharStart),
		metaCharEnd:   strconv.Itoa(p.CharEnd),
		metaHeading:   p.Heading,
	}
	if !isUnit(vec) {
		md[metaRawVector] = encodeVector(vec)
	}
	return md
}

// mapToPassage restores the document stored at position pos.
func mapToPassage(pos int, doc chromem.Document) (domain.Passage, []float32, error) {
	m := doc.Metadata
	id, err := strconv.Atoi(m[metaID])
	if err != nil {
		return domain.Passage{}, nil, fmt.Errorf("passage %d: bad %s: %w", pos, metaID, err)
	}
	start, err := strconv.Atoi(m[metaCharStart])
	if err != nil {
		return domain.Passage{}, nil, fmt.Errorf("passage %d: bad %s: %w", id, metaCharStart, err)
	}
	end, err := strconv.Atoi(m[metaCharEnd])
	if err != nil {
		return domain.Passage{}, nil, fmt.Errorf("passage %d: bad %s: %w", id, metaCharEnd, err)
	}

	vec := doc.Embedding
	if raw, ok := m[metaRawVector]; ok {
		if vec, err = decodeVector(raw); err != nil {
			return domain.Passage{}, nil, fmt.Errorf("passage %d: %w", id, err)
		}
	}

	return domain.Passage{
		ID:             id,
		Title:          m[metaTitle],
		Section:        m[metaSection],
		Author:         m[metaAuthor],
		Date:           m[metaDate],
		Link:           m[metaLink],
		SourceFilename: m[metaSource],
		CharStart:      start,
		CharEnd:        end,
		Heading:        m[metaHeading],
		Text:           doc.Content,
	}, vec, nil
}

func isUnit(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Abs(math.Sqrt(sum)-1) < unitTolerance
}

func encodeVector(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func decodeVector(s string) ([]float32, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(buf)%4 != 0 {
		return nil, fmt.Errorf("malformed stored vector")
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
