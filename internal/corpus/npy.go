package corpus

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/reiness/edos-jls-chatbot/internal/domain"
	"github.com/reiness/edos-jls-chatbot/internal/fsutil"
)

// NumPy .npy format, version 1.0: magic, version, little-endian uint16 header
// length, a Python dict literal padded so the data starts on a 64-byte
// boundary, then the raw array. Only 2-D little-endian float32 C-order
// arrays are written or accepted.
var npyMagic = []byte("\x93NUMPY")

const npyAlign = 64

var (
	descrRe   = regexp.MustCompile(`'descr':\s*'([^']*)'`)
	fortranRe = regexp.MustCompile(`'fortran_order':\s*(True|False)`)
	shapeRe   = regexp.MustCompile(`'shape':\s*\(([^)]*)\)`)
)

// WriteNPY replaces the file at path with vectors as an (n, dim) float32
// array. All rows must share one length.
func WriteNPY(path string, vectors [][]float32) error {
	s, err := StageNPY(path, vectors)
	if err != nil {
		return err
	}
	defer s.Discard()
	return fsutil.Commit(s)
}

// StageNPY writes the array next to path without replacing it; see
// fsutil.Commit.
func StageNPY(path string, vectors [][]float32) (*fsutil.Staged, error) {
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, &domain.DimensionMismatchError{Context: fmt.Sprintf("embedding row %d", i), Want: dim, Got: len(v)}
		}
	}

	return fsutil.StageFile(path, func(w io.Writer) error {
		if _, err := w.Write(npyHeader(len(vectors), dim)); err != nil {
			return err
		}
		buf := make([]byte, 4*dim)
		for _, v := range vectors {
			for j, x := range v {
				binary.LittleEndian.PutUint32(buf[4*j:], math.Float32bits(x))
			}
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	})
}

func npyHeader(rows, cols int) []byte {
	dict := fmt.Sprintf("{'descr': '<f4', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	// magic(6) + version(2) + length(2) + dict + padding + '\n'
	total := len(npyMagic) + 4 + len(dict) + 1
	pad := (npyAlign - total%npyAlign) % npyAlign
	header := dict + strings.Repeat(" ", pad) + "\n"

	var b bytes.Buffer
	b.Write(npyMagic)
	b.Write([]byte{1, 0})
	binary.Write(&b, binary.LittleEndian, uint16(len(header)))
	b.WriteString(header)
	return b.Bytes()
}

// ReadNPY loads a 2-D float32 array written by WriteNPY or by numpy.save.
func ReadNPY(path string) ([][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.SourceDataError{Artifact: "embeddings file", Path: path, Remedy: ingestRemedy, Err: err}
		}
		return nil, fmt.Errorf("open embeddings file: %w", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat embeddings file: %w", err)
	}

	vecs, err := decodeNPY(bufio.NewReader(f), st.Size())
	if err != nil {
		return nil, &domain.SourceDataError{Artifact: "embeddings file", Path: path, Remedy: "re-run `sopbot ingest`", Err: err}
	}
	return vecs, nil
}

// decodeNPY reads an array from r, which holds size bytes in total. The
// declared shape must fit in what follows the header.
func decodeNPY(r io.Reader, size int64) ([][]float32, error) {
	pre := make([]byte, len(npyMagic)+2)
	if _, err := io.ReadFull(r, pre); err != nil {
		return nil, fmt.Errorf("read npy preamble: %w", err)
	}
	if !bytes.Equal(pre[:len(npyMagic)], npyMagic) {
		return nil, errors.New("not a .npy file")
	}

	var hlen, lenField int
	switch major := pre[len(npyMagic)]; major {
	case 1:
		var n uint16
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		hlen, lenField = int(n), 2
	case 2, 3:
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		hlen, lenField = int(n), 4
	default:
		return nil, fmt.Errorf("unsupported npy version %d", major)
	}

	avail := size - int64(len(pre)+lenField) - int64(hlen)
	if avail < 0 {
		return nil, fmt.Errorf("npy header length %d exceeds file size %d", hlen, size)
	}
	header := make([]byte, hlen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}
	rows, cols, err := parseNPYHeader(string(header))
	if err != nil {
		return nil, err
	}
	if rows > 0 && cols == 0 {
		return nil, fmt.Errorf("shape (%d, 0) has zero-width rows", rows)
	}
	if rows > 0 && (int64(cols) > avail/4 || int64(rows) > avail/(4*int64(cols))) {
		return nil, fmt.Errorf("shape (%d, %d) does not fit in %d data bytes", rows, cols, avail)
	}

	vecs := make([][]float32, rows)
	buf := make([]byte, 4*cols)
	for i := range vecs {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("read row %d: %w", i, err)
		}
		v := make([]float32, cols)
		for j := range v {
			v[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*j:]))
		}
		vecs[i] = v
	}
	return vecs, nil
}

func parseNPYHeader(h string) (rows, cols int, err error) {
	m := descrRe.FindStringSubmatch(h)
	if m == nil {
		return 0, 0, errors.New("npy header has no descr")
	}
	if m[1] != "<f4" {
		return 0, 0, fmt.Errorf("unsupported dtype %s, want <f4", m[1])
	}
	if m = fortranRe.FindStringSubmatch(h); m == nil || m[1] != "False" {
		return 0, 0, errors.New("only C-order arrays are supported")
	}
	m = shapeRe.FindStringSubmatch(h)
	if m == nil {
		return 0, 0, errors.New("npy header has no shape")
	}

	var dims []int
	for _, part := range strings.Split(m[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("bad shape %q", m[1])
		}
		dims = append(dims, n)
	}
	if len(dims) != 2 {
		return 0, 0, fmt.Errorf("expected a 2-D array, got shape (%s)", m[1])
	}
	return dims[0], dims[1], nil
}
