// Package ndjson reads and writes newline-delimited JSON streams, the
// on-disk format of export artifacts: one file per entity kind, one record
// per line.
package ndjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dbsmedya/metaport/internal/schema"
)

// Extension is the artifact file suffix.
const Extension = ".ndjson"

// Lines inside a record can get big (wide table schemas), so the scanner
// buffer is raised well above the bufio default.
const maxLineSize = 16 * 1024 * 1024

// FileName returns the artifact file name for a kind.
func FileName(kind schema.Kind) string {
	return string(kind) + Extension
}

// KindFromFileName maps an artifact file name back to its kind.
func KindFromFileName(name string) (schema.Kind, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, Extension) {
		return "", false
	}
	return schema.Kind(strings.TrimSuffix(base, Extension)), true
}

// DiscoverKinds scans a directory for artifact files of registered kinds and
// returns them in registry declaration order. Files whose names are not
// registered kinds are ignored.
func DiscoverKinds(dir string, reg *schema.Registry) ([]schema.Kind, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	var kinds []schema.Kind
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		kind, ok := KindFromFileName(entry.Name())
		if !ok || !reg.Has(kind) {
			continue
		}
		kinds = append(kinds, kind)
	}

	sort.Slice(kinds, func(i, j int) bool {
		a, _ := reg.Index(kinds[i])
		b, _ := reg.Index(kinds[j])
		return a < b
	})
	return kinds, nil
}

// Writer emits one JSON object per line.
type Writer struct {
	w     *bufio.Writer
	count int
}

// NewWriter wraps an io.Writer in an NDJSON encoder.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write marshals a value onto its own line.
func (w *Writer) Write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if _, err := w.w.Write(data); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.count++
	return nil
}

// Count returns how many lines have been written.
func (w *Writer) Count() int {
	return w.count
}

// Flush writes any buffered output through.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// FileWriter is a Writer bound to an artifact file on disk.
type FileWriter struct {
	*Writer
	f    *os.File
	path string
}

// CreateFile creates (or truncates) the artifact file for a kind.
func CreateFile(dir string, kind schema.Kind) (*FileWriter, error) {
	path := filepath.Join(dir, FileName(kind))
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact file: %w", err)
	}
	return &FileWriter{Writer: NewWriter(f), f: f, path: path}, nil
}

// Path returns the artifact file path.
func (w *FileWriter) Path() string {
	return w.path
}

// Close flushes and closes the artifact file.
func (w *FileWriter) Close() error {
	if err := w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Reader decodes one JSON object per line. Blank lines are skipped, not
// errors, so hand-edited artifact files stay readable.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader wraps an io.Reader in an NDJSON decoder.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next decodes the next non-blank line into v. It returns io.EOF when the
// stream is exhausted.
func (r *Reader) Next(v any) error {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimSpace(r.scanner.Text())
		if text == "" {
			continue
		}
		if err := json.Unmarshal([]byte(text), v); err != nil {
			return fmt.Errorf("malformed record on line %d: %w", r.line, err)
		}
		return nil
	}
	if err := r.scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}

// Line returns the line number of the record most recently returned by
// Next.
func (r *Reader) Line() int {
	return r.line
}

// OpenFile opens the artifact file for a kind.
func OpenFile(dir string, kind schema.Kind) (*Reader, func() error, error) {
	f, err := os.Open(filepath.Join(dir, FileName(kind)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open artifact file: %w", err)
	}
	return NewReader(f), f.Close, nil
}
