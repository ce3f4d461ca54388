// Package output provides LLR result sinks and readers.
package output

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/inodb/gramllr/internal/llr"
)

// Columns is the result file header.
var Columns = []string{"Label", "Gene", "Site", "Ref", "Mut", "LLR"}

// Sink receives scored results in batches.
type Sink interface {
	WriteBatch(results []llr.Result) error
	Close() error
}

// Offsetter is implemented by sinks that can report how many bytes are
// durably written, so a later run can resume from there.
type Offsetter interface {
	Offset() int64
}

// Position is where an append-only sink resumes: the byte offset of the
// result file and the number of results already written.
type Position struct {
	Offset int64
	Rows   int
}

// CSVSink appends results to a CSV file. Every batch is encoded into a
// single write followed by fsync.
type CSVSink struct {
	f      *os.File
	path   string
	offset int64
}

// CreateCSV creates (or truncates) path and writes the header.
func CreateCSV(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("create result file: %w", err)
	}
	s := &CSVSink{f: f, path: path}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(Columns)
	w.Flush()
	if err := s.commit(buf.Bytes()); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// OpenCSVAt reopens an existing result file for appending, discarding
// everything after offset. An offset of zero creates a fresh file.
func OpenCSVAt(path string, offset int64) (*CSVSink, error) {
	if offset <= 0 {
		return CreateCSV(path)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open result file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat result file: %w", err)
	}
	if info.Size() < offset {
		f.Close()
		return nil, fmt.Errorf("result file %s is shorter (%d bytes) than resume offset %d", path, info.Size(), offset)
	}
	if err := f.Truncate(offset); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncate result file: %w", err)
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("seek result file: %w", err)
	}
	return &CSVSink{f: f, path: path, offset: offset}, nil
}

// Path returns the file path.
func (s *CSVSink) Path() string { return s.path }

// Offset returns the number of bytes durably written.
func (s *CSVSink) Offset() int64 { return s.offset }

// WriteBatch appends one row per result.
func (s *CSVSink) WriteBatch(results []llr.Result) error {
	if len(results) == 0 {
		return nil
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	for _, r := range results {
		w.Write(formatRow(r))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return s.commit(buf.Bytes())
}

func (s *CSVSink) commit(b []byte) error {
	n, err := s.f.Write(b)
	s.offset += int64(n)
	if err != nil {
		return fmt.Errorf("write %s: %w", s.path, err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", s.path, err)
	}
	return nil
}

// Close closes the file.
func (s *CSVSink) Close() error {
	return s.f.Close()
}

func formatRow(r llr.Result) []string {
	return []string{
		r.Label,
		r.Gene,
		strconv.Itoa(r.Site),
		r.Ref,
		r.Mut,
		strconv.FormatFloat(r.LLR, 'g', -1, 64),
	}
}

// MultiSink fans every batch out to several sinks.
type MultiSink []Sink

// WriteBatch writes to each sink in order and stops at the first error.
func (m MultiSink) WriteBatch(results []llr.Result) error {
	for _, s := range m {
		if err := s.WriteBatch(results); err != nil {
			return err
		}
	}
	return nil
}

// Offset reports the offset of the first member that tracks one.
func (m MultiSink) Offset() int64 {
	for _, s := range m {
		if o, ok := s.(Offsetter); ok {
			return o.Offset()
		}
	}
	return 0
}

// Close closes all sinks.
func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
