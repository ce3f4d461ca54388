// Package table reads variant tables: CSV or TSV files with a Name column
// holding ClinVar-style variant names.
package table

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/inodb/gramllr/internal/gzio"
)

// ColName is the required column holding the variant name.
const ColName = "Name"

// Row is one data row of a variant table.
type Row struct {
	Index  int // 0-based data row index
	Line   int // 1-based line in the file
	Name   string
	Fields []string
}

// Reader reads rows from a variant table.
type Reader struct {
	closer  io.Closer
	cr      *csv.Reader
	header  []string
	columns map[string]int
	comma   rune
	rows    int
}

// Open opens a plain or gzipped table. "-" reads stdin.
func Open(path string) (*Reader, error) {
	if path == "-" {
		return NewReader(os.Stdin)
	}
	rc, err := gzio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open variant table: %w", err)
	}
	r, err := newReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = rc
	return r, nil
}

// NewReader reads a table from r. The delimiter (comma or tab) is taken
// from the header line.
func NewReader(r io.Reader) (*Reader, error) {
	return newReader(r)
}

func newReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	first, err := br.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if strings.TrimSpace(first) == "" {
		return nil, fmt.Errorf("no header line found")
	}

	comma := sniffDelimiter(first)
	cr := csv.NewReader(io.MultiReader(strings.NewReader(first), br))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		header[i] = h
		if _, dup := columns[h]; !dup {
			columns[h] = i
		}
	}
	if _, ok := columns[ColName]; !ok {
		return nil, fmt.Errorf("required column %q not found in header", ColName)
	}

	return &Reader{cr: cr, header: header, columns: columns, comma: comma}, nil
}

// sniffDelimiter picks tab when the header has more tabs than commas.
func sniffDelimiter(header string) rune {
	if strings.Count(header, "\t") > strings.Count(header, ",") {
		return '\t'
	}
	return ','
}

// Next reads the next row. Returns nil, nil at end of input.
func (r *Reader) Next() (*Row, error) {
	for {
		rec, err := r.cr.Read()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", r.rows+1, err)
		}
		// A fully blank line is not a row.
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" && len(r.header) > 1 {
			continue
		}

		line, _ := r.cr.FieldPos(0)
		row := &Row{Index: r.rows, Line: line, Fields: rec}
		if i := r.columns[ColName]; i < len(rec) {
			row.Name = rec[i]
		}
		r.rows++
		return row, nil
	}
}

// Skip discards n rows, returning how many were actually skipped.
func (r *Reader) Skip(n int) (int, error) {
	for i := 0; i < n; i++ {
		row, err := r.Next()
		if err != nil {
			return i, err
		}
		if row == nil {
			return i, nil
		}
	}
	return n, nil
}

// Field returns the value of column col in row, or "" when absent.
func (r *Reader) Field(row *Row, col string) string {
	i, ok := r.columns[col]
	if !ok || i >= len(row.Fields) {
		return ""
	}
	return row.Fields[i]
}

// Header returns the column names.
func (r *Reader) Header() []string {
	return r.header
}

// Delimiter returns the detected field separator.
func (r *Reader) Delimiter() rune {
	return r.comma
}

// Rows returns the number of rows read so far.
func (r *Reader) Rows() int {
	return r.rows
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// LabelFromPath derives a dataset label from a file name:
// "data/likely_benign_data.csv.gz" becomes "likely_benign".
func LabelFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(base, "_data")
}
