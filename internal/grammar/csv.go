package grammar

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/inodb/gramllr/internal/gzio"
)

// ReadCSV reads a matrix whose header row is the token alphabet and whose
// data rows hold one probability per token. comma selects the delimiter.
//
// A leading header cell that is empty (or pandas' "Unnamed: 0") marks an
// index column, which is dropped. Cells that are not numbers load as NaN so
// that only lookups touching them fail.
func ReadCSV(r io.Reader, comma rune) (*Matrix, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty matrix file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	skip := 0
	if first := strings.TrimSpace(header[0]); first == "" || first == "Unnamed: 0" {
		skip = 1
	}
	alphabet := make([]string, 0, len(header)-skip)
	for _, tok := range header[skip:] {
		alphabet = append(alphabet, strings.TrimSpace(tok))
	}

	var rows [][]float64
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(rows)+1, err)
		}
		row := make([]float64, 0, len(rec)-skip)
		for _, cell := range rec[skip:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				v = math.NaN()
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}

	return NewMatrix(alphabet, rows)
}

// LoadCSV reads a comma- or tab-separated matrix file, optionally gzipped.
// Files ending in .tsv or .tsv.gz are read as tab-separated.
func LoadCSV(path string) (*Matrix, error) {
	r, err := gzio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix file: %w", err)
	}
	defer r.Close()

	comma := ','
	if strings.HasSuffix(strings.TrimSuffix(strings.ToLower(path), ".gz"), ".tsv") {
		comma = '\t'
	}
	m, err := ReadCSV(r, comma)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}
