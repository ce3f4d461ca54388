package grammar

import (
	"fmt"
	"io"
	"strings"

	"github.com/kshedden/gonpy"

	"github.com/inodb/gramllr/internal/gzio"
)

// ReadNPY reads a 2-D numpy array of shape (sites, len(alphabet)) holding
// float32 or float64 probabilities, e.g. the saved softmax output of a model.
// Numpy files carry no column names, so the alphabet is supplied by the caller.
func ReadNPY(r io.Reader, alphabet []string) (*Matrix, error) {
	rdr, err := gonpy.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("read npy header: %w", err)
	}
	if len(rdr.Shape) != 2 {
		return nil, fmt.Errorf("npy array has shape %v, want 2 dimensions", rdr.Shape)
	}
	nrow, ncol := rdr.Shape[0], rdr.Shape[1]
	if ncol != len(alphabet) {
		return nil, fmt.Errorf("npy array has %d columns, alphabet has %d tokens", ncol, len(alphabet))
	}

	var data []float64
	switch {
	case strings.HasSuffix(rdr.Dtype, "f8"):
		data, err = rdr.GetFloat64()
	case strings.HasSuffix(rdr.Dtype, "f4"):
		var f32 []float32
		f32, err = rdr.GetFloat32()
		data = make([]float64, len(f32))
		for i, v := range f32 {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("unsupported npy dtype %q", rdr.Dtype)
	}
	if err != nil {
		return nil, fmt.Errorf("read npy data: %w", err)
	}
	if len(data) != nrow*ncol {
		return nil, fmt.Errorf("npy array has %d values, want %d", len(data), nrow*ncol)
	}

	rows := make([][]float64, nrow)
	for i := range rows {
		row := make([]float64, ncol)
		for j := range row {
			if rdr.ColumnMajor {
				row[j] = data[j*nrow+i]
			} else {
				row[j] = data[i*ncol+j]
			}
		}
		rows[i] = row
	}
	return NewMatrix(alphabet, rows)
}

// LoadNPY reads a numpy matrix file, optionally gzipped.
func LoadNPY(path string, alphabet []string) (*Matrix, error) {
	r, err := gzio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix file: %w", err)
	}
	defer r.Close()

	m, err := ReadNPY(r, alphabet)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return m, nil
}
