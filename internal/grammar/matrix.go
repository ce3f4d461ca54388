// Package grammar holds per-site grammaticality matrices produced by
// sequence language models and the loaders that read them from disk.
package grammar

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("grammaticality matrix not found")
	ErrUnknownToken   = errors.New("token not in matrix alphabet")
	ErrSiteOutOfRange = errors.New("site outside matrix rows")
)

// Matrix is a grammaticality matrix: one row per sequence position and one
// column per token of the model alphabet. Site s maps to row s-1.
type Matrix struct {
	alphabet []string
	index    map[string]int
	rows     [][]float64
}

// NewMatrix builds a Matrix. Every row must have one value per token and
// tokens must be unique.
func NewMatrix(alphabet []string, rows [][]float64) (*Matrix, error) {
	if len(alphabet) == 0 {
		return nil, fmt.Errorf("empty alphabet")
	}
	index := make(map[string]int, len(alphabet))
	for i, tok := range alphabet {
		if _, dup := index[tok]; dup {
			return nil, fmt.Errorf("duplicate token %q in alphabet", tok)
		}
		index[tok] = i
	}
	for i, row := range rows {
		if len(row) != len(alphabet) {
			return nil, fmt.Errorf("row %d has %d values, alphabet has %d tokens", i+1, len(row), len(alphabet))
		}
	}
	return &Matrix{alphabet: alphabet, index: index, rows: rows}, nil
}

// Sites returns the number of rows.
func (m *Matrix) Sites() int {
	return len(m.rows)
}

// Alphabet returns the column tokens in order.
func (m *Matrix) Alphabet() []string {
	return m.alphabet
}

// HasToken reports whether token is a column of the matrix.
func (m *Matrix) HasToken(token string) bool {
	_, ok := m.index[token]
	return ok
}

// Probability returns the value at 1-based site for token. No default is
// substituted for unknown tokens or sites.
func (m *Matrix) Probability(site int, token string) (float64, error) {
	if site < 1 || site > len(m.rows) {
		return 0, fmt.Errorf("%w: site %d, matrix has %d rows", ErrSiteOutOfRange, site, len(m.rows))
	}
	col, ok := m.index[token]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownToken, token)
	}
	return m.rows[site-1][col], nil
}
