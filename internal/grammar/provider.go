package grammar

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Provider resolves the grammaticality matrix of a gene.
type Provider interface {
	Matrix(gene string) (*Matrix, error)
}

// MapProvider serves matrices held in memory.
type MapProvider map[string]*Matrix

// Matrix returns the matrix for gene or ErrNotFound.
func (p MapProvider) Matrix(gene string) (*Matrix, error) {
	m, ok := p[gene]
	if !ok {
		return nil, fmt.Errorf("%w: gene %s", ErrNotFound, gene)
	}
	return m, nil
}

// GenePlaceholder is replaced by the gene symbol in file name patterns.
const GenePlaceholder = "{gene}"

type cached struct {
	m   *Matrix
	err error
}

// FileProvider loads one matrix file per gene from a directory and caches
// the outcome, failures included, so each file is read at most once.
// It is not safe for concurrent use; give each run its own provider.
type FileProvider struct {
	dir      string
	pattern  string
	alphabet []string
	cache    map[string]cached
	logger   *zap.Logger
}

// NewFileProvider creates a provider for files named by pattern (e.g.
// "{gene}_CaLM_grammaticality.csv") under dir. alphabet names the columns
// of .npy files, which have no header.
func NewFileProvider(dir, pattern string, alphabet []string) *FileProvider {
	return &FileProvider{
		dir:      dir,
		pattern:  pattern,
		alphabet: alphabet,
		cache:    make(map[string]cached),
		logger:   zap.NewNop(),
	}
}

// SetLogger sets the logger for load diagnostics.
func (p *FileProvider) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Path returns the file path for gene.
func (p *FileProvider) Path(gene string) string {
	return filepath.Join(p.dir, strings.ReplaceAll(p.pattern, GenePlaceholder, gene))
}

// Matrix returns the matrix for gene, loading it on first use.
func (p *FileProvider) Matrix(gene string) (*Matrix, error) {
	if c, ok := p.cache[gene]; ok {
		return c.m, c.err
	}
	m, err := p.load(gene)
	p.cache[gene] = cached{m: m, err: err}
	return m, err
}

// Loaded returns the number of genes whose matrix loaded successfully.
func (p *FileProvider) Loaded() int {
	n := 0
	for _, c := range p.cache {
		if c.err == nil {
			n++
		}
	}
	return n
}

func (p *FileProvider) load(gene string) (*Matrix, error) {
	if gene == "" || strings.ContainsAny(gene, `/\`) || gene == "." || gene == ".." {
		return nil, fmt.Errorf("%w: invalid gene symbol %q", ErrNotFound, gene)
	}
	path := p.Path(gene)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat matrix file: %w", err)
	}

	var (
		m   *Matrix
		err error
	)
	if strings.HasSuffix(strings.TrimSuffix(strings.ToLower(path), ".gz"), ".npy") {
		m, err = LoadNPY(path, p.alphabet)
	} else {
		m, err = LoadCSV(path)
	}
	if err != nil {
		return nil, err
	}

	p.logger.Debug("loaded grammaticality matrix",
		zap.String("gene", gene),
		zap.String("path", path),
		zap.Int("sites", m.Sites()),
		zap.Int("tokens", len(m.Alphabet())))
	return m, nil
}
