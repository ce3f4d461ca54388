package sequence

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound is returned when no coding sequence exists for a gene.
var ErrNotFound = errors.New("coding sequence not found")

// Provider resolves the coding sequence (DNA) of a gene.
type Provider interface {
	Sequence(gene string) (string, error)
}

// MapProvider serves sequences held in memory.
type MapProvider map[string]string

// Sequence returns the coding sequence for gene or ErrNotFound.
func (p MapProvider) Sequence(gene string) (string, error) {
	seq, ok := p[gene]
	if !ok {
		return "", fmt.Errorf("%w: gene %s", ErrNotFound, gene)
	}
	return seq, nil
}

type cached struct {
	seq string
	err error
}

// FileProvider reads one FASTA file per gene and uses its first record.
// Outcomes are cached, failures included. Not safe for concurrent use.
type FileProvider struct {
	dir     string
	pattern string
	cache   map[string]cached
	logger  *zap.Logger
}

// NewFileProvider creates a provider for files named by pattern (e.g.
// "{gene}.fasta") under dir.
func NewFileProvider(dir, pattern string) *FileProvider {
	return &FileProvider{
		dir:     dir,
		pattern: pattern,
		cache:   make(map[string]cached),
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger for load diagnostics.
func (p *FileProvider) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Path returns the FASTA path for gene.
func (p *FileProvider) Path(gene string) string {
	return filepath.Join(p.dir, strings.ReplaceAll(p.pattern, "{gene}", gene))
}

// Sequence returns the coding sequence of gene, reading its file on first use.
func (p *FileProvider) Sequence(gene string) (string, error) {
	if c, ok := p.cache[gene]; ok {
		return c.seq, c.err
	}
	seq, err := p.load(gene)
	p.cache[gene] = cached{seq: seq, err: err}
	return seq, err
}

func (p *FileProvider) load(gene string) (string, error) {
	if gene == "" || strings.ContainsAny(gene, `/\`) || gene == "." || gene == ".." {
		return "", fmt.Errorf("%w: invalid gene symbol %q", ErrNotFound, gene)
	}
	path := p.Path(gene)
	records, err := LoadFASTA(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", err
	}
	if len(records) == 0 || records[0].Sequence == "" {
		return "", fmt.Errorf("%w: %s has no sequence", ErrNotFound, path)
	}
	if len(records) > 1 {
		p.logger.Debug("FASTA file has several records, using the first",
			zap.String("gene", gene),
			zap.String("path", path),
			zap.Int("records", len(records)))
	}
	return records[0].Sequence, nil
}
