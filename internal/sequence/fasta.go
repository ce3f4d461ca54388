// Package sequence loads coding sequences from FASTA files.
package sequence

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/inodb/gramllr/internal/gzio"
)

// Record is one FASTA entry.
type Record struct {
	ID          string // first word of the header, without ">"
	Description string // full header line, without ">"
	Sequence    string // upper-cased, whitespace removed
}

// ReadFASTA parses all records from r.
func ReadFASTA(r io.Reader) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	// Long single-line sequences are common in model input files.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var (
		records []Record
		current *Record
		seq     strings.Builder
	)
	flush := func() {
		if current != nil {
			current.Sequence = seq.String()
			records = append(records, *current)
		}
		seq.Reset()
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			flush()
			desc := strings.TrimSpace(line[1:])
			current = &Record{ID: headerID(desc), Description: desc}
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("sequence data before first FASTA header")
		}
		for _, f := range strings.Fields(line) {
			seq.WriteString(strings.ToUpper(f))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan FASTA: %w", err)
	}
	flush()

	return records, nil
}

// headerID returns the identifier part of a FASTA header: everything up to
// the first space or pipe.
func headerID(desc string) string {
	if idx := strings.IndexAny(desc, " |\t"); idx != -1 {
		return desc[:idx]
	}
	return desc
}

// LoadFASTA reads all records from a plain or gzipped FASTA file.
func LoadFASTA(path string) ([]Record, error) {
	r, err := gzio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FASTA file: %w", err)
	}
	defer r.Close()

	return ReadFASTA(r)
}
