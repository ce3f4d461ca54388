package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/gramllr/internal/gzio"
	"github.com/inodb/gramllr/internal/llr"
)

// ReadResults parses a result file written by CSVSink. Columns are matched
// by name so extra columns are ignored.
func ReadResults(r io.Reader) ([]llr.Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty result file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	for _, c := range Columns {
		if _, ok := idx[c]; !ok {
			return nil, fmt.Errorf("result file missing column %q", c)
		}
	}

	var results []llr.Result
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		get := func(col string) string {
			if i := idx[col]; i < len(rec) {
				return rec[i]
			}
			return ""
		}

		site, err := strconv.Atoi(get("Site"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid site %q", line, get("Site"))
		}
		v, err := strconv.ParseFloat(get("LLR"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid LLR %q", line, get("LLR"))
		}
		results = append(results, llr.Result{
			Label: get("Label"),
			Gene:  get("Gene"),
			Site:  site,
			Ref:   get("Ref"),
			Mut:   get("Mut"),
			LLR:   v,
		})
	}
	return results, nil
}

// LoadResults reads a plain or gzipped result file.
func LoadResults(path string) ([]llr.Result, error) {
	r, err := gzio.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open result file: %w", err)
	}
	defer r.Close()

	results, err := ReadResults(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return results, nil
}
