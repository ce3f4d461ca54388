package duckdb

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/gramllr/internal/llr"
)

// WriteResults batch-inserts results for one track using the Appender API.
// start is the seq of the first result.
func (s *Store) WriteResults(track string, start int, results []llr.Result) error {
	if len(results) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "llr_results")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for i, r := range results {
		if err := appender.AppendRow(
			r.Label, track, int64(start+i),
			r.Gene, int64(r.Site), r.Ref, r.Mut, r.LLR,
		); err != nil {
			return fmt.Errorf("append result: %w", err)
		}
	}

	return appender.Flush()
}

// ClearResults removes the results of label on track from seq onwards.
func (s *Store) ClearResults(label, track string, from int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM llr_results WHERE label=? AND track=? AND seq>=?",
		label, track, int64(from))
	if err != nil {
		return fmt.Errorf("clear results for %s: %w", label, err)
	}
	return nil
}

// Results returns the stored results of a track in run order, optionally
// restricted to labels.
func (s *Store) Results(track string, labels ...string) ([]llr.Result, error) {
	query := "SELECT label, gene, site, ref, mut, llr FROM llr_results WHERE track=?"
	args := []any{track}
	if len(labels) > 0 {
		query += " AND label IN (?" + strings.Repeat(", ?", len(labels)-1) + ")"
		for _, l := range labels {
			args = append(args, l)
		}
	}
	query += " ORDER BY label, seq"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []llr.Result
	for rows.Next() {
		var r llr.Result
		var site int64
		if err := rows.Scan(&r.Label, &r.Gene, &site, &r.Ref, &r.Mut, &r.LLR); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Site = int(site)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// Labels returns the distinct labels stored for a track.
func (s *Store) Labels(track string) ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT label FROM llr_results WHERE track=? ORDER BY label", track)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// ResultSink appends one label's results to the store. It implements
// output.Sink.
type ResultSink struct {
	store *Store
	label string
	track string
	next  int
}

// Sink returns a sink for label on track whose first result gets seq start.
// Rows previously stored at or after start are removed, so a rerun or a
// resumed run never duplicates results.
func (s *Store) Sink(label, track string, start int) (*ResultSink, error) {
	if err := s.ClearResults(label, track, start); err != nil {
		return nil, err
	}
	return &ResultSink{store: s, label: label, track: track, next: start}, nil
}

// WriteBatch appends a batch.
func (rs *ResultSink) WriteBatch(results []llr.Result) error {
	if err := rs.store.WriteResults(rs.track, rs.next, results); err != nil {
		return err
	}
	rs.next += len(results)
	return nil
}

// Close is a no-op; the Store is owned by the caller.
func (rs *ResultSink) Close() error {
	return nil
}
