// Package duckdb stores LLR results in DuckDB so runs can be queried and
// evaluated without re-reading the CSV outputs.
package duckdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding the llr_results table.
type Store struct {
	db   *sql.DB
	path string

	// serializes writers from concurrently running labels
	mu sync.Mutex
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path ("" for in-memory).
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
// seq is the 0-based position of the result within its (label, track) run.
func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS llr_results (
		label VARCHAR,
		track VARCHAR,
		seq BIGINT,
		gene VARCHAR,
		site BIGINT,
		ref VARCHAR,
		mut VARCHAR,
		llr DOUBLE,
		PRIMARY KEY (label, track, seq)
	)`)
	return err
}
