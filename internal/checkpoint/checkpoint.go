// Package checkpoint persists per-label batch progress in a bolt database so
// an interrupted run can resume after its last flushed batch.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucket = []byte("progress")

// Progress is the state saved after each flush.
type Progress struct {
	Input        Fingerprint
	Outputs      []string // result file first, then other destinations
	RowsConsumed int
	Processed    int
	Skipped      int
	SkipReasons  map[string]int
	Offset       int64 // durable byte offset of the result file
	Final        bool
	Updated      time.Time
}

// Store reads and writes Progress records keyed by run.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the checkpoint database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
	}
	db, err := bolt.Open(path, 0644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Key builds the record key of one label on one track.
func Key(track, label string) string {
	return track + "/" + label
}

// Save stores p under key.
func (s *Store) Save(key string, p Progress) error {
	if p.Updated.IsZero() {
		p.Updated = time.Now()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("serialize checkpoint: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// Load returns the progress saved under key. ok is false when there is none.
func (s *Store) Load(key string) (p Progress, ok bool, err error) {
	var data []byte
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return Progress{}, false, fmt.Errorf("load checkpoint %s: %w", key, err)
	}
	if data == nil {
		return Progress{}, false, nil
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return Progress{}, false, fmt.Errorf("decode checkpoint %s: %w", key, err)
	}
	return p, true, nil
}

// Delete removes the progress saved under key.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		return b.Delete([]byte(key))
	})
}
