package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const countBucket = "counts"

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(countBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// GetCount returns the cached count for id. Undecodable values read as a miss.
func (b *boltStore) GetCount(id string) (int64, bool, error) {
	if b == nil || b.db == nil || id == "" {
		return 0, false, nil
	}

	var (
		count int64
		found bool
	)
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(countBucket))
		if bucket == nil {
			return fmt.Errorf("count bucket missing")
		}
		value := bucket.Get([]byte(Key(id)))
		if value == nil {
			return nil
		}
		count, found = decodeCount(value)
		return nil
	})
	return count, found, err
}

// SetCount stores count for id, replacing any previous value.
func (b *boltStore) SetCount(id string, count int64) error {
	if b == nil || b.db == nil || id == "" {
		return nil
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(countBucket))
		if bucket == nil {
			return fmt.Errorf("count bucket missing")
		}
		return bucket.Put([]byte(Key(id)), encodeCount(count))
	})
}
