// Package cache persists parse-phase declarations in a bbolt database keyed
// by the SHA-256 of file content, so unchanged files are not re-parsed.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/garagon/sifter/internal/symbols"
)

// DefaultPath is the cache location relative to the project root.
const DefaultPath = ".sifter/cache.db"

// schemaVersion is bumped whenever the stored declaration encoding or the
// parser's extraction rules change; a mismatch empties the cache.
const schemaVersion = "1"

var (
	bucketDecls = []byte("declarations")
	bucketMeta  = []byte("meta")
	keyVersion  = []byte("schema_version")
)

// Store is a declaration cache. Get is safe for concurrent use; PutBatch
// serializes through a single bbolt write transaction.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the cache at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if string(meta.Get(keyVersion)) != schemaVersion {
			if err := tx.DeleteBucket(bucketDecls); err != nil && !errors.Is(err, bolt.ErrBucketNotFound) {
				return err
			}
			if err := meta.Put(keyVersion, []byte(schemaVersion)); err != nil {
				return err
			}
		}
		_, err = tx.CreateBucketIfNotExists(bucketDecls)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing cache %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the declarations cached for a content hash. Declarations are
// relocated to file, since identical content may live at several paths.
func (s *Store) Get(hash, file string) ([]symbols.Declaration, bool) {
	var decls []symbols.Declaration
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketDecls).Get([]byte(hash))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &decls)
	})
	if err != nil || !found {
		return nil, false
	}
	for i := range decls {
		decls[i].File = file
	}
	return decls, true
}

// PutBatch stores declarations for several content hashes in one transaction.
func (s *Store) PutBatch(entries map[string][]symbols.Declaration) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDecls)
		for hash, decls := range entries {
			if decls == nil {
				decls = []symbols.Declaration{}
			}
			data, err := json.Marshal(decls)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(hash), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	n := 0
	_ = s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketDecls).Stats().KeyN
		return nil
	})
	return n
}
