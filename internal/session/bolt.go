package session

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// dbDirPerm is the permission mode for the session directory.
	dbDirPerm = fs.FileMode(0o700)

	// dbFilePerm is the permission mode for the session database file.
	dbFilePerm = fs.FileMode(0o600)

	// dbOpenTimeout is the maximum time to wait for the bolt file lock
	// held by another process sharing the same profile.
	dbOpenTimeout = 5 * time.Second
)

var localStorageBucket = []byte("local_storage")

// BoltStore keeps the token in a bbolt file. Several keys can share one
// file; each BoltStore reads and writes only its own key.
type BoltStore struct {
	db  *bolt.DB
	key []byte
}

// DefaultPath returns ~/.ampwidgets/session.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determining home directory: %w", err)
	}

	return filepath.Join(home, ".ampwidgets", "session.db"), nil
}

// OpenBolt opens (creating if needed) the database at path and returns
// a store scoped to key.
func OpenBolt(path, key string) (*BoltStore, error) {
	if key == "" {
		return nil, fmt.Errorf("session key is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), dbDirPerm); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}

	db, err := bolt.Open(path, dbFilePerm, &bolt.Options{Timeout: dbOpenTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening session db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(localStorageBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing session db: %w", err)
	}

	return &BoltStore{db: db, key: []byte(key)}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Put(token string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(localStorageBucket).Put(s.key, []byte(token))
	})
}

// Get returns the stored token. Read failures are reported as absence.
func (s *BoltStore) Get() (string, bool) {
	var (
		token string
		found bool
	)

	_ = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(localStorageBucket).Get(s.key)
		if v != nil {
			token = string(v)
			found = true
		}

		return nil
	})

	return token, found
}

func (s *BoltStore) IsGranted() bool {
	_, ok := s.Get()
	return ok
}

func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(localStorageBucket).Delete(s.key)
	})
}
