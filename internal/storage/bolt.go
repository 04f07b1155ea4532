package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("kv")

// boltEnvelope wraps values so expiry survives restarts.
type boltEnvelope struct {
	Value     string    `json:"v"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// BoltStore is a single-file Store for single-node deployments. Expired
// keys are treated as absent on read and overwritten on the next Put.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenBoltStore opens (or creates) the database file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store %s: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltStore{db: db, now: time.Now}, nil
}

// Get implements Store.
func (s *BoltStore) Get(ctx context.Context, key string) (string, error) {
	var env boltEnvelope
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltBucket).Get([]byte(key))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &env)
	})
	if err != nil {
		return "", fmt.Errorf("bolt get %q: %w", key, err)
	}
	if !found || s.expired(env) {
		return "", ErrNotFound
	}
	return env.Value, nil
}

// Put implements Store.
func (s *BoltStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	env := boltEnvelope{Value: value}
	if ttl > 0 {
		env.ExpiresAt = s.now().Add(ttl).UTC()
	}
	enc, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(key), enc)
	})
}

// Ping implements Pinger.
func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket(boltBucket) == nil {
			return fmt.Errorf("bucket %s missing", boltBucket)
		}
		return nil
	})
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) expired(env boltEnvelope) bool {
	return !env.ExpiresAt.IsZero() && !s.now().Before(env.ExpiresAt)
}
