package nats

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/chatshare/internal/storage"
)

const (
	// RecordsBucket holds conversation records.
	RecordsBucket = "CHATSHARE_RECORDS"

	// CountersBucket holds rate limit counters. Its bucket-wide TTL is the
	// rate limit window.
	CountersBucket = "CHATSHARE_COUNTERS"
)

// kvEnvelope carries a per-key expiry, since bucket TTL applies to every key.
type kvEnvelope struct {
	Value     string    `json:"v"`
	ExpiresAt time.Time `json:"exp,omitempty"`
}

// KVStore is a storage.Store backed by one JetStream key/value bucket.
type KVStore struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

// EnsureKeyValue opens the bucket, creating it when missing. A positive
// ttl expires every key in the bucket after that long.
func EnsureKeyValue(ctx context.Context, client *Client, bucket string, ttl time.Duration) (*KVStore, error) {
	js := client.JetStream()

	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "chatshare key/value data",
			History:     1,
			TTL:         ttl,
			Storage:     jetstream.FileStorage,
			Replicas:    1,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open key/value bucket %s: %w", bucket, err)
	}

	return &KVStore{kv: kv, now: time.Now}, nil
}

// Get implements storage.Store.
func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	entry, err := s.kv.Get(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv get %q: %w", key, err)
	}

	var env kvEnvelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return "", fmt.Errorf("kv decode %q: %w", key, err)
	}
	if !env.ExpiresAt.IsZero() && !s.now().Before(env.ExpiresAt) {
		return "", storage.ErrNotFound
	}
	return env.Value, nil
}

// Put implements storage.Store.
func (s *KVStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	env := kvEnvelope{Value: value}
	if ttl > 0 {
		env.ExpiresAt = s.now().Add(ttl).UTC()
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if _, err := s.kv.Put(ctx, encodeKey(key), data); err != nil {
		return fmt.Errorf("kv put %q: %w", key, err)
	}
	return nil
}

// Ping implements storage.Pinger.
func (s *KVStore) Ping(ctx context.Context) error {
	_, err := s.kv.Status(ctx)
	return err
}

// encodeKey maps arbitrary keys (client identities contain ':' and IPv6
// colons) onto the bucket's key alphabet.
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}
