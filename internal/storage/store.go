// Package storage defines the key/value gateway the service persists through
// and its backends.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("key not found")

// Store is the read/write contract the core needs. Implementations are
// assumed eventually consistent and offer no transactions.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put stores value under key. A positive ttl makes the key expire.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter is implemented by stores that can increment a key atomically.
// The ttl is applied only when the increment creates the key.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Ping checks s when it supports health checks and reports healthy otherwise.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
