// Package idgen allocates short, human-shareable conversation identifiers.
package idgen

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/capitalize-ai/chatshare/internal/storage"
	"github.com/capitalize-ai/chatshare/pkg/metrics"
)

const (
	// Alphabet omits characters that are easy to misread: 0, O, o, 1, l and I.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

	// Length is the number of characters in an identifier.
	Length = 8

	// DefaultMaxAttempts bounds collision retries.
	DefaultMaxAttempts = 10
)

// ErrAllocationExhausted is returned when every attempt collided with an
// existing key. With 56^8 identifiers this points at a broken store or
// randomness source rather than bad luck.
var ErrAllocationExhausted = errors.New("id allocation exhausted")

// Allocator generates identifiers and checks them against a store.
type Allocator struct {
	store       storage.Store
	random      io.Reader
	maxAttempts int
}

// NewAllocator creates an allocator reading from crypto/rand.
func NewAllocator(store storage.Store, maxAttempts int) *Allocator {
	return NewAllocatorWithSource(store, maxAttempts, rand.Reader)
}

// NewAllocatorWithSource creates an allocator reading randomness from src.
func NewAllocatorWithSource(store storage.Store, maxAttempts int, src io.Reader) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Allocator{
		store:       store,
		random:      src,
		maxAttempts: maxAttempts,
	}
}

// Allocate returns an identifier that is not yet present in the store.
// Store errors other than ErrNotFound abort the allocation.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		id, err := a.Generate()
		if err != nil {
			return "", err
		}

		_, err = a.store.Get(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			metrics.IDAllocationAttempts.Observe(float64(attempt))
			return id, nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to check id %q: %w", id, err)
		}
	}

	metrics.IDAllocationAttempts.Observe(float64(a.maxAttempts))
	return "", fmt.Errorf("%w after %d attempts", ErrAllocationExhausted, a.maxAttempts)
}

// Generate returns one random candidate without checking the store.
func (a *Allocator) Generate() (string, error) {
	size := big.NewInt(int64(len(Alphabet)))
	buf := make([]byte, Length)
	for i := range buf {
		n, err := rand.Int(a.random, size)
		if err != nil {
			return "", fmt.Errorf("failed to read randomness: %w", err)
		}
		buf[i] = Alphabet[n.Int64()]
	}
	return string(buf), nil
}

// Valid reports whether id has the shape Allocate produces.
func Valid(id string) bool {
	if len(id) != Length {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !isAlphabet(id[i]) {
			return false
		}
	}
	return true
}

func isAlphabet(c byte) bool {
	for i := 0; i < len(Alphabet); i++ {
		if Alphabet[i] == c {
			return true
		}
	}
	return false
}
