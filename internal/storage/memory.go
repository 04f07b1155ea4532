package storage

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryStore keeps keys in process memory. It is meant for development
// and tests; nothing survives a restart.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates a store that reads time from now, so
// tests can move expiry forward.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     now,
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		return "", ErrNotFound
	}
	return e.value, nil
}

// Put implements Store.
func (s *MemoryStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := memoryEntry{value: value}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

// Incr implements Counter.
func (s *MemoryStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(key)
	if !ok {
		e = memoryEntry{value: "0"}
		if ttl > 0 {
			e.expiresAt = s.now().Add(ttl)
		}
	}
	n, err := strconv.ParseInt(e.value, 10, 64)
	if err != nil {
		return 0, err
	}
	n++
	e.value = strconv.FormatInt(n, 10)
	s.entries[key] = e
	return n, nil
}

// Len returns the number of live keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k := range s.entries {
		if _, ok := s.lookup(k); ok {
			n++
		}
	}
	return n
}

// lookup must be called with mu held. Expired entries are dropped lazily.
func (s *MemoryStore) lookup(key string) (memoryEntry, bool) {
	e, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}
