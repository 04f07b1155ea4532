package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestBolt(t *testing.T) *BoltStore {
	t.Helper()
	s, err := OpenBoltStore(filepath.Join(t.TempDir(), "data", "chatshare.db"))
	if err != nil {
		t.Fatalf("OpenBoltStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStoreGetPut(t *testing.T) {
	ctx := context.Background()
	s := openTestBolt(t)

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.Put(ctx, "Ab3xYz9Q", `{"id":"Ab3xYz9Q"}`, 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := s.Get(ctx, "Ab3xYz9Q")
	if err != nil || got != `{"id":"Ab3xYz9Q"}` {
		t.Fatalf("Get() = %q, %v", got, err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
}

func TestBoltStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s := openTestBolt(t)
	clock := newFakeClock()
	s.now = clock.Now

	if err := s.Put(ctx, "k", "v", time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	clock.Advance(time.Hour)
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestBoltStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "chatshare.db")

	s, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("OpenBoltStore() error = %v", err)
	}
	if err := s.Put(ctx, "k", "persisted", 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = OpenBoltStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if got, err := s.Get(ctx, "k"); err != nil || got != "persisted" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
}
