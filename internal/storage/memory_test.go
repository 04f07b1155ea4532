package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStoreGetPut(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.Put(ctx, "k", "v1", 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put(ctx, "k", "v2", 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || got != "v2" {
		t.Fatalf("Get(k) = %q, %v; want v2", got, err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStoreWithClock(clock.Now)

	if err := s.Put(ctx, "short", "x", time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Put(ctx, "forever", "y", 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	clock.Advance(59 * time.Second)
	if _, err := s.Get(ctx, "short"); err != nil {
		t.Fatalf("key expired early: %v", err)
	}

	clock.Advance(time.Second)
	if _, err := s.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(short) error = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "forever"); err != nil {
		t.Fatalf("Get(forever) error = %v", err)
	}
	if n := s.Len(); n != 1 {
		t.Fatalf("Len() = %d, want 1", n)
	}
}

func TestMemoryStoreIncr(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := NewMemoryStoreWithClock(clock.Now)

	for want := int64(1); want <= 3; want++ {
		n, err := s.Incr(ctx, "c", time.Minute)
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if n != want {
			t.Fatalf("Incr() = %d, want %d", n, want)
		}
	}

	// later increments keep the original expiry
	clock.Advance(time.Minute)
	n, err := s.Incr(ctx, "c", time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("Incr() after expiry = %d, %v; want 1", n, err)
	}
}

func TestMemoryStoreConcurrentIncr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Incr(ctx, "c", time.Hour); err != nil {
				t.Errorf("Incr() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "c")
	if err != nil || got != "50" {
		t.Fatalf("Get(c) = %q, %v; want 50", got, err)
	}
}
