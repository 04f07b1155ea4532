package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/capitalize-ai/chatshare/internal/storage"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestLimiter(atomic bool) (*Limiter, *testClock, *storage.MemoryStore) {
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := storage.NewMemoryStoreWithClock(clock.Now)
	l := NewWithClock(store, Config{Limit: 10, Window: time.Hour, Atomic: atomic}, clock.Now)
	return l, clock, store
}

type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("store down")
}

func (failingStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("store down")
}

func TestAdmitFixedWindow(t *testing.T) {
	for _, atomic := range []bool{false, true} {
		name := "read-modify-write"
		if atomic {
			name = "atomic"
		}
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l, clock, _ := newTestLimiter(atomic)
			if l.Atomic() != atomic {
				t.Fatalf("Atomic() = %v, want %v", l.Atomic(), atomic)
			}

			for i := 1; i <= 10; i++ {
				if err := l.Admit(ctx, "ip:203.0.113.7"); err != nil {
					t.Fatalf("request %d rejected: %v", i, err)
				}
				clock.now = clock.now.Add(time.Minute)
			}

			err := l.Admit(ctx, "ip:203.0.113.7")
			if !errors.Is(err, ErrRateLimitExceeded) {
				t.Fatalf("11th request error = %v, want ErrRateLimitExceeded", err)
			}
			var limitErr *LimitError
			if !errors.As(err, &limitErr) || limitErr.RetryAfter <= 0 {
				t.Fatalf("expected LimitError with positive RetryAfter, got %v", err)
			}

			// other identities are counted separately
			if err := l.Admit(ctx, "ip:198.51.100.1"); err != nil {
				t.Fatalf("other identity rejected: %v", err)
			}

			clock.now = clock.now.Add(time.Hour)
			if err := l.Admit(ctx, "ip:203.0.113.7"); err != nil {
				t.Fatalf("request after window rejected: %v", err)
			}
		})
	}
}

func TestAdmitWindowStartsAtFirstRequest(t *testing.T) {
	ctx := context.Background()
	l, clock, _ := newTestLimiter(false)

	start := clock.now
	for i := 0; i < 10; i++ {
		if err := l.Admit(ctx, "user:42"); err != nil {
			t.Fatalf("request %d rejected: %v", i+1, err)
		}
	}

	clock.now = start.Add(30 * time.Minute)
	var limitErr *LimitError
	if err := l.Admit(ctx, "user:42"); !errors.As(err, &limitErr) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if limitErr.RetryAfter != 30*time.Minute {
		t.Fatalf("RetryAfter = %s, want 30m", limitErr.RetryAfter)
	}
}

func TestAdmitCorruptCounterStartsNewWindow(t *testing.T) {
	ctx := context.Background()
	l, _, store := newTestLimiter(false)

	if err := store.Put(ctx, keyPrefix+"ip:1", "not json", time.Hour); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := l.Admit(ctx, "ip:1"); err != nil {
		t.Fatalf("Admit() error = %v", err)
	}
}

func TestAdmitStoreError(t *testing.T) {
	l := New(failingStore{}, Config{})

	err := l.Admit(context.Background(), "ip:1")
	if err == nil || errors.Is(err, ErrRateLimitExceeded) {
		t.Fatalf("Admit() error = %v, want store failure", err)
	}
}

func TestAtomicRequiresCounter(t *testing.T) {
	l := New(failingStore{}, Config{Atomic: true})
	if l.Atomic() {
		t.Fatal("store without Incr must not run in atomic mode")
	}
}
