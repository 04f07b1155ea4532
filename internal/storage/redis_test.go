package storage

import (
	"context"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis-backed store tests")
	}
	db := 0
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			db = parsed
		}
	}

	s, err := NewRedisStore(context.Background(), RedisConfig{
		Addr:     addr,
		Password: os.Getenv("TEST_REDIS_PASSWORD"),
		DB:       db,
	})
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisStoreGetPut(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)
	key := "chatshare-test:" + uuid.NewString()

	if _, err := s.Get(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
	if err := s.Put(ctx, key, "value", time.Minute); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if got, err := s.Get(ctx, key); err != nil || got != "value" {
		t.Fatalf("Get() = %q, %v", got, err)
	}
}

func TestRedisStoreIncr(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t)
	key := "chatshare-test:" + uuid.NewString()

	for want := int64(1); want <= 3; want++ {
		n, err := s.Incr(ctx, key, time.Minute)
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if n != want {
			t.Fatalf("Incr() = %d, want %d", n, want)
		}
	}
}
