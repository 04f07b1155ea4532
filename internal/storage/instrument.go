package storage

import (
	"context"
	"errors"
	"time"

	"github.com/capitalize-ai/chatshare/pkg/metrics"
)

// Instrument wraps s so every call is recorded in the store latency
// histogram under backend. Counter support is preserved.
func Instrument(s Store, backend string) Store {
	base := &instrumented{inner: s, backend: backend}
	if c, ok := s.(Counter); ok {
		return &instrumentedCounter{instrumented: base, counter: c}
	}
	return base
}

type instrumented struct {
	inner   Store
	backend string
}

func (s *instrumented) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	v, err := s.inner.Get(ctx, key)
	recorded := err
	if errors.Is(err, ErrNotFound) {
		recorded = nil
	}
	metrics.RecordStoreOperation(s.backend, "get", recorded, time.Since(start).Seconds())
	return v, err
}

func (s *instrumented) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	start := time.Now()
	err := s.inner.Put(ctx, key, value, ttl)
	metrics.RecordStoreOperation(s.backend, "put", err, time.Since(start).Seconds())
	return err
}

func (s *instrumented) Ping(ctx context.Context) error {
	return Ping(ctx, s.inner)
}

type instrumentedCounter struct {
	*instrumented
	counter Counter
}

func (s *instrumentedCounter) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	start := time.Now()
	n, err := s.counter.Incr(ctx, key, ttl)
	metrics.RecordStoreOperation(s.backend, "incr", err, time.Since(start).Seconds())
	return n, err
}
