// Package ratelimit admits requests per client identity using a fixed
// window counter kept in the key/value store.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/capitalize-ai/chatshare/internal/storage"
)

const (
	// DefaultLimit is the number of requests admitted per window.
	DefaultLimit = 10

	// DefaultWindow is the fixed window length.
	DefaultWindow = time.Hour

	keyPrefix       = "ratelimit:"
	atomicKeyPrefix = "ratelimit-n:"
)

// ErrRateLimitExceeded is matched by every rejection (see LimitError).
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// LimitError describes a rejected request.
type LimitError struct {
	Identity   string
	Limit      int
	RetryAfter time.Duration
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s: %d requests per window, retry in %s",
		e.Identity, e.Limit, e.RetryAfter.Round(time.Second))
}

// Unwrap lets errors.Is match ErrRateLimitExceeded.
func (e *LimitError) Unwrap() error {
	return ErrRateLimitExceeded
}

// Config holds limiter settings.
type Config struct {
	Limit  int
	Window time.Duration

	// Atomic switches to the store's atomic increment when it has one.
	// Without it the limiter reads then writes, and two requests racing
	// inside the same instant can both be admitted.
	Atomic bool
}

// window is the stored counter value.
type window struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
}

// Limiter is a fixed window rate limiter.
type Limiter struct {
	store   storage.Store
	counter storage.Counter
	limit   int
	window  time.Duration
	now     func() time.Time
}

// New creates a limiter over store.
func New(store storage.Store, cfg Config) *Limiter {
	return NewWithClock(store, cfg, time.Now)
}

// NewWithClock creates a limiter that reads time from now.
func NewWithClock(store storage.Store, cfg Config, now func() time.Time) *Limiter {
	l := &Limiter{
		store:  store,
		limit:  cfg.Limit,
		window: cfg.Window,
		now:    now,
	}
	if l.limit <= 0 {
		l.limit = DefaultLimit
	}
	if l.window <= 0 {
		l.window = DefaultWindow
	}
	if c, ok := store.(storage.Counter); ok && cfg.Atomic {
		l.counter = c
	}
	return l
}

// Atomic reports whether admissions use an atomic increment.
func (l *Limiter) Atomic() bool {
	return l.counter != nil
}

// Admit counts one request for identity and returns a *LimitError once the
// window's limit has been reached. The counter key expires at the end of
// the window; nothing deletes it explicitly.
func (l *Limiter) Admit(ctx context.Context, identity string) error {
	if l.counter != nil {
		return l.admitAtomic(ctx, identity)
	}

	key := keyPrefix + identity
	now := l.now()
	w := window{ResetAt: now.Add(l.window)}

	raw, err := l.store.Get(ctx, key)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return fmt.Errorf("failed to read rate limit counter: %w", err)
	default:
		var stored window
		// a stale or unreadable counter starts a new window
		if json.Unmarshal([]byte(raw), &stored) == nil && now.Before(stored.ResetAt) {
			w = stored
		}
	}

	if w.Count >= l.limit {
		return &LimitError{Identity: identity, Limit: l.limit, RetryAfter: w.ResetAt.Sub(now)}
	}

	w.Count++
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	if err := l.store.Put(ctx, key, string(data), w.ResetAt.Sub(now)); err != nil {
		return fmt.Errorf("failed to write rate limit counter: %w", err)
	}
	return nil
}

func (l *Limiter) admitAtomic(ctx context.Context, identity string) error {
	n, err := l.counter.Incr(ctx, atomicKeyPrefix+identity, l.window)
	if err != nil {
		return fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if n > int64(l.limit) {
		return &LimitError{Identity: identity, Limit: l.limit, RetryAfter: l.window}
	}
	return nil
}
