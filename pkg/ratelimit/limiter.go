// Package ratelimit implements a fixed-window counter keyed by arbitrary
// strings. Windows reset entirely at their boundary; this is not a sliding
// window.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/magnetic-studio/studio-console/pkg/apperrors"
)

// Result reports the outcome of a single Consume call.
type Result struct {
	Allowed   bool      `json:"allowed"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Bucket is the persisted state of one key.
type Bucket struct {
	WindowStart time.Time
	Count       int
}

// Store performs the check-then-act consume step atomically for one key.
type Store interface {
	Consume(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

// Advance applies one consume step to bucket (nil means no bucket yet) and
// returns the updated bucket. Stores call this under their own per-key
// serialization.
func Advance(bucket *Bucket, limit int, window time.Duration, now time.Time) (Bucket, Result) {
	b := Bucket{WindowStart: now}
	if bucket != nil && now.Sub(bucket.WindowStart) < window {
		b = *bucket
	}

	res := Result{ResetAt: b.WindowStart.Add(window)}
	if b.Count+1 > limit {
		res.Remaining = max(limit-b.Count, 0)
		return b, res
	}
	b.Count++
	res.Allowed = true
	res.Remaining = limit - b.Count
	return b, res
}

// Limiter consumes tokens from a Store using an injectable clock.
type Limiter struct {
	store Store
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter over store.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Consume takes one token from key's current window.
func (l *Limiter) Consume(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	if limit < 0 {
		return Result{}, fmt.Errorf("rate limit for %q must not be negative", key)
	}
	if window <= 0 {
		return Result{}, fmt.Errorf("rate limit window for %q must be positive", key)
	}
	return l.store.Consume(ctx, key, limit, window, l.now())
}

// Check consumes a token and converts a rejection into a
// *apperrors.RateLimitError carrying the seconds until the window resets.
func (l *Limiter) Check(ctx context.Context, key string, limit int, window time.Duration) error {
	res, err := l.Consume(ctx, key, limit, window)
	if err != nil {
		return err
	}
	if res.Allowed {
		return nil
	}
	return &apperrors.RateLimitError{Key: key, RetryAfterSeconds: retryAfterSeconds(res.ResetAt, l.now())}
}

func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
