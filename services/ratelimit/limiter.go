package ratelimit

import (
	"context"
	"time"
)

// CounterStore increments a windowed counter and reports its value. The key
// already encodes the window bucket; implementations only need atomic
// increment with expiry.
type CounterStore interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Decision is the outcome of a rate-limit check. Denials are expected
// outcomes, not errors.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Scope      string
}

// Scope names one counter dimension (per-identity, per-IP, global) with its
// own limit. A request passes only if every scope allows it.
type Scope struct {
	Key   string
	Limit int
}

// Limiter implements fixed-window request counting over a CounterStore.
type Limiter struct {
	store CounterStore
	now   func() time.Time
}

func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// NewLimiterWithNow is used by tests to control window boundaries.
func NewLimiterWithNow(store CounterStore, now func() time.Time) *Limiter {
	return &Limiter{store: store, now: now}
}

// CheckAndIncrement counts this request against scopeKey's current window
// and reports whether it is within limit.
func (l *Limiter) CheckAndIncrement(ctx context.Context, scopeKey string, limit int, window time.Duration) (Decision, error) {
	now := l.now()
	windowStart := now.Truncate(window)
	bucketKey := "rl:" + scopeKey + ":" + windowStart.UTC().Format("20060102150405")

	count, err := l.store.Incr(ctx, bucketKey, window)
	if err != nil {
		return Decision{}, err
	}
	if count > int64(limit) {
		return Decision{
			Allowed:    false,
			RetryAfter: windowStart.Add(window).Sub(now),
			Scope:      scopeKey,
		}, nil
	}
	return Decision{Allowed: true}, nil
}

// CheckAll evaluates every scope conjunctively; the first denial wins.
// Counters in already-checked scopes stay incremented, which slightly
// overcounts denied requests and is acceptable for abuse control.
func (l *Limiter) CheckAll(ctx context.Context, scopes []Scope, window time.Duration) (Decision, error) {
	for _, scope := range scopes {
		decision, err := l.CheckAndIncrement(ctx, scope.Key, scope.Limit, window)
		if err != nil {
			return Decision{}, err
		}
		if !decision.Allowed {
			return decision, nil
		}
	}
	return Decision{Allowed: true}, nil
}
