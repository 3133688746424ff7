// Package ratelimit implements the fixed-window request limiter every API
// route composes with. Counters live in Redis, keyed by (namespace, caller),
// and expire with the window; the limiter itself is stateless.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Counters is the minimal counter-store surface the limiter needs. The
// production implementation is Redis; tests substitute an in-memory fake.
type Counters interface {
	// Incr atomically increments the counter at key and returns the new value,
	// creating it at 1 if absent.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets the key's time-to-live.
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// Limiter is a fixed-window rate limiter.
type Limiter struct {
	counters Counters
}

// New creates a Limiter over the given counter store.
func New(counters Counters) *Limiter {
	return &Limiter{counters: counters}
}

// Allow records one request for (namespace, callerID) and reports whether it
// fits inside the window. The TTL is written only by the request that
// observes the count transition to 1; extending it on later requests would
// silently slide the window. Any counter-store failure fails closed.
func (l *Limiter) Allow(ctx context.Context, namespace, callerID string, maxRequests int, window time.Duration) bool {
	key := fmt.Sprintf("%s:%s", namespace, callerID)

	requests, err := l.counters.Incr(ctx, key)
	if err != nil {
		slog.Error("Rate limiter counter increment failed, denying request", "key", key, "error", err)
		return false
	}

	if requests == 1 {
		if err := l.counters.Expire(ctx, key, window); err != nil {
			slog.Error("Rate limiter failed to set window expiry, denying request", "key", key, "error", err)
			return false
		}
	}

	return requests <= int64(maxRequests)
}
