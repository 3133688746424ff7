package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCounters is an in-memory counter store with a manually advanced clock.
type fakeCounters struct {
	now         time.Time
	counts      map[string]int64
	expiries    map[string]time.Time
	expireCalls map[string]int
	incrErr     error
	expireErr   error
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{
		now:         time.Unix(1700000000, 0),
		counts:      map[string]int64{},
		expiries:    map[string]time.Time{},
		expireCalls: map[string]int{},
	}
}

func (f *fakeCounters) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fakeCounters) Incr(_ context.Context, key string) (int64, error) {
	if f.incrErr != nil {
		return 0, f.incrErr
	}
	if expiry, ok := f.expiries[key]; ok && !f.now.Before(expiry) {
		delete(f.counts, key)
		delete(f.expiries, key)
	}
	f.counts[key]++
	return f.counts[key], nil
}

func (f *fakeCounters) Expire(_ context.Context, key string, ttl time.Duration) error {
	if f.expireErr != nil {
		return f.expireErr
	}
	f.expireCalls[key]++
	f.expiries[key] = f.now.Add(ttl)
	return nil
}

func TestAllowWithinWindow(t *testing.T) {
	counters := newFakeCounters()
	limiter := New(counters)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(ctx, "convert", "203.0.113.7", 10, time.Minute), "request %d should be allowed", i+1)
	}

	assert.False(t, limiter.Allow(ctx, "convert", "203.0.113.7", 10, time.Minute), "11th request inside the window must be denied")
}

func TestAllowAfterWindowElapses(t *testing.T) {
	counters := newFakeCounters()
	limiter := New(counters)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(ctx, "convert", "203.0.113.7", 10, time.Minute))
	}
	require.False(t, limiter.Allow(ctx, "convert", "203.0.113.7", 10, time.Minute))

	counters.advance(61 * time.Second)

	assert.True(t, limiter.Allow(ctx, "convert", "203.0.113.7", 10, time.Minute), "a fresh window must admit requests again")
}

func TestWindowExpiryIsOnlySetOnFirstRequest(t *testing.T) {
	counters := newFakeCounters()
	limiter := New(counters)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		limiter.Allow(ctx, "upload", "198.51.100.2", 10, time.Minute)
	}

	// A counter that already has events in the window must not have its
	// expiry extended, otherwise the window slides.
	assert.Equal(t, 1, counters.expireCalls["upload:198.51.100.2"])

	counters.advance(61 * time.Second)
	limiter.Allow(ctx, "upload", "198.51.100.2", 10, time.Minute)
	assert.Equal(t, 2, counters.expireCalls["upload:198.51.100.2"], "the first request of the next window sets a fresh expiry")
}

func TestKeysAreIndependent(t *testing.T) {
	counters := newFakeCounters()
	limiter := New(counters)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.True(t, limiter.Allow(ctx, "convert", "203.0.113.7", 10, time.Minute))
	}
	require.False(t, limiter.Allow(ctx, "convert", "203.0.113.7", 10, time.Minute))

	assert.True(t, limiter.Allow(ctx, "convert", "203.0.113.8", 10, time.Minute), "a different caller has its own counter")
	assert.True(t, limiter.Allow(ctx, "status", "203.0.113.7", 10, time.Minute), "a different namespace has its own counter")
}

func TestFailsClosedOnCounterErrors(t *testing.T) {
	counters := newFakeCounters()
	counters.incrErr = errors.New("connection refused")
	limiter := New(counters)

	assert.False(t, limiter.Allow(context.Background(), "convert", "203.0.113.7", 10, time.Minute), "a broken counter store must deny, never admit")
}

func TestFailsClosedOnExpireErrors(t *testing.T) {
	counters := newFakeCounters()
	counters.expireErr = errors.New("connection reset")
	limiter := New(counters)

	assert.False(t, limiter.Allow(context.Background(), "convert", "203.0.113.7", 10, time.Minute))
}
