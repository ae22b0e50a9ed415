package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// tokenBucket tracks the refill state for one key. Tokens stay within
// [0, capacity]; every access refills first, then clamps.
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimiter throttles outbound calls per key using token buckets that
// refill continuously. State is process-local.
type RateLimiter struct {
	capacity float64
	rate     float64 // tokens per second

	mu      sync.Mutex
	buckets map[string]*tokenBucket

	now func() time.Time
}

// NewRateLimiter creates a limiter where each key gets a bucket of the given
// capacity refilling at ratePerSec tokens per second.
func NewRateLimiter(capacity, ratePerSec float64) *RateLimiter {
	return &RateLimiter{
		capacity: capacity,
		rate:     ratePerSec,
		buckets:  make(map[string]*tokenBucket),
		now:      time.Now,
	}
}

// Acquire takes n tokens for key, suspending the caller until enough tokens
// have refilled. Requesting more than the bucket capacity is a programming
// error and fails immediately.
func (l *RateLimiter) Acquire(ctx context.Context, key string, n float64) error {
	if n > l.capacity {
		return fmt.Errorf("rate limiter: requested %.1f tokens exceeds capacity %.1f", n, l.capacity)
	}

	wait, ok := l.take(key, n)
	if ok {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	l.takeClamped(key, n)
	return nil
}

// TryAcquire takes n tokens for key without blocking and reports whether it
// succeeded.
func (l *RateLimiter) TryAcquire(key string, n float64) bool {
	if n > l.capacity {
		return false
	}
	_, ok := l.take(key, n)
	return ok
}

// Tokens returns the current balance for key after refill.
func (l *RateLimiter) Tokens(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.refill(key)
	return b.tokens
}

// take attempts to consume n tokens. On shortfall it returns the duration to
// wait for the deficit to refill.
func (l *RateLimiter) take(key string, n float64) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	if b.tokens >= n {
		b.tokens -= n
		return 0, true
	}

	waitMs := (n - b.tokens) / l.rate * 1000
	return time.Duration(waitMs * float64(time.Millisecond)), false
}

// takeClamped consumes n tokens after a wait, clamping at zero so concurrent
// pressure cannot drive the balance negative.
func (l *RateLimiter) takeClamped(key string, n float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.refill(key)
	b.tokens -= n
	if b.tokens < 0 {
		b.tokens = 0
	}
}

// refill advances the bucket for key to now. Caller must hold the mutex.
func (l *RateLimiter) refill(key string) *tokenBucket {
	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: l.capacity, lastRefill: now}
		l.buckets[key] = b
		return b
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.lastRefill = now
	b.tokens += elapsed * l.rate
	if b.tokens > l.capacity {
		b.tokens = l.capacity
	}
	return b
}
