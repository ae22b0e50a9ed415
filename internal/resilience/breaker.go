package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// BreakerState is the current circuit breaker state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// BreakerConfig holds circuit breaker tuning parameters.
type BreakerConfig struct {
	// FailureThreshold is the number of failures within RollingWindow that
	// opens the breaker.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive successes in HALF_OPEN
	// required to close the breaker.
	SuccessThreshold int

	// Timeout is how long the breaker stays OPEN before probing.
	Timeout time.Duration

	// RollingWindow bounds how far back failures count toward the threshold.
	RollingWindow time.Duration
}

// DefaultBreakerConfig returns the standard breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Timeout:          30 * time.Second,
		RollingWindow:    60 * time.Second,
	}
}

// BreakerOpenError is returned when a call is rejected because the breaker
// is OPEN.
type BreakerOpenError struct {
	Name       string
	RetryAfter time.Duration
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("circuit breaker %s is open, retry after %ds", e.Name, int(e.RetryAfter.Seconds()+0.999))
}

// CircuitBreaker isolates one downstream dependency. Each instance is owned
// by the client wrapping that dependency and is never shared. State is
// process-local.
type CircuitBreaker struct {
	name string
	cfg  BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	successes   int
	failures    []time.Time
	nextAttempt time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a CLOSED breaker for the named dependency.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RollingWindow <= 0 {
		cfg.RollingWindow = 60 * time.Second
	}
	return &CircuitBreaker{
		name:  name,
		cfg:   cfg,
		state: BreakerClosed,
		now:   time.Now,
	}
}

// Name returns the dependency name this breaker guards.
func (b *CircuitBreaker) Name() string { return b.name }

// State returns the current breaker state.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn through the breaker. While OPEN it fails immediately with
// a BreakerOpenError carrying a retry-after hint; no dependency call is made.
func (b *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// TryExecute is like Execute, but runs fallback instead of failing when the
// breaker is OPEN.
func (b *CircuitBreaker) TryExecute(ctx context.Context, fn, fallback func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return fallback(ctx)
	}
	if err := fn(ctx); err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// allow decides whether a call may proceed, moving OPEN to HALF_OPEN once
// the cooldown has elapsed.
func (b *CircuitBreaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerOpen {
		return nil
	}

	now := b.now()
	if now.Before(b.nextAttempt) {
		return &BreakerOpenError{Name: b.name, RetryAfter: b.nextAttempt.Sub(now)}
	}

	b.state = BreakerHalfOpen
	b.successes = 0
	return nil
}

func (b *CircuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != BreakerHalfOpen {
		return
	}
	b.successes++
	if b.successes >= b.cfg.SuccessThreshold {
		b.state = BreakerClosed
		b.failures = nil
		b.successes = 0
	}
}

func (b *CircuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.failures = append(b.failures, now)

	// Drop failures that fell out of the rolling window.
	cutoff := now.Add(-b.cfg.RollingWindow)
	kept := b.failures[:0]
	for _, ts := range b.failures {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	b.failures = kept

	if b.state == BreakerHalfOpen || len(b.failures) >= b.cfg.FailureThreshold {
		b.state = BreakerOpen
		b.nextAttempt = now.Add(b.cfg.Timeout)
	}
}
