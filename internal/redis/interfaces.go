package redis

import (
	"context"
	"time"

	"trips/internal/domain"
)

// PinStoreInterface defines the interface for pickup PIN operations.
type PinStoreInterface interface {
	SetPin(ctx context.Context, tripID, pin string, ttl time.Duration) error
	ValidatePin(ctx context.Context, tripID, pin string) (bool, error)
	ClearPin(ctx context.Context, tripID string) error
}

// TimerStoreInterface defines the interface for per-trip timers.
type TimerStoreInterface interface {
	SetOfferExpiry(ctx context.Context, tripID string, d time.Duration) error
	SetRiderNoShow(ctx context.Context, tripID string, d time.Duration) error
	SetDriverNoShow(ctx context.Context, tripID string, d time.Duration) error
	IsOfferExpired(ctx context.Context, tripID string) (bool, error)
	IsRiderNoShow(ctx context.Context, tripID string) (bool, error)
	IsDriverNoShow(ctx context.Context, tripID string) (bool, error)
	ClearNoShow(ctx context.Context, tripID string) error
	ClearAll(ctx context.Context, tripID string) error
}

// IdempotencyStoreInterface defines the interface for idempotent-response
// caching.
type IdempotencyStoreInterface interface {
	GetResponse(ctx context.Context, key string) ([]byte, error)
	Reserve(ctx context.Context, key string) (bool, error)
	SetResponse(ctx context.Context, key string, response []byte) error
	Release(ctx context.Context, key string) error
}

// LockStoreInterface defines the interface for distributed per-trip locking.
type LockStoreInterface interface {
	AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (bool, error)
	ReleaseTripLock(ctx context.Context, tripID string) error
	WithTripLock(ctx context.Context, tripID string, ttl time.Duration, fn func(context.Context) error) error
}

// TripCacheInterface defines the interface for the trip-state cache.
type TripCacheInterface interface {
	GetTripState(ctx context.Context, tripID string) (*CachedTripState, error)
	SetTripState(ctx context.Context, trip *domain.Trip) error
	InvalidateTrip(ctx context.Context, tripID string) error
}

// Ensure concrete types implement interfaces.
var (
	_ PinStoreInterface         = (*PinStore)(nil)
	_ TimerStoreInterface       = (*TimerStore)(nil)
	_ IdempotencyStoreInterface = (*IdempotencyStore)(nil)
	_ LockStoreInterface        = (*LockStore)(nil)
	_ TripCacheInterface        = (*TripCache)(nil)
)
