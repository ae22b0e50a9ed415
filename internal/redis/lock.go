package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when a trip lock is already held elsewhere.
var ErrLockHeld = errors.New("trip lock already held")

// LockStore handles distributed per-trip locking in Redis.
//
// The default orchestrators do not take this lock; concurrent conflicting
// requests against the same trip are only defended by the state machine's
// status guard. See DESIGN.md before changing that.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireTripLock attempts to acquire a lock for the given trip.
// Returns true if the lock was acquired, false if already held.
func (s *LockStore) AcquireTripLock(ctx context.Context, tripID string, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("trip:lock:%s", tripID)

	ok, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

// ReleaseTripLock releases the lock for the given trip.
func (s *LockStore) ReleaseTripLock(ctx context.Context, tripID string) error {
	key := fmt.Sprintf("trip:lock:%s", tripID)

	return s.client.Del(ctx, key).Err()
}

// WithTripLock runs fn while holding the trip lock, releasing it afterwards.
// Returns ErrLockHeld without running fn when the lock is taken.
func (s *LockStore) WithTripLock(ctx context.Context, tripID string, ttl time.Duration, fn func(context.Context) error) error {
	ok, err := s.AcquireTripLock(ctx, tripID, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	defer func() {
		_ = s.ReleaseTripLock(context.WithoutCancel(ctx), tripID)
	}()

	return fn(ctx)
}
