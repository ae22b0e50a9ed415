package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

func offerExpiryKey(tripID string) string  { return fmt.Sprintf("trip:%s:offer_expiry", tripID) }
func riderNoShowKey(tripID string) string  { return fmt.Sprintf("trip:%s:rider_ns", tripID) }
func driverNoShowKey(tripID string) string { return fmt.Sprintf("trip:%s:driver_ns", tripID) }

// TimerStore keeps per-trip expiry markers in Redis. Each timer is an
// absolute-expiry timestamp stored with a TTL matching the timer duration,
// so the key cleans itself up.
//
// The missing-key semantics are deliberately asymmetric: a missing offer
// timer reads as already expired, while a missing no-show timer reads as not
// yet triggered. This is business policy, not an accident.
type TimerStore struct {
	client *redis.Client
}

// NewTimerStore creates a new TimerStore.
func NewTimerStore(client *redis.Client) *TimerStore {
	return &TimerStore{client: client}
}

// SetOfferExpiry arms the offer-expiry timer for a trip.
func (s *TimerStore) SetOfferExpiry(ctx context.Context, tripID string, d time.Duration) error {
	return s.setTimer(ctx, offerExpiryKey(tripID), d)
}

// SetRiderNoShow arms the rider no-show timer for a trip.
func (s *TimerStore) SetRiderNoShow(ctx context.Context, tripID string, d time.Duration) error {
	return s.setTimer(ctx, riderNoShowKey(tripID), d)
}

// SetDriverNoShow arms the driver no-show timer for a trip.
func (s *TimerStore) SetDriverNoShow(ctx context.Context, tripID string, d time.Duration) error {
	return s.setTimer(ctx, driverNoShowKey(tripID), d)
}

// IsOfferExpired reports whether the offer window has passed. A missing key
// counts as expired.
func (s *TimerStore) IsOfferExpired(ctx context.Context, tripID string) (bool, error) {
	deadline, ok, err := s.getTimer(ctx, offerExpiryKey(tripID))
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	return !time.Now().Before(deadline), nil
}

// IsRiderNoShow reports whether the rider no-show deadline has passed. A
// missing key counts as not triggered.
func (s *TimerStore) IsRiderNoShow(ctx context.Context, tripID string) (bool, error) {
	return s.isNoShow(ctx, riderNoShowKey(tripID))
}

// IsDriverNoShow reports whether the driver no-show deadline has passed. A
// missing key counts as not triggered.
func (s *TimerStore) IsDriverNoShow(ctx context.Context, tripID string) (bool, error) {
	return s.isNoShow(ctx, driverNoShowKey(tripID))
}

// ClearNoShow removes the rider and driver no-show timers in one delete.
func (s *TimerStore) ClearNoShow(ctx context.Context, tripID string) error {
	return s.client.Del(ctx, riderNoShowKey(tripID), driverNoShowKey(tripID)).Err()
}

// ClearAll removes every timer for the trip.
func (s *TimerStore) ClearAll(ctx context.Context, tripID string) error {
	return s.client.Del(ctx, offerExpiryKey(tripID), riderNoShowKey(tripID), driverNoShowKey(tripID)).Err()
}

func (s *TimerStore) setTimer(ctx context.Context, key string, d time.Duration) error {
	deadline := time.Now().Add(d).UnixMilli()
	return s.client.Set(ctx, key, strconv.FormatInt(deadline, 10), d).Err()
}

func (s *TimerStore) getTimer(ctx context.Context, key string) (time.Time, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed timer value %q: %w", val, err)
	}
	return time.UnixMilli(ms), true, nil
}

func (s *TimerStore) isNoShow(ctx context.Context, key string) (bool, error) {
	deadline, ok, err := s.getTimer(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return !time.Now().Before(deadline), nil
}
