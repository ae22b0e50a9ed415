package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"trips/internal/domain"
)

// TripStateTTL bounds how long a cached trip projection stays valid. Trip
// status changes at every lifecycle step, so the window is short.
const TripStateTTL = 60 * time.Second

func tripStateKey(tripID string) string { return fmt.Sprintf("trip:state:%s", tripID) }

// CachedTripState is the small trip projection kept in Redis for fast status
// lookups by consumers and read endpoints.
type CachedTripState struct {
	ID       string `json:"id"`
	RiderID  string `json:"rider_id"`
	DriverID string `json:"driver_id,omitempty"`
	Status   string `json:"status"`
	City     string `json:"city"`
}

// TripCache handles trip-state caching in Redis.
type TripCache struct {
	client *redis.Client
}

// NewTripCache creates a new TripCache.
func NewTripCache(client *redis.Client) *TripCache {
	return &TripCache{client: client}
}

// GetTripState retrieves a cached trip projection. Returns nil on a miss.
func (c *TripCache) GetTripState(ctx context.Context, tripID string) (*CachedTripState, error) {
	data, err := c.client.Get(ctx, tripStateKey(tripID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var state CachedTripState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SetTripState stores the trip projection with the state TTL.
func (c *TripCache) SetTripState(ctx context.Context, trip *domain.Trip) error {
	state := CachedTripState{
		ID:       trip.ID,
		RiderID:  trip.RiderID,
		DriverID: trip.DriverID,
		Status:   string(trip.Status),
		City:     trip.City,
	}
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tripStateKey(trip.ID), data, TripStateTTL).Err()
}

// InvalidateTrip removes a trip projection from the cache.
func (c *TripCache) InvalidateTrip(ctx context.Context, tripID string) error {
	return c.client.Del(ctx, tripStateKey(tripID)).Err()
}
