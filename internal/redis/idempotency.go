package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyTTL     = 24 * time.Hour
	idempotencyPending = "__pending__"
	pendingTTL         = 30 * time.Second
)

// ErrInFlight is returned when another request holding the same idempotency
// key is still executing.
var ErrInFlight = errors.New("request with this idempotency key is in flight")

// IdempotencyStore caches the full response of a prior mutating call under a
// client-supplied key. A stored response is replayed verbatim instead of
// re-executing the use case.
//
// The miss-to-store window is closed with an atomic reserve: callers SETNX a
// pending marker before running the use case, so a concurrent duplicate sees
// ErrInFlight instead of double-executing.
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates a new IdempotencyStore.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// GetResponse returns the stored response for key, nil if none exists, or
// ErrInFlight if the key is reserved but not yet filled.
func (s *IdempotencyStore) GetResponse(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, "idempotency:"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if string(data) == idempotencyPending {
		return nil, ErrInFlight
	}
	return data, nil
}

// Reserve atomically claims key before the use case runs. It returns false
// when the key is already reserved or filled.
func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	return s.client.SetNX(ctx, "idempotency:"+key, idempotencyPending, pendingTTL).Result()
}

// SetResponse fills a reserved key with the response, extending the TTL to
// the full 24-hour replay window.
func (s *IdempotencyStore) SetResponse(ctx context.Context, key string, response []byte) error {
	return s.client.Set(ctx, "idempotency:"+key, response, idempotencyTTL).Err()
}

// Release drops a reservation after a failed use case so the client can
// retry with the same key.
func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, "idempotency:"+key).Err()
}
