package redis

import (
	"context"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/pbkdf2"
)

// PBKDF2 parameters for the pickup PIN hash.
const (
	pinIterations = 100000
	pinKeyLen     = 64
	pinSaltLen    = 16
)

// Attempt limiting.
const (
	maxPinAttempts = 3
	pinBlockTTL    = 15 * time.Minute
	pinAttemptsTTL = 15 * time.Minute
)

var (
	// ErrPinBlocked is returned when validation is locked out after too
	// many wrong guesses.
	ErrPinBlocked = errors.New("pin validation blocked")

	// ErrPinNotFound is returned when no PIN is stored for the trip.
	ErrPinNotFound = errors.New("no pin stored for trip")
)

func pinKey(tripID string) string         { return fmt.Sprintf("trip:%s:pin", tripID) }
func pinAttemptsKey(tripID string) string { return fmt.Sprintf("trip:%s:pin:attempts", tripID) }
func pinBlockedKey(tripID string) string  { return fmt.Sprintf("trip:%s:pin:blocked", tripID) }

// PinStore handles hashed one-time pickup codes in Redis. The plaintext PIN
// is never stored or logged; only a salt:hash record with a TTL.
type PinStore struct {
	client *redis.Client
}

// NewPinStore creates a new PinStore.
func NewPinStore(client *redis.Client) *PinStore {
	return &PinStore{client: client}
}

// SetPin hashes and stores the PIN for a trip with the given TTL, clearing
// any prior attempt or block state.
func (s *PinStore) SetPin(ctx context.Context, tripID, pin string, ttl time.Duration) error {
	record, err := hashPin(pin)
	if err != nil {
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, pinKey(tripID), record, ttl)
	pipe.Del(ctx, pinAttemptsKey(tripID), pinBlockedKey(tripID))
	_, err = pipe.Exec(ctx)
	return err
}

// ValidatePin checks the presented PIN against the stored hash. Three wrong
// guesses block further validation for 15 minutes, independent of the PIN's
// own TTL. A match clears the attempts counter.
func (s *PinStore) ValidatePin(ctx context.Context, tripID, pin string) (bool, error) {
	blocked, err := s.client.Exists(ctx, pinBlockedKey(tripID)).Result()
	if err != nil {
		return false, err
	}
	if blocked > 0 {
		return false, ErrPinBlocked
	}

	record, err := s.client.Get(ctx, pinKey(tripID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, ErrPinNotFound
		}
		return false, err
	}

	match, err := verifyPin(record, pin)
	if err != nil {
		return false, err
	}

	if match {
		if err := s.client.Del(ctx, pinAttemptsKey(tripID)).Err(); err != nil {
			return false, err
		}
		return true, nil
	}

	attempts, err := s.client.Incr(ctx, pinAttemptsKey(tripID)).Result()
	if err != nil {
		return false, err
	}
	if err := s.client.Expire(ctx, pinAttemptsKey(tripID), pinAttemptsTTL).Err(); err != nil {
		return false, err
	}
	if attempts >= maxPinAttempts {
		if err := s.client.Set(ctx, pinBlockedKey(tripID), "1", pinBlockTTL).Err(); err != nil {
			return false, err
		}
	}

	return false, nil
}

// ClearPin removes the PIN, attempts, and block keys together.
func (s *PinStore) ClearPin(ctx context.Context, tripID string) error {
	return s.client.Del(ctx, pinKey(tripID), pinAttemptsKey(tripID), pinBlockedKey(tripID)).Err()
}

// hashPin derives a salt:hash record for the PIN using PBKDF2-SHA512.
func hashPin(pin string) (string, error) {
	salt := make([]byte, pinSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := pbkdf2.Key([]byte(pin), salt, pinIterations, pinKeyLen, sha512.New)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(hash), nil
}

// verifyPin recomputes the hash with the record's salt and compares in
// constant time.
func verifyPin(record, pin string) (bool, error) {
	parts := strings.SplitN(record, ":", 2)
	if len(parts) != 2 {
		return false, fmt.Errorf("malformed pin record")
	}
	salt, err := hex.DecodeString(parts[0])
	if err != nil {
		return false, fmt.Errorf("malformed pin salt: %w", err)
	}
	stored, err := hex.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("malformed pin hash: %w", err)
	}
	computed := pbkdf2.Key([]byte(pin), salt, pinIterations, pinKeyLen, sha512.New)
	return subtle.ConstantTimeCompare(stored, computed) == 1, nil
}
