package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/crypto/blake2b"
)

const (
	idempotencyPrefix  = "idempotency:"
	idempotencyPending = "pending"
)

// ErrRequestInFlight means another request holding the same idempotency key
// has not finished yet.
var ErrRequestInFlight = errors.New("a request with this idempotency key is still in progress")

// ErrIdempotencyKeyReused means the key was first used for a different request
var ErrIdempotencyKeyReused = errors.New("idempotency key was already used for a different request")

// StoredResponse is the replayable outcome of a completed request
type StoredResponse struct {
	Fingerprint string          `json:"fingerprint"`
	Status      int             `json:"status"`
	Body        json.RawMessage `json:"body"`
}

// RequestFingerprint is the hex blake2b-256 digest of v's JSON encoding. It
// ties an idempotency key to the request it was first used with.
func RequestFingerprint(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// IdempotencyStore claims request keys in Redis so retried money movements
// run once. A nil store or client turns every call into a no-op.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates a store whose keys expire after ttl
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Enabled reports whether keys are actually tracked
func (s *IdempotencyStore) Enabled() bool {
	return s != nil && s.client != nil
}

// Begin claims key for the request identified by fingerprint. It returns
// (nil, nil) when the caller now owns the key, the stored response when the
// same request already completed, ErrRequestInFlight while another holder of
// the same request is still running, and ErrIdempotencyKeyReused when the key
// belongs to a different request.
func (s *IdempotencyStore) Begin(ctx context.Context, scope, key, fingerprint string) (*StoredResponse, error) {
	if !s.Enabled() || key == "" {
		return nil, nil
	}
	redisKey := s.key(scope, key)
	pending := idempotencyPending + ":" + fingerprint

	for attempt := 0; attempt < 2; attempt++ {
		claimed, err := s.client.SetNX(ctx, redisKey, pending, s.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to claim idempotency key: %w", err)
		}
		if claimed {
			return nil, nil
		}

		value, err := s.client.Get(ctx, redisKey).Result()
		if err == redis.Nil {
			// expired between SETNX and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read idempotency key: %w", err)
		}
		if strings.HasPrefix(value, idempotencyPending+":") {
			if value != pending {
				return nil, ErrIdempotencyKeyReused
			}
			return nil, ErrRequestInFlight
		}

		var stored StoredResponse
		if err := json.Unmarshal([]byte(value), &stored); err != nil {
			return nil, fmt.Errorf("corrupt idempotency record: %w", err)
		}
		if stored.Fingerprint != fingerprint {
			return nil, ErrIdempotencyKeyReused
		}
		return &stored, nil
	}
	return nil, ErrRequestInFlight
}

// Complete records the response so later requests with the key replay it.
// resp.Fingerprint must match the one passed to Begin.
func (s *IdempotencyStore) Complete(ctx context.Context, scope, key string, resp StoredResponse) error {
	if !s.Enabled() || key == "" {
		return nil
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(scope, key), data, s.ttl).Err()
}

// Release drops the claim so the request can be retried
func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	if !s.Enabled() || key == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(scope, key)).Err()
}

func (s *IdempotencyStore) key(scope, key string) string {
	return idempotencyPrefix + scope + ":" + key
}
