package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"slotbook/utils"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Result is the cached outcome of a previously executed request. Replayed
// verbatim to retries carrying the same key.
type Result struct {
	HoldID     string `json:"holdId,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`
	SessionURL string `json:"sessionUrl,omitempty"`
	StatusCode int    `json:"statusCode"`
}

// Store caches request results under client-supplied idempotency keys.
//
// The store is a performance optimization over the database's uniqueness
// constraint, not a second source of truth: implementations must surface
// backend failures as a miss so callers fail open toward the constraint.
type Store interface {
	Check(ctx context.Context, key string) (*Result, error)
	Save(ctx context.Context, key string, result Result, ttl time.Duration) error
}

const keyPrefix = "idem:"

// RedisStore backs Store with a Redis TTL cache.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Check(ctx context.Context, key string) (*Result, error) {
	data, err := s.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		// Cache unavailability must not block writes; the reservation
		// uniqueness constraint remains the true race arbiter.
		utils.GetLogger().Warn("idempotency cache unavailable, treating as miss",
			zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	var result Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		utils.GetLogger().Warn("idempotency cache entry corrupt, treating as miss",
			zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return &result, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, result Result, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		utils.GetLogger().Warn("failed to save idempotency result",
			zap.String("key", key), zap.Error(err))
	}
	return nil
}
