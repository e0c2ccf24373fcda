package utils

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/mongo"
)

// HealthStatus is the latest liveness snapshot of the backing stores: the
// reservation database plus the two redis roles (idempotency cache and
// rate-limit counters).
type HealthStatus struct {
	Mongo            bool      `json:"mongo"`
	IdempotencyCache bool      `json:"idempotencyCache"`
	RateLimitStore   bool      `json:"rateLimitStore"`
	CheckedAt        time.Time `json:"checkedAt"`
}

var (
	currentHealth HealthStatus
	mu            sync.RWMutex
)

// GetHealthStatus returns latest stored health snapshot.
func GetHealthStatus() HealthStatus {
	mu.RLock()
	defer mu.RUnlock()
	return currentHealth
}

// StartHealthMonitor pings the stores periodically and updates the snapshot
// served by the health endpoint.
func StartHealthMonitor(cacheClient, rateLimitClient *redis.Client, mongoClient *mongo.Client) {
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()

		ctx := context.Background()

		for range ticker.C {
			status := HealthStatus{
				Mongo:            mongoClient.Ping(ctx, nil) == nil,
				IdempotencyCache: cacheClient.Ping(ctx).Err() == nil,
				RateLimitStore:   rateLimitClient.Ping(ctx).Err() == nil,
				CheckedAt:        time.Now(),
			}

			mu.Lock()
			currentHealth = status
			mu.Unlock()
		}
	}()
}
