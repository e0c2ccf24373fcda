package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"slotbook/config"
	"slotbook/services/ratelimit"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// fallbackStore holds per-IP token buckets used when the shared counter
// store is unreachable and the endpoint may fail open.
type fallbackStore struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

var fallback = &fallbackStore{
	limiters: make(map[string]*rate.Limiter),
}

func (s *fallbackStore) getLimiter(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[ip]
	if !exists {
		perMin := config.AppConfig.FallbackIPLimitPerMin
		if perMin <= 0 {
			perMin = 200
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), perMin)
		s.limiters[ip] = limiter
	}
	return limiter
}

// IdentityExtractor derives the per-identity scope key from a request.
// Reservation creation uses the holder identity in the body-independent
// header; admin routes use the operator id.
type IdentityExtractor func(c *gin.Context) string

// RateLimitMiddleware evaluates per-identity, per-IP, and global windows
// conjunctively against the shared counter store. financial controls the
// failure mode when the store is unreachable: financial endpoints deny
// (unbounded payment retries are the worse failure), others fall back to the
// in-process per-IP bucket.
func RateLimitMiddleware(limiter *ratelimit.Limiter, identity IdentityExtractor, financial bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zap.L()
		cfg := config.AppConfig
		window := time.Duration(cfg.RateLimitWindowSec) * time.Second
		ip := getClientIP(c)

		scopes := []ratelimit.Scope{
			{Key: "ip:" + ip, Limit: cfg.ReserveLimitPerIP},
			{Key: "global", Limit: cfg.ReserveLimitGlobal},
		}
		if id := identity(c); id != "" {
			scopes = append([]ratelimit.Scope{{Key: "id:" + id, Limit: cfg.ReserveLimitPerIdentity}}, scopes...)
		}

		decision, err := limiter.CheckAll(c.Request.Context(), scopes, window)
		if err != nil {
			if financial {
				logger.Error("rate limit store unreachable, denying financial endpoint", zap.Error(err))
				c.Header("Retry-After", fmt.Sprintf("%d", cfg.RateLimitWindowSec))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable. Try again later."})
				return
			}
			logger.Warn("rate limit store unreachable, using local fallback", zap.Error(err))
			if !fallback.getLimiter(ip).Allow() {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
				return
			}
			c.Next()
			return
		}

		if !decision.Allowed {
			logger.Warn("Rate limit exceeded",
				zap.String("ip", ip), zap.String("scope", decision.Scope))
			c.Header("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())+1))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}
