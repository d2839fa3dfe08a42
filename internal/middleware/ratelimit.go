// Package middleware holds HTTP middleware shared across routes.
package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/novatv-digital/adexclusion/internal/domain"
)

// TokenBucket implements a token bucket rate limiter.
type TokenBucket struct {
	capacity   int
	tokens     float64 // float for fractional refill
	refillRate int     // tokens per second
	lastRefill time.Time
	mutex      sync.Mutex
}

// NewTokenBucket creates a new token bucket.
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request should be allowed.
func (tb *TokenBucket) Allow() bool {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()

	tb.tokens = min(float64(tb.capacity), tb.tokens+elapsed*float64(tb.refillRate))
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// RateLimiter manages per-client token buckets with per-endpoint limits.
// The script serving paths are exempt: the CDN fronts them and a limiter
// there would only punish cache misses.
type RateLimiter struct {
	buckets map[string]*TokenBucket
	mutex   sync.RWMutex

	defaultCapacity   int
	defaultRefillRate int

	endpointLimits map[string]struct {
		capacity   int
		refillRate int
	}
}

// NewRateLimiter creates a rate limiter with the given default rps and burst.
func NewRateLimiter(rps, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets:           make(map[string]*TokenBucket),
		defaultCapacity:   burst,
		defaultRefillRate: rps,
		endpointLimits:    make(map[string]struct{ capacity, refillRate int }),
	}

	// Editor autosave fires on every change, so sync gets headroom. Rollback
	// and purge are rare operator actions and get tight limits.
	rl.endpointLimits["/api/sync"] = struct{ capacity, refillRate int }{burst * 2, rps * 2}
	rl.endpointLimits["/api/rollback"] = struct{ capacity, refillRate int }{10, 1}
	rl.endpointLimits["/api/purge"] = struct{ capacity, refillRate int }{10, 1}
	rl.endpointLimits["/health"] = struct{ capacity, refillRate int }{20, 2}
	rl.endpointLimits["/metrics"] = struct{ capacity, refillRate int }{20, 2}

	return rl
}

// getBucket gets or creates a token bucket for a client+endpoint combination.
func (rl *RateLimiter) getBucket(clientID, endpoint string) *TokenBucket {
	key := clientID + ":" + endpoint

	rl.mutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.mutex.RUnlock()

	if exists {
		return bucket
	}

	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	limits, exists := rl.endpointLimits[endpoint]
	if !exists {
		limits = struct{ capacity, refillRate int }{rl.defaultCapacity, rl.defaultRefillRate}
	}

	bucket = NewTokenBucket(limits.capacity, limits.refillRate)
	rl.buckets[key] = bucket
	return bucket
}

func (rl *RateLimiter) getClientID(c *fiber.Ctx) string {
	if apiKey := c.Get("X-API-Key"); apiKey != "" {
		return "api:" + apiKey
	}
	if auth := c.Get("Authorization"); auth != "" {
		return "auth:" + auth
	}
	return "ip:" + c.IP()
}

// Middleware returns a Fiber middleware for rate limiting.
func (rl *RateLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		clientID := rl.getClientID(c)
		endpoint := c.Path()

		if !rl.getBucket(clientID, endpoint).Allow() {
			appErr := domain.NewAppError(
				domain.ErrRateLimited,
				"Rate limit exceeded",
				429,
				map[string]any{
					"endpoint":    endpoint,
					"retry_after": "60",
				},
			)

			c.Set("Retry-After", "60")
			c.Set("X-RateLimit-Remaining", "0")

			return c.Status(appErr.StatusCode).JSON(map[string]any{
				"status":  "error",
				"code":    appErr.Code,
				"message": appErr.Message,
				"details": appErr.Details,
			})
		}

		c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", rl.defaultCapacity))
		return c.Next()
	}
}

// CleanupOldBuckets removes buckets idle for over an hour.
func (rl *RateLimiter) CleanupOldBuckets() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := time.Now()
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		idle := now.Sub(bucket.lastRefill)
		bucket.mutex.Unlock()
		if idle > time.Hour {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine starts a background routine to clean up old buckets.
// Returns a stop function to cancel the routine.
func (rl *RateLimiter) StartCleanupRoutine() (stop func()) {
	ticker := time.NewTicker(10 * time.Minute)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				rl.CleanupOldBuckets()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() { close(done) }
}
