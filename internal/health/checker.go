// Package health aggregates component health for the /health endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/novatv-digital/adexclusion/internal/cache"
	"github.com/novatv-digital/adexclusion/internal/storage"
)

// ComponentStatus is one component's health report.
type ComponentStatus struct {
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemHealth is the aggregated view returned by the health endpoint.
type SystemHealth struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Components map[string]ComponentStatus `json:"components"`
	Uptime     string                     `json:"uptime"`
}

// Checker probes the storage backend and the script cache. Results are cached
// briefly so a health-check storm does not hammer the store.
type Checker struct {
	store storage.Store
	cache *cache.ScriptCache

	timeout   time.Duration
	cacheTTL  time.Duration
	startTime time.Time

	mu         sync.Mutex
	lastCheck  time.Time
	lastHealth SystemHealth
}

// NewChecker creates a Checker with a 5s probe timeout and 10s result cache.
func NewChecker(store storage.Store, scriptCache *cache.ScriptCache) *Checker {
	return &Checker{
		store:     store,
		cache:     scriptCache,
		timeout:   5 * time.Second,
		cacheTTL:  10 * time.Second,
		startTime: time.Now(),
	}
}

// CheckHealth probes all components and aggregates their status.
func (h *Checker) CheckHealth(ctx context.Context) SystemHealth {
	h.mu.Lock()
	defer h.mu.Unlock()

	if time.Since(h.lastCheck) < h.cacheTTL {
		return h.lastHealth
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	now := time.Now()
	components := make(map[string]ComponentStatus)
	overall := "healthy"

	storeStatus := h.checkStore(checkCtx)
	components["store"] = storeStatus
	overall = aggregateStatus(overall, storeStatus.Status)

	cacheStatus := h.checkCache()
	components["cache"] = cacheStatus
	overall = aggregateStatus(overall, cacheStatus.Status)

	health := SystemHealth{
		Status:     overall,
		Timestamp:  now,
		Components: components,
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
	}

	h.lastCheck = now
	h.lastHealth = health
	return health
}

// IsHealthy reports whether every component is healthy.
func (h *Checker) IsHealthy(ctx context.Context) bool {
	return h.CheckHealth(ctx).Status == "healthy"
}

func (h *Checker) checkStore(ctx context.Context) ComponentStatus {
	if err := h.store.Ping(ctx); err != nil {
		return ComponentStatus{
			Status:  "unhealthy",
			Message: "storage backend unreachable",
			Details: map[string]any{"error": err.Error()},
		}
	}
	return ComponentStatus{Status: "healthy"}
}

func (h *Checker) checkCache() ComponentStatus {
	stats := h.cache.Stats()
	status := ComponentStatus{
		Status: "healthy",
		Details: map[string]any{
			"size":      stats.Size,
			"max_size":  stats.MaxSize,
			"hits":      stats.Hits,
			"misses":    stats.Misses,
			"hit_ratio": stats.HitRatio,
		},
	}
	if stats.Size >= stats.MaxSize {
		status.Status = "degraded"
		status.Message = "script cache at capacity"
	}
	return status
}

// aggregateStatus keeps the worst status seen: unhealthy > degraded > healthy.
func aggregateStatus(current, component string) string {
	priority := map[string]int{"healthy": 0, "degraded": 1, "unhealthy": 2}
	if priority[component] > priority[current] {
		return component
	}
	return current
}
