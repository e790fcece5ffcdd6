package security

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter applies a per-client token bucket. Buckets are keyed by client
// IP and pruned after a period of inactivity to bound memory.
type RateLimiter struct {
	enabled      bool
	limit        rate.Limit
	burst        int
	cleanupAfter time.Duration

	mu      sync.RWMutex
	buckets map[string]*clientBucket
}

// clientBucket pairs a limiter with its last-touch time. lastSeen holds unix
// nanos and is accessed atomically; Allow only holds the map's read lock, so
// a plain time.Time here would race with the cleanup sweep.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64
}

func (b *clientBucket) touch() {
	b.lastSeen.Store(time.Now().UnixNano())
}

// NewRateLimiter creates a rate limiter allowing requestsPerMin sustained
// requests per client with the given burst.
func NewRateLimiter(enabled bool, requestsPerMin, burst int, cleanupAfter time.Duration) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		enabled:      enabled,
		limit:        rate.Limit(float64(requestsPerMin) / 60.0),
		burst:        burst,
		cleanupAfter: cleanupAfter,
		buckets:      make(map[string]*clientBucket),
	}
}

// Allow checks if a request from the given client IP is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.enabled {
		return true
	}
	return r.getBucket(clientIP).limiter.Allow()
}

// getBucket gets or creates a token bucket for a client IP
func (r *RateLimiter) getBucket(clientIP string) *clientBucket {
	r.mu.RLock()
	bucket, exists := r.buckets[clientIP]
	r.mu.RUnlock()

	if exists {
		bucket.touch()
		return bucket
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := r.buckets[clientIP]; exists {
		bucket.touch()
		return bucket
	}

	bucket = &clientBucket{
		limiter: rate.NewLimiter(r.limit, r.burst),
	}
	bucket.touch()
	r.buckets[clientIP] = bucket
	return bucket
}

// CleanupOldBuckets removes buckets idle longer than the cleanup window.
func (r *RateLimiter) CleanupOldBuckets() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-r.cleanupAfter).UnixNano()
	for ip, bucket := range r.buckets {
		if bucket.lastSeen.Load() < cutoff {
			delete(r.buckets, ip)
			removed++
		}
	}
	return removed
}

// StartCleanup runs CleanupOldBuckets on an interval until stop is closed.
func (r *RateLimiter) StartCleanup(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.CleanupOldBuckets()
		case <-stop:
			return
		}
	}
}
