// Package middleware provides the HTTP middleware of the proposal API.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	maxBuckets     = 100_000
	bucketIdleTTL  = 10 * time.Minute
	bucketSweepGap = 5 * time.Minute
)

// KeyFunc picks the bucket a request is charged to.
type KeyFunc func(c *gin.Context) string

// ByClientIP charges requests to the remote address. Proxy headers are not
// trusted (the router sets no trusted proxies), so the key cannot be spoofed.
func ByClientIP(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// ByActor charges requests to the acting party resolved by Actor. Requests
// without a party id fall back to the client address.
func ByActor(c *gin.Context) string {
	cmd, ok := CommandFrom(c)
	if !ok || cmd.ActorID == "" {
		return ByClientIP(c)
	}

	return string(cmd.Actor) + ":" + cmd.ActorID
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// RateLimiter is a token bucket per key.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   float64
	now     func() time.Time
}

// NewRateLimiter refills ratePerSec tokens per second up to burst. Idle
// buckets are swept until ctx is cancelled.
func NewRateLimiter(ctx context.Context, ratePerSec, burst int) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    float64(ratePerSec),
		burst:   float64(burst),
		now:     time.Now,
	}
	go rl.sweep(ctx)

	return rl
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(bucketSweepGap)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := rl.now().Add(-bucketIdleTTL)

			rl.mu.Lock()
			for k, b := range rl.buckets {
				if b.seen.Before(cutoff) {
					delete(rl.buckets, k)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// take spends one token from key's bucket. full reports that the table has
// no room for a new key.
func (rl *RateLimiter) take(key string) (allowed, full bool) {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		if len(rl.buckets) >= maxBuckets {
			return false, true
		}

		b = &bucket{tokens: rl.burst, seen: now}
		rl.buckets[key] = b
	}

	b.tokens = min(rl.burst, b.tokens+now.Sub(b.seen).Seconds()*rl.rate)
	b.seen = now

	if b.tokens < 1 {
		return false, false
	}

	b.tokens--

	return true, false
}

// Handler limits every request, keyed by client IP.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return rl.limit(ByClientIP, nil)
}

// Writes limits only state-changing requests, keyed by key. Reads pass
// through untouched.
func (rl *RateLimiter) Writes(key KeyFunc) gin.HandlerFunc {
	return rl.limit(key, func(c *gin.Context) bool {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return false
		default:
			return true
		}
	})
}

func (rl *RateLimiter) limit(key KeyFunc, applies func(*gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if applies != nil && !applies(c) {
			c.Next()
			return
		}

		allowed, full := rl.take(key(c))
		switch {
		case full:
			respondError(c, http.StatusTooManyRequests, "rate_limited", "too many clients")
			return
		case !allowed:
			c.Header("Retry-After", "1")
			respondError(c, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			return
		}

		c.Next()
	}
}
