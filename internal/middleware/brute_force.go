package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	authFailureLimit  = 5
	authFailureWindow = 15 * time.Minute
	authLockoutBase   = 5 * time.Minute
	authLockoutMax    = time.Hour
	authSweepInterval = time.Minute
	authMaxClients    = 10_000
)

// strikeRecord counts failures for one client. Each lockout doubles the next
// one, up to authLockoutMax, until a successful request resets the client.
type strikeRecord struct {
	failures    int
	windowStart time.Time
	lockouts    int
	lockedUntil time.Time
}

func (r *strikeRecord) stale(now time.Time) bool {
	return now.After(r.lockedUntil) && now.Sub(r.windowStart) > authFailureWindow
}

// BruteForceGuard locks out client addresses that keep failing
// authentication. All callers share the service keys, so a lockout is per
// address, never per key.
type BruteForceGuard struct {
	mu      sync.Mutex
	clients map[string]*strikeRecord
	log     *logrus.Logger
	now     func() time.Time
}

// NewBruteForceGuard starts a guard whose stale records are swept until ctx
// is cancelled.
func NewBruteForceGuard(ctx context.Context, log *logrus.Logger) *BruteForceGuard {
	g := &BruteForceGuard{
		clients: make(map[string]*strikeRecord),
		log:     log,
		now:     time.Now,
	}
	go g.sweepLoop(ctx)

	return g
}

// IsBlocked reports whether client is inside a lockout.
func (g *BruteForceGuard) IsBlocked(client string) bool {
	return g.lockedFor(client) > 0
}

// lockedFor returns the remaining lockout for client, zero when not locked.
func (g *BruteForceGuard) lockedFor(client string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.clients[client]
	if !ok {
		return 0
	}

	return max(rec.lockedUntil.Sub(g.now()), 0)
}

// RecordFailure counts one failed authentication from client.
func (g *BruteForceGuard) RecordFailure(client string) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.clients[client]
	if !ok {
		if len(g.clients) >= authMaxClients {
			g.dropStale(now)
		}
		if len(g.clients) >= authMaxClients {
			// Table full of live records; the rate limiter still applies.
			return
		}

		rec = &strikeRecord{windowStart: now}
		g.clients[client] = rec
	}

	if now.Sub(rec.windowStart) > authFailureWindow {
		rec.failures = 0
		rec.windowStart = now
	}

	rec.failures++
	if rec.failures < authFailureLimit {
		return
	}

	lockout := min(authLockoutBase<<rec.lockouts, authLockoutMax)
	rec.lockouts++
	rec.failures = 0
	rec.windowStart = now
	rec.lockedUntil = now.Add(lockout)

	g.log.WithFields(logrus.Fields{
		"client_ip": client,
		"lockout":   lockout.String(),
		"strike":    rec.lockouts,
	}).Warn("client locked out after repeated authentication failures")
}

// Reset forgets client after a successful authentication.
func (g *BruteForceGuard) Reset(client string) {
	g.mu.Lock()
	delete(g.clients, client)
	g.mu.Unlock()
}

// dropStale removes records with no live window or lockout. Caller holds g.mu.
func (g *BruteForceGuard) dropStale(now time.Time) {
	for k, rec := range g.clients {
		if rec.stale(now) {
			delete(g.clients, k)
		}
	}
}

func (g *BruteForceGuard) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(authSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.mu.Lock()
			g.dropStale(g.now())
			g.mu.Unlock()
		}
	}
}

// BruteForceMiddleware turns locked-out clients away before authentication.
func BruteForceMiddleware(guard *BruteForceGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		wait := guard.lockedFor(c.ClientIP())
		if wait == 0 {
			c.Next()
			return
		}

		c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
		respondError(c, http.StatusTooManyRequests, "rate_limited", "too many failed authentication attempts")
	}
}
