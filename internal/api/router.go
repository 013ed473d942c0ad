package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/dbpool"
	"github.com/splitlease/proposals/internal/middleware"
	"github.com/splitlease/proposals/internal/ws"
)

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log         *logrus.Logger
	Pool        *dbpool.Pool
	Hub         *ws.Hub
	Proposals   ProposalService
	Meetings    MeetingService
	Sweeps      SweepService
	Keys        middleware.KeyValidator
	CORSOrigins []string
	StaleAfter  time.Duration
	Version     string
}

// Router-level limits.
const (
	maxBodySize = 1 << 20 // 1 MB
	rateLimit   = 100     // requests per second per IP
	rateBurst   = 200
	writeRate   = 10 // mutations per second per acting party
	writeBurst  = 20
)

// requestLogger writes one line per request once the handler chain is done.
func requestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"route":    c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
			"client":   c.ClientIP(),
		})
		if rid := c.GetString(middleware.RequestIDKey); rid != "" {
			entry = entry.WithField("request_id", rid)
		}
		if cmd, ok := middleware.CommandFrom(c); ok {
			entry = entry.WithField("actor", cmd.Actor)
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// setupMiddleware configures all middleware on the Gin engine.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID(deps.Log))
	r.Use(requestLogger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.JSONBody(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins: deps.CORSOrigins,
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type", "Authorization",
			middleware.ActorRoleHeader, middleware.ActorIDHeader, middleware.ActorOverrideHeader,
		},
		MaxAge:           1 * time.Hour,
		AllowCredentials: false,
	}))
	r.Use(middleware.NewRateLimiter(ctx, rateLimit, rateBurst).Handler())
	r.Use(middleware.PrometheusMiddleware())

	// Metrics endpoint (unauthenticated, like health).
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.Pool, deps.Hub, log, deps.Version)
	proposals := NewProposalHandler(deps.Proposals, log)
	meetings := NewMeetingHandler(deps.Meetings, log)
	admin := NewAdminHandler(deps.Sweeps, deps.StaleAfter, log)
	stream := NewStreamHandler(ctx, log, deps.Hub, deps.Proposals, deps.Keys, deps.CORSOrigins)

	// Health and readiness are unauthenticated.
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	// Everything else needs the service key and an acting party.
	bfGuard := middleware.NewBruteForceGuard(ctx, log)
	api.Use(middleware.BruteForceMiddleware(bfGuard))
	api.Use(middleware.Authenticate(deps.Keys, bfGuard, log))
	api.Use(middleware.Actor())
	api.Use(middleware.NewRateLimiter(ctx, writeRate, writeBurst).Writes(middleware.ByActor))

	// Proposals.
	api.GET("/proposals", proposals.List)
	api.POST("/proposals", proposals.Create)
	api.GET("/proposals/:id", proposals.Get)
	api.DELETE("/proposals/:id", proposals.Delete)
	api.POST("/proposals/:id/submit", proposals.Submit)
	api.POST("/proposals/:id/application", proposals.CompleteApplication)
	api.POST("/proposals/:id/accept", proposals.Accept)
	api.POST("/proposals/:id/reject", proposals.Reject)
	api.POST("/proposals/:id/counter", proposals.Counter)
	api.POST("/proposals/:id/accept-counter", proposals.AcceptCounter)
	api.PUT("/proposals/:id/drafts/:slot", proposals.AttachDraft)
	api.POST("/proposals/:id/documents-drafted", proposals.DocumentsDrafted)
	api.POST("/proposals/:id/review", proposals.FinalizeReview)
	api.POST("/proposals/:id/payment", proposals.PaymentSubmitted)
	api.POST("/proposals/:id/cancel", proposals.Cancel)
	api.POST("/proposals/:id/remind", proposals.Remind)
	api.POST("/proposals/:id/finalize", proposals.Finalize)
	api.POST("/proposals/:id/unlock", proposals.Unlock)

	// Read models.
	api.GET("/proposals/:id/actions", proposals.Actions)
	api.GET("/proposals/:id/history", proposals.History)
	api.GET("/proposals/:id/negotiation", proposals.Negotiation)
	api.GET("/statuses", Statuses)

	// Virtual meetings.
	api.POST("/proposals/:id/meeting", meetings.Request)
	api.POST("/proposals/:id/meeting/book", meetings.Book)
	api.POST("/proposals/:id/meeting/confirm", meetings.Confirm)
	api.POST("/proposals/:id/meeting/decline", meetings.Decline)

	// Admin.
	api.POST("/admin/expire", admin.Expire)

	// WebSocket event stream for one proposal.
	api.GET("/proposals/:id/ws", stream.Subscribe)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
