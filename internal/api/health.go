// Package api provides the HTTP handlers of the proposal service.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/db"
	"github.com/splitlease/proposals/internal/dbpool"
	"github.com/splitlease/proposals/internal/ws"
)

const (
	livenessBudget  = 2 * time.Second
	readinessBudget = 3 * time.Second
)

// HealthHandler serves /health and /ready.
type HealthHandler struct {
	pool    *dbpool.Pool
	hub     *ws.Hub
	log     *logrus.Logger
	version string
	started time.Time
}

func NewHealthHandler(pool *dbpool.Pool, hub *ws.Hub, log *logrus.Logger, version string) *HealthHandler {
	return &HealthHandler{pool: pool, hub: hub, log: log, version: version, started: time.Now()}
}

type healthResponse struct {
	Status        string        `json:"status"`
	Version       string        `json:"version"`
	Database      string        `json:"database"`
	Pool          *dbpool.Usage `json:"pool,omitempty"`
	SchemaVersion int           `json:"schema_version"`
	Subscribers   int           `json:"subscribers"`
	UptimeSeconds float64       `json:"uptime_seconds"`
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Liveness handles GET /health. It always answers 200; the database state is
// informational.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Database:      "not_configured",
		SchemaVersion: db.SchemaVersion(),
		UptimeSeconds: time.Since(h.started).Seconds(),
	}

	if h.pool != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), livenessBudget)
		defer cancel()

		resp.Database = "connected"
		if err := h.pool.HealthCheck(ctx); err != nil {
			resp.Database = "disconnected"
		}

		usage := h.pool.Usage()
		resp.Pool = &usage
	}

	if h.hub != nil {
		resp.Subscribers = h.hub.ClientCount()
	}

	c.JSON(http.StatusOK, resp)
}

var errNoPool = errors.New("database not configured")

// Readiness handles GET /ready. Checks run in order; once one fails the rest
// are reported as unknown.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessBudget)
	defer cancel()

	probes := []struct {
		name string
		run  func(context.Context) error
	}{
		{"database", h.probeDatabase},
		{"schema", h.probeSchema},
	}

	resp := readinessResponse{Status: "ready", Checks: make(map[string]string, len(probes))}
	failed := false

	for _, p := range probes {
		if failed {
			resp.Checks[p.name] = "unknown"
			continue
		}

		if err := p.run(ctx); err != nil {
			failed = true
			resp.Status = "not_ready"
			resp.Checks[p.name] = "error"

			if errors.Is(err, errNoPool) {
				resp.Checks[p.name] = "not_configured"
			} else {
				h.log.WithError(err).WithField("check", p.name).Error("readiness check failed")
			}

			continue
		}

		resp.Checks[p.name] = "ok"
	}

	status := http.StatusOK
	if failed {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, resp)
}

func (h *HealthHandler) probeDatabase(ctx context.Context) error {
	if h.pool == nil {
		return errNoPool
	}

	return h.pool.HealthCheck(ctx)
}

// probeSchema looks for the last table the migrations create.
func (h *HealthHandler) probeSchema(ctx context.Context) error {
	var present bool
	if err := h.pool.QueryRow(ctx, "SELECT to_regclass('virtual_meetings') IS NOT NULL").Scan(&present); err != nil {
		return fmt.Errorf("schema check: %w", err)
	}

	if !present {
		return errors.New("schema check: virtual_meetings table missing")
	}

	return nil
}
