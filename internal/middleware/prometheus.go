package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/splitlease/proposals/internal/metrics"
)

// routeLabel is the matched route pattern, so /proposals/:id counts as one series.
func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}

	return "unmatched"
}

// roleLabel is the acting role once Actor has run, "none" for unauthenticated routes.
func roleLabel(c *gin.Context) string {
	if cmd, ok := CommandFrom(c); ok {
		return string(cmd.Actor)
	}

	return "none"
}

// PrometheusMiddleware records request latency and counts per route and role.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := routeLabel(c)
		status := strconv.Itoa(c.Writer.Status())

		metrics.RequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(c.Request.Method, route, status, roleLabel(c)).Inc()
	}
}
