package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/splitlease/proposals/internal/httputil"
	"github.com/splitlease/proposals/internal/metrics"
)

// respondError aborts with the shared error envelope and counts the code,
// matching what the API handlers do for service errors.
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}
