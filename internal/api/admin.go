package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/models"
)

// AdminHandler serves platform-only maintenance endpoints.
type AdminHandler struct {
	sweeps     SweepService
	staleAfter time.Duration
	log        *logrus.Logger
}

// NewAdminHandler creates an AdminHandler. staleAfter is the default window
// for the expiry sweep.
func NewAdminHandler(sweeps SweepService, staleAfter time.Duration, log *logrus.Logger) *AdminHandler {
	return &AdminHandler{sweeps: sweeps, staleAfter: staleAfter, log: log}
}

// Expire handles POST /admin/expire.
func (h *AdminHandler) Expire(c *gin.Context) {
	cmd, ok := commandFor(c)
	if !ok {
		return
	}

	if cmd.Actor != models.RolePlatform {
		respondError(c, http.StatusForbidden, ErrCodeForbidden, "expiry sweeps are platform only")

		return
	}

	req, ok := bindOptional[models.ExpireRequest](c)
	if !ok {
		return
	}

	window, err := req.Duration(h.staleAfter)
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return
	}

	res, err := h.sweeps.ExpireStalled(c.Request.Context(), window, req.Limit)
	if err != nil {
		respondServiceError(c, h.log, err, "admin.expire")

		return
	}

	h.log.WithFields(logrus.Fields{
		"action":    "admin.expire",
		"actor_id":  cmd.ActorID,
		"window":    window.String(),
		"cancelled": len(res.Cancelled),
	}).Info("audit")

	c.JSON(http.StatusOK, res)
}
