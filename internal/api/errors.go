package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/httputil"
	"github.com/splitlease/proposals/internal/metrics"
	"github.com/splitlease/proposals/internal/models"
)

// Error code constants for standardized API responses.
const (
	ErrCodeInvalidRequest  = "invalid_request"
	ErrCodeNotFound        = "not_found"
	ErrCodeInternalError   = "internal_error"
	ErrCodeUnauthorized    = "unauthorized"
	ErrCodeForbidden       = "forbidden"
	ErrCodeRateLimited     = "rate_limited"
	ErrCodeValidationError = "validation_error"
	ErrCodeInvalidRole     = "invalid_role"
)

// respondError writes a standardized JSON error response, pulling the request
// ID from the Gin context (set by the request ID middleware).
func respondError(c *gin.Context, status int, code, message string) {
	metrics.ErrorsTotal.WithLabelValues(code).Inc()
	httputil.RespondError(c, status, code, message)
}

// engineStatus maps engine error codes to HTTP statuses.
var engineStatus = map[models.Code]int{
	models.CodeInvalidTransition:       http.StatusConflict,
	models.CodeInvalidNegotiationState: http.StatusConflict,
	models.CodeProposalFinalized:       http.StatusConflict,
	models.CodeConcurrentModification:  http.StatusConflict,
	models.CodeThrottleExceeded:        http.StatusTooManyRequests,
	models.CodeMissingPrecondition:     http.StatusUnprocessableEntity,
}

// validationErrors are caller mistakes the engine reports as plain errors.
var validationErrors = []error{
	models.ErrInvalidRole,
	models.ErrUnknownTerm,
	models.ErrInvalidTermValue,
	models.ErrEmptyChanges,
	models.ErrUnknownDraft,
	models.ErrMissingDates,
	models.ErrMissingGuest,
	models.ErrMissingHost,
	models.ErrMissingListing,
	models.ErrInvalidDuration,
}

// respondServiceError translates a service error into a response. Anything
// unrecognised is logged and reported as a 500.
func respondServiceError(c *gin.Context, log *logrus.Logger, err error, action string) {
	var engineErr *models.Error
	if errors.As(err, &engineErr) {
		status, ok := engineStatus[engineErr.Code]
		if !ok {
			status = http.StatusConflict
		}

		metrics.ErrorsTotal.WithLabelValues(string(engineErr.Code)).Inc()
		httputil.RespondErrorDetails(c, status, string(engineErr.Code), engineErr.Message, engineErr.Metadata)

		return
	}

	if errors.Is(err, models.ErrProposalNotFound) {
		respondError(c, http.StatusNotFound, ErrCodeNotFound, "proposal not found")

		return
	}

	for _, target := range validationErrors {
		if errors.Is(err, target) {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

			return
		}
	}

	log.WithError(err).WithField("action", action).Error("proposal operation failed")
	respondError(c, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}
