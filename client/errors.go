package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned by the engine.
const (
	CodeInvalidTransition       = "invalid_transition"
	CodeInvalidNegotiationState = "invalid_negotiation_state"
	CodeProposalFinalized       = "proposal_finalized"
	CodeThrottleExceeded        = "throttle_exceeded"
	CodeConcurrentModification  = "concurrent_modification"
	CodeMissingPrecondition     = "missing_precondition"
)

// APIError represents a structured error response from the proposal API.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	RequestID  string            `json:"request_id,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("proposals: %d %s: %s (request_id=%s)", e.StatusCode, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("proposals: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func asAPIError(err error) (*APIError, bool) {
	var e *APIError
	ok := errors.As(err, &e)
	return e, ok
}

// IsNotFound returns true if the error is a 404 not found.
func IsNotFound(err error) bool {
	e, ok := asAPIError(err)
	return ok && e.StatusCode == http.StatusNotFound
}

// IsConflict returns true if the error is a 409 conflict.
func IsConflict(err error) bool {
	e, ok := asAPIError(err)
	return ok && e.StatusCode == http.StatusConflict
}

// IsRetryable returns true when the call lost a race for the proposal and
// may be retried as-is.
func IsRetryable(err error) bool {
	e, ok := asAPIError(err)
	return ok && e.Code == CodeConcurrentModification
}

// IsRateLimited returns true if the error is a 429, either from the HTTP
// rate limiter or the reminder throttle.
func IsRateLimited(err error) bool {
	e, ok := asAPIError(err)
	return ok && e.StatusCode == http.StatusTooManyRequests
}

// HasCode returns true if err is an API error carrying code.
func HasCode(err error, code string) bool {
	e, ok := asAPIError(err)
	return ok && e.Code == code
}

// parseAPIError attempts to decode a JSON error body; falls back to raw text.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = "unknown"
		apiErr.Message = string(body)
	}
	return apiErr
}
