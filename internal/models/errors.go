package models

import (
	"errors"
	"fmt"
)

// Code is a machine-readable engine error code.
type Code string

const (
	CodeInvalidTransition       Code = "invalid_transition"
	CodeInvalidNegotiationState Code = "invalid_negotiation_state"
	CodeProposalFinalized       Code = "proposal_finalized"
	CodeThrottleExceeded        Code = "throttle_exceeded"
	CodeConcurrentModification  Code = "concurrent_modification"
	CodeMissingPrecondition     Code = "missing_precondition"
)

// Error is an engine error. Two errors match under errors.Is when their codes
// are equal, so callers compare against the sentinels below.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}

	return false
}

// Engine error sentinels.
var (
	ErrInvalidTransition       = &Error{Code: CodeInvalidTransition, Message: "transition is not allowed"}
	ErrInvalidNegotiationState = &Error{Code: CodeInvalidNegotiationState, Message: "negotiation is not allowed in the current state"}
	ErrProposalFinalized       = &Error{Code: CodeProposalFinalized, Message: "proposal is finalized"}
	ErrThrottleExceeded        = &Error{Code: CodeThrottleExceeded, Message: "reminder limit reached"}
	ErrConcurrentModification  = &Error{Code: CodeConcurrentModification, Message: "proposal is being modified concurrently"}
	ErrMissingPrecondition     = &Error{Code: CodeMissingPrecondition, Message: "precondition not met"}
)

// NewTransitionError describes a disallowed (status, operation, actor) combination.
func NewTransitionError(status Status, op string, actor Role) *Error {
	return &Error{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("operation %s by %s is not allowed in status %s", op, actor, status),
		Metadata: map[string]string{
			"Status":    string(status),
			"Operation": op,
			"Actor":     string(actor),
		},
	}
}

// NewNegotiationError describes a rejected counter-offer.
func NewNegotiationError(status Status, actor Role, reason string) *Error {
	return &Error{
		Code:    CodeInvalidNegotiationState,
		Message: fmt.Sprintf("counter-offer by %s in status %s: %s", actor, status, reason),
		Metadata: map[string]string{
			"Status": string(status),
			"Actor":  string(actor),
		},
	}
}

// NewPreconditionError names the missing precondition.
func NewPreconditionError(op, missing string) *Error {
	return &Error{
		Code:     CodeMissingPrecondition,
		Message:  fmt.Sprintf("%s requires %s", op, missing),
		Metadata: map[string]string{"Operation": op, "Missing": missing},
	}
}

// Sentinel errors for validation.
var (
	ErrMissingID        = errors.New("id is required")
	ErrMissingGuest     = errors.New("guest_id is required")
	ErrMissingHost      = errors.New("host_id is required")
	ErrMissingListing   = errors.New("listing_id is required")
	ErrMissingReason    = errors.New("reason is required")
	ErrInvalidRole      = errors.New("role must be guest, host or platform")
	ErrUnknownTerm      = errors.New("unknown term field")
	ErrInvalidTermValue = errors.New("invalid term value")
	ErrEmptyChanges     = errors.New("at least one field change is required")
	ErrUnknownDraft     = errors.New("unknown draft document slot")
	ErrMissingDates     = errors.New("at least one suggested date is required")
	ErrInvalidDuration  = errors.New("duration must be positive")
)

// ErrProposalNotFound is returned when a proposal id does not exist.
var ErrProposalNotFound = errors.New("proposal not found")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
