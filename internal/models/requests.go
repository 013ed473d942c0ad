package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	maxIDLen     = 255
	maxReasonLen = 2000
	maxRefLen    = 1024
	maxDates     = 10
)

func checkID(field, v string, missing error) error {
	if strings.TrimSpace(v) == "" {
		return missing
	}

	if len(v) > maxIDLen {
		return ErrFieldTooLong(field, maxIDLen)
	}

	return nil
}

// CreateProposalRequest is the payload for opening a new proposal.
type CreateProposalRequest struct {
	GuestID            string `json:"guest_id"`
	HostID             string `json:"host_id"`
	ListingID          string `json:"listing_id"`
	RentalAppRequested bool   `json:"rental_app_requested"`
}

// Validate checks that the referenced identities are present.
func (r *CreateProposalRequest) Validate() error {
	if err := checkID("guest_id", r.GuestID, ErrMissingGuest); err != nil {
		return err
	}

	if err := checkID("host_id", r.HostID, ErrMissingHost); err != nil {
		return err
	}

	return checkID("listing_id", r.ListingID, ErrMissingListing)
}

// SubmitRequest carries the price/schedule snapshot supplied at submission.
type SubmitRequest struct {
	Terms Terms `json:"terms"`
}

// ApplicationRequest references a completed rental application.
type ApplicationRequest struct {
	Ref string `json:"rental_application_ref"`
}

// Validate bounds the reference length. An empty ref is left to the engine's
// precondition check so a previously attached ref can still be used.
func (r *ApplicationRequest) Validate() error {
	if len(r.Ref) > maxRefLen {
		return ErrFieldTooLong("rental_application_ref", maxRefLen)
	}

	return nil
}

// ReasonRequest carries an optional free-text reason.
type ReasonRequest struct {
	Reason string `json:"reason"`
}

// Validate bounds the reason length.
func (r *ReasonRequest) Validate() error {
	if len(r.Reason) > maxReasonLen {
		return ErrFieldTooLong("reason", maxReasonLen)
	}

	return nil
}

// CounterRequest proposes new values for one or more term fields.
type CounterRequest struct {
	Changes map[string]json.RawMessage `json:"changes"`
}

// Validate checks field names against the negotiable set.
func (r *CounterRequest) Validate() error {
	if len(r.Changes) == 0 {
		return ErrEmptyChanges
	}

	for name := range r.Changes {
		if _, ok := termFields[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTerm, name)
		}
	}

	return nil
}

// DraftRequest attaches a document reference to a draft slot.
type DraftRequest struct {
	Ref string `json:"ref"`
}

// Validate checks the reference is present.
func (r *DraftRequest) Validate() error {
	if strings.TrimSpace(r.Ref) == "" {
		return fmt.Errorf("ref is required")
	}

	if len(r.Ref) > maxRefLen {
		return ErrFieldTooLong("ref", maxRefLen)
	}

	return nil
}

// MeetingRequest opens a virtual meeting request with candidate dates.
type MeetingRequest struct {
	SuggestedDates []time.Time `json:"suggested_dates"`
}

// Validate checks the dates list.
func (r *MeetingRequest) Validate() error {
	if len(r.SuggestedDates) == 0 {
		return ErrMissingDates
	}

	if len(r.SuggestedDates) > maxDates {
		return fmt.Errorf("at most %d suggested dates are allowed", maxDates)
	}

	for _, d := range r.SuggestedDates {
		if d.IsZero() {
			return fmt.Errorf("suggested dates must not be empty")
		}
	}

	return nil
}

// BookRequest books a virtual meeting on a date.
type BookRequest struct {
	Date time.Time `json:"date"`
}

// Validate checks the date is set.
func (r *BookRequest) Validate() error {
	if r.Date.IsZero() {
		return fmt.Errorf("date is required")
	}

	return nil
}

// ExpireRequest asks for stalled proposals to be cancelled.
type ExpireRequest struct {
	OlderThan string `json:"older_than"`
	Limit     int    `json:"limit"`
}

const maxSweepLimit = 1000

// Validate bounds the batch size.
func (r *ExpireRequest) Validate() error {
	if r.Limit < 0 || r.Limit > maxSweepLimit {
		return fmt.Errorf("limit must be between 0 and %d", maxSweepLimit)
	}

	return nil
}

// Duration parses OlderThan, falling back to def when empty.
func (r *ExpireRequest) Duration(def time.Duration) (time.Duration, error) {
	if r.OlderThan == "" {
		return def, nil
	}

	d, err := time.ParseDuration(r.OlderThan)
	if err != nil {
		return 0, fmt.Errorf("older_than: %w", err)
	}

	if d <= 0 {
		return 0, ErrInvalidDuration
	}

	return d, nil
}

// ExpireResult reports the outcome of an expiration sweep.
type ExpireResult struct {
	Scanned   int      `json:"scanned"`
	Cancelled []string `json:"cancelled"`
	Skipped   []string `json:"skipped"`
}
