package models

import "strings"

// Status is the proposal lifecycle stage. The set is closed: every value the
// engine can hold is listed in AllStatuses.
type Status string

const (
	StatusPending                         Status = "pending"
	StatusAwaitingRentalApplication       Status = "awaiting_rental_application"
	StatusHostReview                      Status = "host_review"
	StatusCounterofferAwaitingGuestReview Status = "counteroffer_awaiting_guest_review"
	StatusAcceptedDraftingDocuments       Status = "accepted_drafting_documents"
	StatusLeaseDocsSentForReview          Status = "lease_docs_sent_for_review"
	StatusLeaseDocsSentForSignature       Status = "lease_docs_sent_for_signature"
	StatusLeaseActivated                  Status = "lease_activated"
	StatusRejectedByHost                  Status = "rejected_by_host"
	StatusCancelledByGuest                Status = "cancelled_by_guest"
	StatusCancelledByPlatform             Status = "cancelled_by_platform"
)

// AllStatuses lists every status in usual lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusAwaitingRentalApplication,
	StatusHostReview,
	StatusCounterofferAwaitingGuestReview,
	StatusAcceptedDraftingDocuments,
	StatusLeaseDocsSentForReview,
	StatusLeaseDocsSentForSignature,
	StatusLeaseActivated,
	StatusRejectedByHost,
	StatusCancelledByGuest,
	StatusCancelledByPlatform,
}

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}

	return false
}

// IsCancellation reports whether s is a rejection or cancellation terminal,
// the only statuses that carry a cancellation reason.
func (s Status) IsCancellation() bool {
	switch s {
	case StatusRejectedByHost, StatusCancelledByGuest, StatusCancelledByPlatform:
		return true
	default:
		return false
	}
}

// ParseStatus accepts the canonical value or its upper-case label.
func ParseStatus(value string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(value)))
	if !s.IsValid() {
		return "", false
	}

	return s, true
}

// Role identifies which party is acting on a proposal.
type Role string

const (
	RoleGuest    Role = "guest"
	RoleHost     Role = "host"
	RolePlatform Role = "platform"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleGuest || r == RoleHost || r == RolePlatform
}

// IsParty reports whether r is one of the two negotiating parties.
func (r Role) IsParty() bool {
	return r == RoleGuest || r == RoleHost
}

// Counterpart returns the other negotiating party, or "" for the platform.
func (r Role) Counterpart() Role {
	switch r {
	case RoleGuest:
		return RoleHost
	case RoleHost:
		return RoleGuest
	default:
		return ""
	}
}

// ParseRole parses a role header or flag value.
func ParseRole(value string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	if !r.IsValid() {
		return "", ErrInvalidRole
	}

	return r, nil
}
