package models

import "time"

// Event types published after a transition commits.
const (
	EventProposalCreated    = "proposal.created"
	EventStatusChanged      = "proposal.status_changed"
	EventCounterOffer       = "proposal.counter_offer"
	EventReminder           = "proposal.reminder"
	EventMeetingChanged     = "proposal.meeting_changed"
	EventProposalUpdated    = "proposal.updated"
	EventProposalDeleted    = "proposal.deleted"
	EventProposalFinalized  = "proposal.finalized"
	EventProposalUnfinalize = "proposal.unlocked"
)

// Event is a committed change, fanned out to notification collaborators.
type Event struct {
	Type       string    `json:"type"`
	ProposalID string    `json:"proposal_id"`
	Operation  string    `json:"operation"`
	Actor      Role      `json:"actor"`
	ActorID    string    `json:"actor_id,omitempty"`
	Status     Status    `json:"status"`
	Previous   Status    `json:"previous_status,omitempty"`
	Revision   int64     `json:"revision"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ListQuery filters proposal listings.
type ListQuery struct {
	GuestID        string
	HostID         string
	ListingID      string
	Status         Status
	IncludeDeleted bool
	Limit          int
	Offset         int
}
