package client

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Proposal is a guest's offer to rent a listing.
type Proposal struct {
	ID                            string             `json:"id"`
	GuestID                       string             `json:"guest_id"`
	HostID                        string             `json:"host_id"`
	ListingID                     string             `json:"listing_id"`
	Status                        string             `json:"status"`
	IsFinalized                   bool               `json:"is_finalized"`
	Deleted                       bool               `json:"deleted"`
	CounterOfferHappened          bool               `json:"counter_offer_happened"`
	Terms                         Terms              `json:"terms"`
	Negotiation                   []NegotiationRound `json:"negotiation"`
	VirtualMeeting                *VirtualMeeting    `json:"virtual_meeting,omitempty"`
	RentalAppRequested            bool               `json:"rental_app_requested"`
	RentalApplicationRef          string             `json:"rental_application_ref,omitempty"`
	GuestDocumentsReviewFinalized bool               `json:"guest_documents_review_finalized"`
	HostDocumentsReviewFinalized  bool               `json:"host_documents_review_finalized"`
	DraftDocuments                DraftDocuments     `json:"draft_documents"`
	CancellationReason            *string            `json:"cancellation_reason,omitempty"`
	RemindersByGuest              int                `json:"reminders_by_guest"`
	RemindersByHost               int                `json:"reminders_by_host"`
	Revision                      int64              `json:"revision"`
	CreatedAt                     time.Time          `json:"created_at"`
	ModifiedAt                    time.Time          `json:"modified_at"`
}

// Terms is the negotiated price and schedule snapshot.
type Terms struct {
	NightlyPrice     decimal.Decimal `json:"nightly_price"`
	CleaningFee      decimal.Decimal `json:"cleaning_fee"`
	DamageDeposit    decimal.Decimal `json:"damage_deposit"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	MoveInDate       time.Time       `json:"move_in_date"`
	ReservationWeeks int             `json:"reservation_weeks"`
	NightsPerWeek    int             `json:"nights_per_week"`
	CheckInDay       string          `json:"check_in_day,omitempty"`
	CheckOutDay      string          `json:"check_out_day,omitempty"`
}

// DraftDocuments holds references to the four lease drafts.
type DraftDocuments struct {
	AuthorizationCard     string `json:"authorization_card,omitempty"`
	PayoutSchedule        string `json:"payout_schedule,omitempty"`
	TenancyAgreement      string `json:"tenancy_agreement,omitempty"`
	SupplementalAgreement string `json:"supplemental_agreement,omitempty"`
}

// FieldChange is one before/after pair inside a negotiation round.
type FieldChange struct {
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
}

// NegotiationRound is one counter-offer.
type NegotiationRound struct {
	ProposalID   string                 `json:"proposal_id"`
	RoundIndex   int                    `json:"round_index"`
	Actor        string                 `json:"actor"`
	ActorID      string                 `json:"actor_id,omitempty"`
	FieldChanges map[string]FieldChange `json:"field_changes"`
	CreatedAt    time.Time              `json:"created_at"`
}

// VirtualMeeting is the optional scheduling handshake of a proposal.
type VirtualMeeting struct {
	ID                  string      `json:"id"`
	ProposalID          string      `json:"proposal_id"`
	State               string      `json:"state"`
	RequestedBy         string      `json:"requested_by"`
	SuggestedDates      []time.Time `json:"suggested_dates"`
	BookedDate          *time.Time  `json:"booked_date,omitempty"`
	ConfirmedByPlatform bool        `json:"confirmed_by_platform"`
	Declined            bool        `json:"declined"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// HistoryEntry is one audit record for a single field change.
type HistoryEntry struct {
	ProposalID string          `json:"proposal_id"`
	Seq        int64           `json:"seq"`
	Revision   int64           `json:"revision"`
	Timestamp  time.Time       `json:"timestamp"`
	Actor      string          `json:"actor"`
	ActorID    string          `json:"actor_id,omitempty"`
	Field      string          `json:"field"`
	Before     json.RawMessage `json:"before"`
	After      json.RawMessage `json:"after"`
}

// Affordance is one action offered to a role.
type Affordance struct {
	Action  string `json:"action,omitempty"`
	Label   string `json:"label"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
}

// ActionSet is what a role should be offered for a proposal right now.
type ActionSet struct {
	Status         string       `json:"status"`
	Role           string       `json:"role"`
	StageIndex     int          `json:"stage_index"`
	PrimaryLabel   string       `json:"primary_label"`
	SecondaryLabel string       `json:"secondary_label"`
	Visible        bool         `json:"visible"`
	Enabled        bool         `json:"enabled"`
	Affordances    []Affordance `json:"affordances"`
}

// CreateProposalRequest opens a new proposal.
type CreateProposalRequest struct {
	GuestID            string `json:"guest_id"`
	HostID             string `json:"host_id"`
	ListingID          string `json:"listing_id"`
	RentalAppRequested bool   `json:"rental_app_requested"`
}

// ListOptions filters proposal listings.
type ListOptions struct {
	GuestID        string
	HostID         string
	ListingID      string
	Status         string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// ExpireOptions tunes an expiration sweep. Zero values use server defaults.
type ExpireOptions struct {
	OlderThan time.Duration
	Limit     int
}

// ExpireResult reports the outcome of an expiration sweep.
type ExpireResult struct {
	Scanned   int      `json:"scanned"`
	Cancelled []string `json:"cancelled"`
	Skipped   []string `json:"skipped"`
}

// HealthResponse is returned by the liveness endpoint.
type HealthResponse struct {
	Status        string     `json:"status"`
	Version       string     `json:"version"`
	Database      string     `json:"database"`
	Pool          *PoolUsage `json:"pool,omitempty"`
	SchemaVersion int        `json:"schema_version"`
	Subscribers   int        `json:"subscribers"`
	UptimeSeconds float64    `json:"uptime_seconds"`
}

// PoolUsage is the server's database connection use.
type PoolUsage struct {
	InUse int32 `json:"in_use"`
	Idle  int32 `json:"idle"`
	Max   int32 `json:"max"`
}

// StatusInfo describes one lifecycle status.
type StatusInfo struct {
	Status           string `json:"status"`
	StageIndex       int    `json:"stage_index"`
	UsualOrder       int    `json:"usual_order"`
	Terminal         bool   `json:"terminal"`
	SuccessTerminal  bool   `json:"success_terminal"`
	DeletePermitted  bool   `json:"delete_permitted"`
	GuestActionLabel string `json:"guest_action_label"`
	HostActionLabel  string `json:"host_action_label"`
}

// Transition is one permitted edge of the lifecycle graph.
type Transition struct {
	From      string   `json:"from"`
	Operation string   `json:"operation"`
	Actors    []string `json:"actors"`
	To        string   `json:"to"`
}

// StatusRegistry is the static status table and transition graph.
type StatusRegistry struct {
	Statuses    []StatusInfo `json:"statuses"`
	Transitions []Transition `json:"transitions"`
}

// ReadyResponse is returned by the readiness endpoint.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
