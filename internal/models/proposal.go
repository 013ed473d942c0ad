// Package models defines the data types of the proposal engine.
package models

import (
	"encoding/json"
	"slices"
	"time"
)

// Proposal is a guest's offer to rent a listing, tracked to activation or
// termination. It owns its negotiation rounds, virtual meeting and history;
// guest, host and listing are references only.
type Proposal struct {
	ID                            string             `json:"id"`
	GuestID                       string             `json:"guest_id"`
	HostID                        string             `json:"host_id"`
	ListingID                     string             `json:"listing_id"`
	Status                        Status             `json:"status"`
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
	History                       []HistoryEntry     `json:"-"`
	Revision                      int64              `json:"revision"`
	CreatedAt                     time.Time          `json:"created_at"`
	ModifiedAt                    time.Time          `json:"modified_at"`
}

// Clone returns a deep copy so a transition can be applied all-or-nothing.
func (p *Proposal) Clone() *Proposal {
	c := *p
	c.Negotiation = make([]NegotiationRound, len(p.Negotiation))
	for i, r := range p.Negotiation {
		c.Negotiation[i] = r.clone()
	}

	c.History = slices.Clone(p.History)

	if p.VirtualMeeting != nil {
		vm := p.VirtualMeeting.clone()
		c.VirtualMeeting = &vm
	}

	if p.CancellationReason != nil {
		reason := *p.CancellationReason
		c.CancellationReason = &reason
	}

	return &c
}

// LastHistory returns the most recent history entry, if any.
func (p *Proposal) LastHistory() (HistoryEntry, bool) {
	if len(p.History) == 0 {
		return HistoryEntry{}, false
	}

	return p.History[len(p.History)-1], true
}

// HistorySince returns the entries appended after seq.
func (p *Proposal) HistorySince(seq int64) []HistoryEntry {
	for i, e := range p.History {
		if e.Seq > seq {
			return p.History[i:]
		}
	}

	return nil
}

// Reminders returns the reminder counter for a party.
func (p *Proposal) Reminders(role Role) int {
	switch role {
	case RoleGuest:
		return p.RemindersByGuest
	case RoleHost:
		return p.RemindersByHost
	default:
		return 0
	}
}

// PartyID returns the referenced identity for a party role.
func (p *Proposal) PartyID(role Role) string {
	switch role {
	case RoleGuest:
		return p.GuestID
	case RoleHost:
		return p.HostID
	default:
		return ""
	}
}

// HistoryEntry is one write-once audit record: a single field's before and
// after values, stamped with the revision of the call that produced it.
type HistoryEntry struct {
	ProposalID string          `json:"proposal_id"`
	Seq        int64           `json:"seq"`
	Revision   int64           `json:"revision"`
	Timestamp  time.Time       `json:"timestamp"`
	Actor      Role            `json:"actor"`
	ActorID    string          `json:"actor_id,omitempty"`
	Field      string          `json:"field"`
	Before     json.RawMessage `json:"before"`
	After      json.RawMessage `json:"after"`
}

// HistoryQuery holds filters for paginated history lookups.
type HistoryQuery struct {
	ProposalID string
	Field      string // optional filter
	Limit      int
	Offset     int
}

// NegotiationRound is one counter-offer: the fields it touched with their
// live values before and the proposed values after.
type NegotiationRound struct {
	ProposalID   string                 `json:"proposal_id"`
	RoundIndex   int                    `json:"round_index"`
	Actor        Role                   `json:"actor"`
	ActorID      string                 `json:"actor_id,omitempty"`
	FieldChanges map[string]FieldChange `json:"field_changes"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (r NegotiationRound) clone() NegotiationRound {
	c := r
	c.FieldChanges = make(map[string]FieldChange, len(r.FieldChanges))
	for k, v := range r.FieldChanges {
		c.FieldChanges[k] = v
	}

	return c
}

// Draft document slot names.
const (
	DraftAuthorizationCard     = "authorization_card"
	DraftPayoutSchedule        = "payout_schedule"
	DraftTenancyAgreement      = "tenancy_agreement"
	DraftSupplementalAgreement = "supplemental_agreement"
)

// DraftSlots lists the four draft document slots in display order.
var DraftSlots = []string{
	DraftAuthorizationCard,
	DraftPayoutSchedule,
	DraftTenancyAgreement,
	DraftSupplementalAgreement,
}

// DraftDocuments holds references to the four lease drafts.
type DraftDocuments struct {
	AuthorizationCard     string `json:"authorization_card,omitempty"`
	PayoutSchedule        string `json:"payout_schedule,omitempty"`
	TenancyAgreement      string `json:"tenancy_agreement,omitempty"`
	SupplementalAgreement string `json:"supplemental_agreement,omitempty"`
}

func (d *DraftDocuments) slot(name string) (*string, bool) {
	switch name {
	case DraftAuthorizationCard:
		return &d.AuthorizationCard, true
	case DraftPayoutSchedule:
		return &d.PayoutSchedule, true
	case DraftTenancyAgreement:
		return &d.TenancyAgreement, true
	case DraftSupplementalAgreement:
		return &d.SupplementalAgreement, true
	default:
		return nil, false
	}
}

// Get returns the reference stored in a slot.
func (d *DraftDocuments) Get(name string) (string, error) {
	p, ok := d.slot(name)
	if !ok {
		return "", ErrUnknownDraft
	}

	return *p, nil
}

// Set stores ref in a slot.
func (d *DraftDocuments) Set(name, ref string) error {
	p, ok := d.slot(name)
	if !ok {
		return ErrUnknownDraft
	}
	*p = ref

	return nil
}

// Missing returns the slots that have no reference yet.
func (d *DraftDocuments) Missing() []string {
	var missing []string
	for _, name := range DraftSlots {
		if ref, _ := d.Get(name); ref == "" {
			missing = append(missing, name)
		}
	}

	return missing
}
