package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/splitlease/proposals/internal/models"
)

// proposalColumns lists the columns selected for proposal queries.
const proposalColumns = `id, guest_id, host_id, listing_id, status,
	is_finalized, deleted, counter_offer_happened, terms,
	rental_app_requested, rental_application_ref,
	guest_documents_review_finalized, host_documents_review_finalized,
	draft_documents, cancellation_reason, reminders_by_guest, reminders_by_host,
	virtual_meeting_id, revision, created_at, modified_at`

const historyColumns = `proposal_id, seq, revision, ts, actor, actor_id, field, before, after`

const roundColumns = `proposal_id, round_index, actor, actor_id, field_changes, created_at`

const meetingColumns = `id, proposal_id, state, requested_by, suggested_dates, booked_date,
	confirmed_by_platform, declined, created_at, updated_at`

// scanProposal scans a single row into a models.Proposal. The meeting id is
// returned separately so the caller can load the meeting row.
func scanProposal(scan func(dest ...any) error) (*models.Proposal, *string, error) {
	var p models.Proposal
	var terms, drafts []byte
	var meetingID *string

	err := scan(
		&p.ID,
		&p.GuestID,
		&p.HostID,
		&p.ListingID,
		&p.Status,
		&p.IsFinalized,
		&p.Deleted,
		&p.CounterOfferHappened,
		&terms,
		&p.RentalAppRequested,
		&p.RentalApplicationRef,
		&p.GuestDocumentsReviewFinalized,
		&p.HostDocumentsReviewFinalized,
		&drafts,
		&p.CancellationReason,
		&p.RemindersByGuest,
		&p.RemindersByHost,
		&meetingID,
		&p.Revision,
		&p.CreatedAt,
		&p.ModifiedAt,
	)
	if err != nil {
		return nil, nil, err
	}

	if err := json.Unmarshal(terms, &p.Terms); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling terms: %w", err)
	}

	if err := json.Unmarshal(drafts, &p.DraftDocuments); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling draft documents: %w", err)
	}

	p.CreatedAt = p.CreatedAt.UTC()
	p.ModifiedAt = p.ModifiedAt.UTC()
	p.Negotiation = []models.NegotiationRound{}

	return &p, meetingID, nil
}

func scanHistory(scan func(dest ...any) error) (models.HistoryEntry, error) {
	var e models.HistoryEntry

	err := scan(&e.ProposalID, &e.Seq, &e.Revision, &e.Timestamp, &e.Actor, &e.ActorID, &e.Field, &e.Before, &e.After)
	if err != nil {
		return e, err
	}
	e.Timestamp = e.Timestamp.UTC()

	return e, nil
}

func scanRound(scan func(dest ...any) error) (models.NegotiationRound, error) {
	var r models.NegotiationRound
	var changes []byte

	if err := scan(&r.ProposalID, &r.RoundIndex, &r.Actor, &r.ActorID, &changes, &r.CreatedAt); err != nil {
		return r, err
	}

	if err := json.Unmarshal(changes, &r.FieldChanges); err != nil {
		return r, fmt.Errorf("unmarshalling field changes: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()

	return r, nil
}

func scanMeeting(scan func(dest ...any) error) (*models.VirtualMeeting, error) {
	var vm models.VirtualMeeting
	var dates []byte
	var booked *time.Time

	err := scan(&vm.ID, &vm.ProposalID, &vm.State, &vm.RequestedBy, &dates, &booked,
		&vm.ConfirmedByPlatform, &vm.Declined, &vm.CreatedAt, &vm.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(dates, &vm.SuggestedDates); err != nil {
		return nil, fmt.Errorf("unmarshalling suggested dates: %w", err)
	}

	if booked != nil {
		b := booked.UTC()
		vm.BookedDate = &b
	}
	vm.CreatedAt = vm.CreatedAt.UTC()
	vm.UpdatedAt = vm.UpdatedAt.UTC()

	return &vm, nil
}
