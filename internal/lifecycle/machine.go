package lifecycle

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splitlease/proposals/internal/models"
)

// Default cancellation reasons used when the caller supplies none.
const (
	ReasonRejectedByHost    = "rejected by host"
	ReasonCounterDeclined   = "counteroffer declined by guest"
	ReasonCancelledByGuest  = "cancelled by guest"
	ReasonCancelledPlatform = "cancelled by platform"
	ReasonExpired           = "expired"
)

// Command identifies who is calling an operation.
type Command struct {
	Actor   models.Role
	ActorID string
	// Override lets the platform mutate a finalized proposal.
	Override bool
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithIDGenerator injects the generator used for proposal and meeting ids.
func WithIDGenerator(newID func() string) Option {
	return func(m *Machine) { m.newID = newID }
}

// WithReminderLimit overrides MaxReminders.
func WithReminderLimit(n int) Option {
	return func(m *Machine) { m.throttle.Max = n }
}

// Machine is the proposal state machine. Every operation takes the current
// proposal and returns the next one; the input is never modified. A failed
// operation returns a nil proposal and an error. An operation that changes
// nothing returns the input proposal itself with the same Revision.
type Machine struct {
	now         func() time.Time
	newID       func() string
	trail       *Trail
	throttle    Throttle
	negotiation *NegotiationLog
	meetings    *Meetings
}

// NewMachine creates a state machine.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		now:      time.Now,
		newID:    uuid.NewString,
		throttle: Throttle{Max: MaxReminders},
	}

	for _, opt := range opts {
		opt(m)
	}

	m.trail = NewTrail(m.now)
	m.negotiation = &NegotiationLog{now: m.now}
	m.meetings = &Meetings{now: m.now, newID: m.newID}

	return m
}

// Now returns the machine's clock reading.
func (m *Machine) Now() time.Time {
	return m.now()
}

// Throttle returns the reminder throttle in use.
func (m *Machine) Throttle() Throttle {
	return m.throttle
}

// txn is one in-flight operation on a cloned proposal.
type txn struct {
	m        *Machine
	p        *models.Proposal
	cmd      Command
	op       Operation
	appended int
}

// record appends a history entry when the encoded value actually changed.
func (x *txn) record(field string, before, after any) error {
	b, err := encode(before)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", field, err)
	}

	a, err := encode(after)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", field, err)
	}

	if models.Equal(b, a) {
		return nil
	}

	if _, err := x.m.trail.Record(x.p, x.cmd.Actor, x.cmd.ActorID, field, b, a); err != nil {
		return err
	}
	x.appended++

	return nil
}

// set assigns a value and records the change.
func (x *txn) set(field string, ptr *bool, v bool) error {
	return setField(x, field, ptr, v)
}

func setField[T comparable](x *txn, field string, ptr *T, v T) error {
	if *ptr == v {
		return nil
	}

	before := *ptr
	*ptr = v

	return x.record(field, before, v)
}

// edge finds the transition for the running operation or fails with
// InvalidTransition.
func (x *txn) edge() (Edge, error) {
	e, ok := Lookup(x.p.Status, x.op, x.cmd.Actor)
	if !ok {
		return Edge{}, models.NewTransitionError(x.p.Status, string(x.op), x.cmd.Actor)
	}

	return e, nil
}

// move applies a status edge. Entering a terminal clears the virtual meeting,
// and entering a cancellation terminal stores the reason.
func (x *txn) move(e Edge, reason string) error {
	before := x.p.Status
	x.p.Status = e.To

	if err := x.record("status", before, e.To); err != nil {
		return err
	}

	if !IsTerminal(e.To) {
		return nil
	}

	if e.To.IsCancellation() {
		r := reason
		x.p.CancellationReason = &r

		if err := x.record("cancellation_reason", nil, r); err != nil {
			return err
		}
	}

	return x.m.meetings.clear(x)
}

// allow checks that the running operation is permitted to role set.
func (x *txn) allow(roles ...models.Role) error {
	for _, r := range roles {
		if x.cmd.Actor == r {
			return nil
		}
	}

	return models.NewTransitionError(x.p.Status, string(x.op), x.cmd.Actor)
}

// within checks the proposal is in one of statuses.
func (x *txn) within(statuses ...models.Status) error {
	for _, s := range statuses {
		if x.p.Status == s {
			return nil
		}
	}

	return models.NewTransitionError(x.p.Status, string(x.op), x.cmd.Actor)
}

func (m *Machine) apply(p *models.Proposal, cmd Command, op Operation, fn func(x *txn) error) (*models.Proposal, error) {
	if p == nil {
		return nil, models.ErrProposalNotFound
	}

	if !cmd.Actor.IsValid() {
		return nil, models.ErrInvalidRole
	}

	desc, ok := Describe(p.Status)
	if !ok {
		return nil, models.NewTransitionError(p.Status, string(op), cmd.Actor)
	}

	switch {
	case desc.Terminal && op == OpDelete:
		if p.Deleted {
			return p, nil
		}

		if !desc.DeletePermitted {
			return nil, models.NewTransitionError(p.Status, string(op), cmd.Actor)
		}
	case desc.Terminal && Produces(op, cmd.Actor, p.Status):
		return p, nil
	case desc.Terminal, op == OpDelete:
		return nil, models.NewTransitionError(p.Status, string(op), cmd.Actor)
	}

	if p.IsFinalized && !lockExempt(op) && !(cmd.Override && cmd.Actor == models.RolePlatform) {
		return nil, &models.Error{
			Code:     models.CodeProposalFinalized,
			Message:  fmt.Sprintf("proposal %s is finalized; %s requires a platform override", p.ID, op),
			Metadata: map[string]string{"Operation": string(op), "Actor": string(cmd.Actor)},
		}
	}

	x := &txn{m: m, p: p.Clone(), cmd: cmd, op: op}
	if err := fn(x); err != nil {
		return nil, err
	}

	if x.appended == 0 {
		return p, nil
	}

	x.p.Revision++

	return x.p, nil
}

// Create opens a proposal in Pending.
func (m *Machine) Create(req models.CreateProposalRequest, cmd Command) (*models.Proposal, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if cmd.Actor != models.RoleGuest && cmd.Actor != models.RolePlatform {
		return nil, models.NewTransitionError("", string(OpCreate), cmd.Actor)
	}

	now := m.now().UTC()
	p := &models.Proposal{
		ID:                 m.newID(),
		GuestID:            req.GuestID,
		HostID:             req.HostID,
		ListingID:          req.ListingID,
		Status:             models.StatusPending,
		RentalAppRequested: req.RentalAppRequested,
		Negotiation:        []models.NegotiationRound{},
		CreatedAt:          now,
		ModifiedAt:         now,
	}

	x := &txn{m: m, p: p, cmd: cmd, op: OpCreate}
	if err := x.record("status", nil, models.StatusPending); err != nil {
		return nil, err
	}
	p.Revision = 1

	return p, nil
}

// Submit stores the terms snapshot and sends the proposal on to the rental
// application step or straight to host review.
func (m *Machine) Submit(p *models.Proposal, cmd Command, terms models.Terms) (*models.Proposal, error) {
	return m.apply(p, cmd, OpSubmit, func(x *txn) error {
		if _, ok := Lookup(x.p.Status, OpSubmit, x.cmd.Actor); !ok {
			return models.NewTransitionError(x.p.Status, string(OpSubmit), x.cmd.Actor)
		}

		if err := terms.Validate(); err != nil {
			return models.NewPreconditionError(string(OpSubmit), "complete terms: "+err.Error())
		}

		target := models.StatusHostReview
		if x.p.RentalAppRequested && x.p.RentalApplicationRef == "" {
			target = models.StatusAwaitingRentalApplication
		}

		e, ok := LookupTo(x.p.Status, OpSubmit, x.cmd.Actor, target)
		if !ok {
			return models.NewTransitionError(x.p.Status, string(OpSubmit), x.cmd.Actor)
		}

		if err := x.replaceTerms(terms); err != nil {
			return err
		}

		return x.move(e, "")
	})
}

// replaceTerms swaps the whole snapshot, recording each field that changed.
func (x *txn) replaceTerms(next models.Terms) error {
	for _, name := range models.TermFieldNames() {
		before, err := x.p.Terms.Get(name)
		if err != nil {
			return err
		}

		after, err := next.Get(name)
		if err != nil {
			return err
		}

		if err := x.record("terms."+name, before, after); err != nil {
			return err
		}
	}
	x.p.Terms = next

	return nil
}

// CompleteApplication attaches the rental application and moves to host
// review. An empty ref reuses one attached earlier.
func (m *Machine) CompleteApplication(p *models.Proposal, cmd Command, ref string) (*models.Proposal, error) {
	return m.apply(p, cmd, OpApplicationCompleted, func(x *txn) error {
		e, err := x.edge()
		if err != nil {
			return err
		}

		ref = strings.TrimSpace(ref)
		if ref == "" {
			ref = x.p.RentalApplicationRef
		}

		if ref == "" {
			return models.NewPreconditionError(string(OpApplicationCompleted), "a rental application reference")
		}

		if err := setField(x, "rental_application_ref", &x.p.RentalApplicationRef, ref); err != nil {
			return err
		}

		return x.move(e, "")
	})
}

// Accept is the host accepting the guest's terms as they stand.
func (m *Machine) Accept(p *models.Proposal, cmd Command) (*models.Proposal, error) {
	return m.apply(p, cmd, OpAccept, func(x *txn) error {
		e, err := x.edge()
		if err != nil {
			return err
		}

		return x.move(e, "")
	})
}

// Reject is the host rejecting during review, or the guest declining a
// counter-offer, which cancels the proposal on the guest's side.
func (m *Machine) Reject(p *models.Proposal, cmd Command, reason string) (*models.Proposal, error) {
	return m.apply(p, cmd, OpReject, func(x *txn) error {
		e, err := x.edge()
		if err != nil {
			return err
		}

		def := ReasonRejectedByHost
		if e.To == models.StatusCancelledByGuest {
			def = ReasonCounterDeclined
		}

		return x.move(e, orDefault(reason, def))
	})
}

// Counter records a counter-offer round, applies its values to the live
// terms and hands the turn to the other party.
func (m *Machine) Counter(p *models.Proposal, cmd Command, changes map[string]json.RawMessage) (*models.Proposal, error) {
	return m.apply(p, cmd, OpCounter, func(x *txn) error {
		if _, err := m.negotiation.propose(x, changes); err != nil {
			return err
		}

		e, err := x.edge()
		if err != nil {
			return err
		}

		return x.move(e, "")
	})
}

// AcceptCounter is the guest accepting the host's counter-offer.
func (m *Machine) AcceptCounter(p *models.Proposal, cmd Command) (*models.Proposal, error) {
	return m.apply(p, cmd, OpAcceptCounter, func(x *txn) error {
		e, err := x.edge()
		if err != nil {
			return err
		}

		return x.move(e, "")
	})
}

// AttachDraft stores a lease draft reference while documents are drafted.
func (m *Machine) AttachDraft(p *models.Proposal, cmd Command, slot, ref string) (*models.Proposal, error) {
	return m.apply(p, cmd, OpAttachDraft, func(x *txn) error {
		if err := x.allow(models.RolePlatform); err != nil {
			return err
		}

		if err := x.within(models.StatusAcceptedDraftingDocuments); err != nil {
			return err
		}

		before, err := x.p.DraftDocuments.Get(slot)
		if err != nil {
			return err
		}

		if strings.TrimSpace(ref) == "" {
			return models.NewPreconditionError(string(OpAttachDraft), "a document reference")
		}

		if err := x.p.DraftDocuments.Set(slot, ref); err != nil {
			return err
		}

		return x.record("draft_documents."+slot, before, ref)
	})
}

// DocumentsDrafted sends the lease drafts to both parties for review. All
// four draft slots must be filled.
func (m *Machine) DocumentsDrafted(p *models.Proposal, cmd Command) (*models.Proposal, error) {
	return m.apply(p, cmd, OpDocumentsDrafted, func(x *txn) error {
		e, err := x.edge()
		if err != nil {
			return err
		}

		if missing := x.p.DraftDocuments.Missing(); len(missing) > 0 {
			return models.NewPreconditionError(string(OpDocumentsDrafted), "draft documents "+strings.Join(missing, ", "))
		}

		return x.move(e, "")
	})
}

// FinalizeReview records that the calling party finished reviewing the lease
// documents. Once both have, the proposal moves to signature.
func (m *Machine) FinalizeReview(p *models.Proposal, cmd Command) (*models.Proposal, error) {
	return m.apply(p, cmd, OpFinalizeReview, func(x *txn) error {
		if err := x.allow(models.RoleGuest, models.RoleHost); err != nil {
			return err
		}

		if err := x.within(models.StatusLeaseDocsSentForReview); err != nil {
			return err
		}

		if x.cmd.Actor == models.RoleGuest {
			if err := x.set("guest_documents_review_finalized", &x.p.GuestDocumentsReviewFinalized, true); err != nil {
				return err
			}
		} else {
			if err := x.set("host_documents_review_finalized", &x.p.HostDocumentsReviewFinalized, true); err != nil {
				return err
			}
		}

		if !x.p.GuestDocumentsReviewFinalized || !x.p.HostDocumentsReviewFinalized {
			return nil
		}

		e, ok := Lookup(x.p.Status, OpBothFinalizeReview, x.cmd.Actor)
		if !ok {
			return models.NewTransitionError(x.p.Status, string(OpBothFinalizeReview), x.cmd.Actor)
		}

		return x.move(e, "")
	})
}

// PaymentSubmitted activates the lease and locks the proposal.
func (m *Machine) PaymentSubmitted(p *models.Proposal, cmd Command) (*models.Proposal, error) {
	return m.apply(p, cmd, OpPaymentSubmitted, func(x *txn) error {
		e, err := x.edge()
		if err != nil {
			return err
		}

		if err := x.set("is_finalized", &x.p.IsFinalized, true); err != nil {
			return err
		}

		return x.move(e, "")
	})
}

// CancelByGuest withdraws the proposal on the guest's side.
func (m *Machine) CancelByGuest(p *models.Proposal, cmd Command, reason string) (*models.Proposal, error) {
	return m.apply(p, cmd, OpCancelByGuest, func(x *txn) error {
		e, err := x.edge()
		if err != nil {
			return err
		}

		return x.move(e, orDefault(reason, ReasonCancelledByGuest))
	})
}

// CancelByPlatform cancels the proposal administratively.
func (m *Machine) CancelByPlatform(p *models.Proposal, cmd Command, reason string) (*models.Proposal, error) {
	return m.apply(p, cmd, OpCancelByPlatform, func(x *txn) error {
		e, err := x.edge()
		if err != nil {
			return err
		}

		return x.move(e, orDefault(reason, ReasonCancelledPlatform))
	})
}

// Delete soft-deletes a rejected or cancelled proposal.
func (m *Machine) Delete(p *models.Proposal, cmd Command) (*models.Proposal, error) {
	return m.apply(p, cmd, OpDelete, func(x *txn) error {
		return x.set("deleted", &x.p.Deleted, true)
	})
}

// Remind sends a reminder nudge to the counterpart.
func (m *Machine) Remind(p *models.Proposal, cmd Command) (*models.Proposal, error) {
	return m.apply(p, cmd, OpRemind, m.throttle.record)
}

// Finalize locks the proposal against party mutations.
func (m *Machine) Finalize(p *models.Proposal, cmd Command) (*models.Proposal, error) {
	return m.apply(p, cmd, OpFinalize, func(x *txn) error {
		if err := x.allow(models.RolePlatform); err != nil {
			return err
		}

		return x.set("is_finalized", &x.p.IsFinalized, true)
	})
}

// Unlock clears a platform lock on an open proposal.
func (m *Machine) Unlock(p *models.Proposal, cmd Command) (*models.Proposal, error) {
	return m.apply(p, cmd, OpUnlock, func(x *txn) error {
		if err := x.allow(models.RolePlatform); err != nil {
			return err
		}

		return x.set("is_finalized", &x.p.IsFinalized, false)
	})
}

// RequestMeeting opens a virtual meeting request with suggested dates.
func (m *Machine) RequestMeeting(p *models.Proposal, cmd Command, dates []time.Time) (*models.Proposal, error) {
	return m.apply(p, cmd, OpRequestMeeting, func(x *txn) error {
		return m.meetings.request(x, dates)
	})
}

// BookMeeting books the requested meeting on date.
func (m *Machine) BookMeeting(p *models.Proposal, cmd Command, date time.Time) (*models.Proposal, error) {
	return m.apply(p, cmd, OpBookMeeting, func(x *txn) error {
		return m.meetings.book(x, date)
	})
}

// ConfirmMeeting is the platform confirming a booked meeting.
func (m *Machine) ConfirmMeeting(p *models.Proposal, cmd Command) (*models.Proposal, error) {
	return m.apply(p, cmd, OpConfirmMeeting, m.meetings.confirm)
}

// DeclineMeeting declines a requested or booked meeting.
func (m *Machine) DeclineMeeting(p *models.Proposal, cmd Command) (*models.Proposal, error) {
	return m.apply(p, cmd, OpDeclineMeeting, m.meetings.decline)
}

// lockExempt lists operations that ignore the finalized lock. The lock
// operations themselves still require the platform.
func lockExempt(op Operation) bool {
	return op == OpFinalize || op == OpUnlock || op == OpDelete
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}

	return s
}
