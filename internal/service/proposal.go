// Package service coordinates the lifecycle engine with locking, persistence,
// pricing and event delivery.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/splitlease/proposals/internal/domain"
	"github.com/splitlease/proposals/internal/lease"
	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/metrics"
	"github.com/splitlease/proposals/internal/models"
)

// ProposalStore is the data-access interface ProposalService depends on.
type ProposalStore interface {
	Insert(ctx context.Context, p *models.Proposal) error
	Transact(ctx context.Context, id string, fn func(*models.Proposal) (*models.Proposal, error)) (*models.Proposal, error)
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)
	ListProposals(ctx context.Context, q models.ListQuery) ([]models.Proposal, bool, error)
	GetHistory(ctx context.Context, q models.HistoryQuery) ([]models.HistoryEntry, bool, error)
	GetNegotiation(ctx context.Context, id string) ([]models.NegotiationRound, error)
	ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// Pricer is an alias for the canonical domain.Pricer interface.
type Pricer = domain.Pricer

// Compile-time checks: *ProposalService must satisfy every domain interface.
var (
	_ domain.ProposalService = (*ProposalService)(nil)
	_ domain.MeetingService  = (*ProposalService)(nil)
	_ domain.HistoryService  = (*ProposalService)(nil)
	_ domain.SweepService    = (*ProposalService)(nil)
)

// ProposalService runs every mutating call as: acquire the per-proposal
// lease, lock and load the row, apply the engine operation, write back,
// release, then hand the committed event to the notify worker.
type ProposalService struct {
	store    ProposalStore
	machine  *lifecycle.Machine
	leases   *lease.Manager
	notifier EventEnqueuer
	pricer   Pricer
	log      *logrus.Logger
	sweeps   singleflight.Group
}

// NewProposalService creates a ProposalService. notifier and pricer may be nil.
func NewProposalService(
	store ProposalStore,
	machine *lifecycle.Machine,
	leases *lease.Manager,
	notifier EventEnqueuer,
	pricer Pricer,
	log *logrus.Logger,
) *ProposalService {
	return &ProposalService{
		store:    store,
		machine:  machine,
		leases:   leases,
		notifier: notifier,
		pricer:   pricer,
		log:      log,
	}
}

// mutate serialises op on id and persists its result.
func (s *ProposalService) mutate(
	ctx context.Context,
	id string,
	cmd lifecycle.Command,
	op lifecycle.Operation,
	apply func(*models.Proposal) (*models.Proposal, error),
) (*models.Proposal, error) {
	release, err := s.leases.Acquire(ctx, id)
	if err != nil {
		s.observe(op, err, false)

		return nil, err
	}
	defer release()

	var previous models.Status
	var revision int64

	next, err := s.store.Transact(ctx, id, func(cur *models.Proposal) (*models.Proposal, error) {
		previous, revision = cur.Status, cur.Revision

		return apply(cur)
	})
	if err != nil {
		s.observe(op, err, false)
		s.log.WithError(err).WithFields(logrus.Fields{
			"proposal_id": id,
			"operation":   op,
			"actor":       cmd.Actor,
		}).Debug("proposal operation rejected")

		return nil, err
	}

	changed := next.Revision != revision
	s.observe(op, nil, changed)

	if changed {
		s.publish(op, cmd, previous, next)
	}

	return next, nil
}

func (s *ProposalService) observe(op lifecycle.Operation, err error, changed bool) {
	outcome := "noop"

	var engineErr *models.Error

	switch {
	case errors.As(err, &engineErr):
		outcome = string(engineErr.Code)
	case err != nil:
		outcome = "error"
	case changed:
		outcome = "ok"
	}

	metrics.TransitionsTotal.WithLabelValues(string(op), outcome).Inc()
}

func (s *ProposalService) publish(op lifecycle.Operation, cmd lifecycle.Command, previous models.Status, p *models.Proposal) {
	if s.notifier == nil {
		return
	}

	evt := models.Event{
		Type:       eventType(op, previous, p.Status),
		ProposalID: p.ID,
		Operation:  string(op),
		Actor:      cmd.Actor,
		ActorID:    cmd.ActorID,
		Status:     p.Status,
		Revision:   p.Revision,
		OccurredAt: p.ModifiedAt,
	}

	if previous != p.Status {
		evt.Previous = previous
	}

	s.notifier.Enqueue(evt)
}

func eventType(op lifecycle.Operation, previous, current models.Status) string {
	switch op {
	case lifecycle.OpCreate:
		return models.EventProposalCreated
	case lifecycle.OpCounter:
		return models.EventCounterOffer
	case lifecycle.OpRemind:
		return models.EventReminder
	case lifecycle.OpRequestMeeting, lifecycle.OpBookMeeting, lifecycle.OpConfirmMeeting, lifecycle.OpDeclineMeeting:
		return models.EventMeetingChanged
	case lifecycle.OpDelete:
		return models.EventProposalDeleted
	case lifecycle.OpFinalize:
		return models.EventProposalFinalized
	case lifecycle.OpUnlock:
		return models.EventProposalUnfinalize
	}

	if previous != current {
		return models.EventStatusChanged
	}

	return models.EventProposalUpdated
}

// CreateProposal opens a proposal in Pending.
func (s *ProposalService) CreateProposal(ctx context.Context, cmd lifecycle.Command, req models.CreateProposalRequest) (*models.Proposal, error) {
	p, err := s.machine.Create(req, cmd)
	if err != nil {
		s.observe(lifecycle.OpCreate, err, false)

		return nil, err
	}

	if err := s.store.Insert(ctx, p); err != nil {
		s.observe(lifecycle.OpCreate, err, false)

		return nil, err
	}

	s.observe(lifecycle.OpCreate, nil, true)
	s.publish(lifecycle.OpCreate, cmd, "", p)

	return p, nil
}

// GetProposal returns a single proposal (pass-through).
func (s *ProposalService) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	return s.store.GetProposal(ctx, id)
}

// ListProposals returns a paginated list of proposals (pass-through).
func (s *ProposalService) ListProposals(ctx context.Context, q models.ListQuery) ([]models.Proposal, bool, error) {
	return s.store.ListProposals(ctx, q)
}

// Submit prices the supplied terms and submits the proposal.
func (s *ProposalService) Submit(ctx context.Context, id string, cmd lifecycle.Command, req models.SubmitRequest) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpSubmit, func(cur *models.Proposal) (*models.Proposal, error) {
		terms := req.Terms

		// Wrong actor or status is reported by the machine without a quote.
		if _, ok := lifecycle.Lookup(cur.Status, lifecycle.OpSubmit, cmd.Actor); ok && s.pricer != nil {
			quoted, err := s.pricer.Quote(ctx, cur.ListingID, terms)
			if err != nil {
				return nil, fmt.Errorf("pricing proposal: %w", err)
			}
			terms = quoted
		}

		return s.machine.Submit(cur, cmd, terms)
	})
}

// CompleteApplication attaches the rental application.
func (s *ProposalService) CompleteApplication(ctx context.Context, id string, cmd lifecycle.Command, ref string) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpApplicationCompleted, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.CompleteApplication(cur, cmd, ref)
	})
}

// Accept is the host accepting the current terms.
func (s *ProposalService) Accept(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpAccept, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.Accept(cur, cmd)
	})
}

// Reject is the host rejecting or the guest declining a counter-offer.
func (s *ProposalService) Reject(ctx context.Context, id string, cmd lifecycle.Command, reason string) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpReject, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.Reject(cur, cmd, reason)
	})
}

// Counter records a counter-offer. When the change touches pricing inputs
// and the caller did not set a total, the total is re-quoted into the same
// round.
func (s *ProposalService) Counter(ctx context.Context, id string, cmd lifecycle.Command, changes map[string]json.RawMessage) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpCounter, func(cur *models.Proposal) (*models.Proposal, error) {
		requote, err := s.requote(ctx, cur, cmd.Actor, changes)
		if err != nil {
			return nil, err
		}

		return s.machine.Counter(cur, cmd, requote)
	})
}

func (s *ProposalService) requote(
	ctx context.Context,
	cur *models.Proposal,
	actor models.Role,
	changes map[string]json.RawMessage,
) (map[string]json.RawMessage, error) {
	if s.pricer == nil || !lifecycle.CanCounter(cur.Status, actor) {
		return changes, nil
	}

	if _, explicit := changes[models.TermTotalPrice]; explicit || !affectsPrice(changes) {
		return changes, nil
	}

	// Malformed changes are left for the negotiation log to reject.
	draft := cur.Terms
	for name, v := range changes {
		if _, err := draft.Set(name, v); err != nil {
			return changes, nil //nolint:nilerr // reported by Counter
		}
	}

	quoted, err := s.pricer.Quote(ctx, cur.ListingID, draft)
	if err != nil {
		return nil, fmt.Errorf("pricing counter-offer: %w", err)
	}

	total, err := quoted.Get(models.TermTotalPrice)
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage, len(changes)+1)
	for k, v := range changes {
		out[k] = v
	}
	out[models.TermTotalPrice] = total

	return out, nil
}

func affectsPrice(changes map[string]json.RawMessage) bool {
	for name := range changes {
		if models.IsScheduleField(name) || name == models.TermNightlyPrice || name == models.TermCleaningFee {
			return true
		}
	}

	return false
}

// AcceptCounter is the guest accepting the host's counter-offer.
func (s *ProposalService) AcceptCounter(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpAcceptCounter, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.AcceptCounter(cur, cmd)
	})
}

// AttachDraft stores a lease draft reference.
func (s *ProposalService) AttachDraft(ctx context.Context, id string, cmd lifecycle.Command, slot, ref string) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpAttachDraft, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.AttachDraft(cur, cmd, slot, ref)
	})
}

// DocumentsDrafted sends the drafts out for review.
func (s *ProposalService) DocumentsDrafted(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpDocumentsDrafted, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.DocumentsDrafted(cur, cmd)
	})
}

// FinalizeReview records one party's document review.
func (s *ProposalService) FinalizeReview(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpFinalizeReview, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.FinalizeReview(cur, cmd)
	})
}

// PaymentSubmitted activates the lease.
func (s *ProposalService) PaymentSubmitted(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpPaymentSubmitted, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.PaymentSubmitted(cur, cmd)
	})
}

// Cancel cancels on behalf of the caller: the guest withdraws, the platform
// cancels administratively. Hosts reject instead.
func (s *ProposalService) Cancel(ctx context.Context, id string, cmd lifecycle.Command, reason string) (*models.Proposal, error) {
	if cmd.Actor == models.RolePlatform {
		return s.mutate(ctx, id, cmd, lifecycle.OpCancelByPlatform, func(cur *models.Proposal) (*models.Proposal, error) {
			return s.machine.CancelByPlatform(cur, cmd, reason)
		})
	}

	return s.mutate(ctx, id, cmd, lifecycle.OpCancelByGuest, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.CancelByGuest(cur, cmd, reason)
	})
}

// DeleteProposal soft-deletes a terminal proposal.
func (s *ProposalService) DeleteProposal(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpDelete, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.Delete(cur, cmd)
	})
}

// Remind records a reminder from one party.
func (s *ProposalService) Remind(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpRemind, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.Remind(cur, cmd)
	})
}

// Finalize locks the proposal.
func (s *ProposalService) Finalize(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpFinalize, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.Finalize(cur, cmd)
	})
}

// Unlock clears the lock.
func (s *ProposalService) Unlock(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpUnlock, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.Unlock(cur, cmd)
	})
}
