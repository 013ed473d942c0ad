// Package domain defines the canonical service interfaces shared by the REST
// API and the service layer. Consumers should depend on these interfaces
// rather than re-declaring equivalent ones.
package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
)

// ProposalService defines the proposal lifecycle operations.
type ProposalService interface {
	CreateProposal(ctx context.Context, cmd lifecycle.Command, req models.CreateProposalRequest) (*models.Proposal, error)
	GetProposal(ctx context.Context, id string) (*models.Proposal, error)
	ListProposals(ctx context.Context, q models.ListQuery) ([]models.Proposal, bool, error)
	Submit(ctx context.Context, id string, cmd lifecycle.Command, req models.SubmitRequest) (*models.Proposal, error)
	CompleteApplication(ctx context.Context, id string, cmd lifecycle.Command, ref string) (*models.Proposal, error)
	Accept(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)
	Reject(ctx context.Context, id string, cmd lifecycle.Command, reason string) (*models.Proposal, error)
	Counter(ctx context.Context, id string, cmd lifecycle.Command, changes map[string]json.RawMessage) (*models.Proposal, error)
	AcceptCounter(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)
	AttachDraft(ctx context.Context, id string, cmd lifecycle.Command, slot, ref string) (*models.Proposal, error)
	DocumentsDrafted(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)
	FinalizeReview(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)
	PaymentSubmitted(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)
	Cancel(ctx context.Context, id string, cmd lifecycle.Command, reason string) (*models.Proposal, error)
	DeleteProposal(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)
	Remind(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)
	Finalize(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)
	Unlock(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)
}

// MeetingService defines virtual meeting operations.
type MeetingService interface {
	RequestMeeting(ctx context.Context, id string, cmd lifecycle.Command, dates []time.Time) (*models.Proposal, error)
	BookMeeting(ctx context.Context, id string, cmd lifecycle.Command, date time.Time) (*models.Proposal, error)
	ConfirmMeeting(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)
	DeclineMeeting(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)
}

// HistoryService defines read models over the audit trail and negotiation log.
type HistoryService interface {
	GetHistory(ctx context.Context, q models.HistoryQuery) ([]models.HistoryEntry, bool, error)
	GetNegotiation(ctx context.Context, id string) ([]models.NegotiationRound, error)
	ResolveActions(ctx context.Context, id string, role models.Role) (*lifecycle.ActionSet, error)
}

// SweepService defines the scheduled expiration entry point.
type SweepService interface {
	ExpireStalled(ctx context.Context, olderThan time.Duration, limit int) (*models.ExpireResult, error)
}

// Notifier receives committed events. Failures are logged by the caller and
// never affect the transition that produced the event.
type Notifier interface {
	Notify(ctx context.Context, evt models.Event) error
}

// Pricer supplies price figures for a terms snapshot. The engine treats the
// result as opaque.
type Pricer interface {
	Quote(ctx context.Context, listingID string, terms models.Terms) (models.Terms, error)
}
