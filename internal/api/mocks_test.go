package api_test

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
)

// call is one recorded mutating call.
type call struct {
	op   string
	id   string
	cmd  lifecycle.Command
	args []any
}

// mockProposalService implements api.ProposalService and api.MeetingService.
// Every mutating method funnels through mutateFn.
type mockProposalService struct {
	mu    sync.Mutex
	calls []call

	mutateFn      func(c call) (*models.Proposal, error)
	createFn      func(ctx context.Context, cmd lifecycle.Command, req models.CreateProposalRequest) (*models.Proposal, error)
	getFn         func(ctx context.Context, id string) (*models.Proposal, error)
	listFn        func(ctx context.Context, q models.ListQuery) ([]models.Proposal, bool, error)
	historyFn     func(ctx context.Context, q models.HistoryQuery) ([]models.HistoryEntry, bool, error)
	negotiationFn func(ctx context.Context, id string) ([]models.NegotiationRound, error)
	actionsFn     func(ctx context.Context, id string, role models.Role) (*lifecycle.ActionSet, error)
}

func (m *mockProposalService) mutate(op, id string, cmd lifecycle.Command, args ...any) (*models.Proposal, error) {
	c := call{op: op, id: id, cmd: cmd, args: args}

	m.mu.Lock()
	m.calls = append(m.calls, c)
	m.mu.Unlock()

	if m.mutateFn == nil {
		return &models.Proposal{ID: id, Status: models.StatusHostReview, Revision: 2}, nil
	}

	return m.mutateFn(c)
}

func (m *mockProposalService) lastCall() call {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.calls) == 0 {
		return call{}
	}

	return m.calls[len(m.calls)-1]
}

func (m *mockProposalService) CreateProposal(ctx context.Context, cmd lifecycle.Command, req models.CreateProposalRequest) (*models.Proposal, error) {
	return m.createFn(ctx, cmd, req)
}

func (m *mockProposalService) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	return m.getFn(ctx, id)
}

func (m *mockProposalService) ListProposals(ctx context.Context, q models.ListQuery) ([]models.Proposal, bool, error) {
	return m.listFn(ctx, q)
}

func (m *mockProposalService) Submit(_ context.Context, id string, cmd lifecycle.Command, req models.SubmitRequest) (*models.Proposal, error) {
	return m.mutate("submit", id, cmd, req)
}

func (m *mockProposalService) CompleteApplication(_ context.Context, id string, cmd lifecycle.Command, ref string) (*models.Proposal, error) {
	return m.mutate("application", id, cmd, ref)
}

func (m *mockProposalService) Accept(_ context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return m.mutate("accept", id, cmd)
}

func (m *mockProposalService) Reject(_ context.Context, id string, cmd lifecycle.Command, reason string) (*models.Proposal, error) {
	return m.mutate("reject", id, cmd, reason)
}

func (m *mockProposalService) Counter(_ context.Context, id string, cmd lifecycle.Command, changes map[string]json.RawMessage) (*models.Proposal, error) {
	return m.mutate("counter", id, cmd, changes)
}

func (m *mockProposalService) AcceptCounter(_ context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return m.mutate("accept_counter", id, cmd)
}

func (m *mockProposalService) AttachDraft(_ context.Context, id string, cmd lifecycle.Command, slot, ref string) (*models.Proposal, error) {
	return m.mutate("attach_draft", id, cmd, slot, ref)
}

func (m *mockProposalService) DocumentsDrafted(_ context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return m.mutate("documents_drafted", id, cmd)
}

func (m *mockProposalService) FinalizeReview(_ context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return m.mutate("finalize_review", id, cmd)
}

func (m *mockProposalService) PaymentSubmitted(_ context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return m.mutate("payment", id, cmd)
}

func (m *mockProposalService) Cancel(_ context.Context, id string, cmd lifecycle.Command, reason string) (*models.Proposal, error) {
	return m.mutate("cancel", id, cmd, reason)
}

func (m *mockProposalService) DeleteProposal(_ context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return m.mutate("delete", id, cmd)
}

func (m *mockProposalService) Remind(_ context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return m.mutate("remind", id, cmd)
}

func (m *mockProposalService) Finalize(_ context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return m.mutate("finalize", id, cmd)
}

func (m *mockProposalService) Unlock(_ context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return m.mutate("unlock", id, cmd)
}

func (m *mockProposalService) RequestMeeting(_ context.Context, id string, cmd lifecycle.Command, dates []time.Time) (*models.Proposal, error) {
	return m.mutate("request_meeting", id, cmd, dates)
}

func (m *mockProposalService) BookMeeting(_ context.Context, id string, cmd lifecycle.Command, date time.Time) (*models.Proposal, error) {
	return m.mutate("book_meeting", id, cmd, date)
}

func (m *mockProposalService) ConfirmMeeting(_ context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return m.mutate("confirm_meeting", id, cmd)
}

func (m *mockProposalService) DeclineMeeting(_ context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return m.mutate("decline_meeting", id, cmd)
}

func (m *mockProposalService) GetHistory(ctx context.Context, q models.HistoryQuery) ([]models.HistoryEntry, bool, error) {
	return m.historyFn(ctx, q)
}

func (m *mockProposalService) GetNegotiation(ctx context.Context, id string) ([]models.NegotiationRound, error) {
	return m.negotiationFn(ctx, id)
}

func (m *mockProposalService) ResolveActions(ctx context.Context, id string, role models.Role) (*lifecycle.ActionSet, error) {
	return m.actionsFn(ctx, id, role)
}

// mockSweeper implements api.SweepService.
type mockSweeper struct {
	gotWindow time.Duration
	gotLimit  int
}

func (m *mockSweeper) ExpireStalled(_ context.Context, olderThan time.Duration, limit int) (*models.ExpireResult, error) {
	m.gotWindow, m.gotLimit = olderThan, limit

	return &models.ExpireResult{Scanned: 1, Cancelled: []string{"p1"}, Skipped: []string{}}, nil
}
