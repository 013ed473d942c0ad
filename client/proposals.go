package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// ProposalService handles proposal lifecycle operations.
type ProposalService struct {
	c *Client
}

type proposalListResponse struct {
	Proposals []Proposal `json:"proposals"`
	HasMore   bool       `json:"has_more"`
}

type historyResponse struct {
	History []HistoryEntry `json:"history"`
	HasMore bool           `json:"has_more"`
}

type negotiationResponse struct {
	Rounds []NegotiationRound `json:"rounds"`
}

func proposalPath(id string, parts ...string) string {
	p := "/api/v1/proposals/" + url.PathEscape(id)
	for _, part := range parts {
		p += "/" + part
	}
	return p
}

// action posts body to one proposal sub-resource and decodes the new snapshot.
func (s *ProposalService) action(ctx context.Context, id, name string, body any) (*Proposal, error) {
	var p Proposal
	if err := s.c.post(ctx, proposalPath(id, name), body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func reasonBody(reason string) any {
	if reason == "" {
		return nil
	}
	return map[string]string{"reason": reason}
}

// Create opens a new proposal in the pending status.
func (s *ProposalService) Create(ctx context.Context, req *CreateProposalRequest) (*Proposal, error) {
	var p Proposal
	if err := s.c.post(ctx, "/api/v1/proposals", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Get returns a proposal snapshot by ID.
func (s *ProposalService) Get(ctx context.Context, id string) (*Proposal, error) {
	var p Proposal
	if err := s.c.get(ctx, proposalPath(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns proposals with optional filtering and pagination.
func (s *ProposalService) List(ctx context.Context, opts *ListOptions) ([]Proposal, bool, error) {
	params := url.Values{}
	if opts != nil {
		for k, v := range map[string]string{
			"guest_id":   opts.GuestID,
			"host_id":    opts.HostID,
			"listing_id": opts.ListingID,
			"status":     opts.Status,
		} {
			if v != "" {
				params.Set(k, v)
			}
		}
		if opts.IncludeDeleted {
			params.Set("include_deleted", "true")
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	var resp proposalListResponse
	if err := s.c.get(ctx, "/api/v1/proposals", params, &resp); err != nil {
		return nil, false, err
	}
	return resp.Proposals, resp.HasMore, nil
}

// Submit moves a pending proposal into review with the given terms.
func (s *ProposalService) Submit(ctx context.Context, id string, terms Terms) (*Proposal, error) {
	return s.action(ctx, id, "submit", map[string]Terms{"terms": terms})
}

// CompleteApplication records the rental application. ref may be empty when
// one was attached earlier.
func (s *ProposalService) CompleteApplication(ctx context.Context, id, ref string) (*Proposal, error) {
	var body any
	if ref != "" {
		body = map[string]string{"rental_application_ref": ref}
	}
	return s.action(ctx, id, "application", body)
}

// Accept accepts the proposal as it stands.
func (s *ProposalService) Accept(ctx context.Context, id string) (*Proposal, error) {
	return s.action(ctx, id, "accept", nil)
}

// Reject rejects the proposal (host) or declines the counteroffer (guest).
func (s *ProposalService) Reject(ctx context.Context, id, reason string) (*Proposal, error) {
	return s.action(ctx, id, "reject", reasonBody(reason))
}

// Counter proposes new values for term fields. Values are encoded as JSON.
func (s *ProposalService) Counter(ctx context.Context, id string, changes map[string]any) (*Proposal, error) {
	raw := make(map[string]json.RawMessage, len(changes))
	for k, v := range changes {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", k, err)
		}
		raw[k] = data
	}
	return s.action(ctx, id, "counter", map[string]any{"changes": raw})
}

// AcceptCounter accepts the host's counteroffer.
func (s *ProposalService) AcceptCounter(ctx context.Context, id string) (*Proposal, error) {
	return s.action(ctx, id, "accept-counter", nil)
}

// AttachDraft stores a lease draft reference in one of the four slots.
func (s *ProposalService) AttachDraft(ctx context.Context, id, slot, ref string) (*Proposal, error) {
	var p Proposal
	if err := s.c.put(ctx, proposalPath(id, "drafts", url.PathEscape(slot)), map[string]string{"ref": ref}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DocumentsDrafted marks the lease drafts complete.
func (s *ProposalService) DocumentsDrafted(ctx context.Context, id string) (*Proposal, error) {
	return s.action(ctx, id, "documents-drafted", nil)
}

// FinalizeReview records the caller's document review.
func (s *ProposalService) FinalizeReview(ctx context.Context, id string) (*Proposal, error) {
	return s.action(ctx, id, "review", nil)
}

// PaymentSubmitted records the initial payment.
func (s *ProposalService) PaymentSubmitted(ctx context.Context, id string) (*Proposal, error) {
	return s.action(ctx, id, "payment", nil)
}

// Cancel cancels the proposal on behalf of the caller.
func (s *ProposalService) Cancel(ctx context.Context, id, reason string) (*Proposal, error) {
	return s.action(ctx, id, "cancel", reasonBody(reason))
}

// Delete soft-deletes a terminal proposal.
func (s *ProposalService) Delete(ctx context.Context, id string) (*Proposal, error) {
	var p Proposal
	if err := s.c.del(ctx, proposalPath(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Remind nudges the counterpart, subject to the reminder limit.
func (s *ProposalService) Remind(ctx context.Context, id string) (*Proposal, error) {
	return s.action(ctx, id, "remind", nil)
}

// Finalize locks the proposal against further changes.
func (s *ProposalService) Finalize(ctx context.Context, id string) (*Proposal, error) {
	return s.action(ctx, id, "finalize", nil)
}

// Unlock clears the finalized lock.
func (s *ProposalService) Unlock(ctx context.Context, id string) (*Proposal, error) {
	return s.action(ctx, id, "unlock", nil)
}

// Actions returns the affordances for role, or for the caller when role is empty.
func (s *ProposalService) Actions(ctx context.Context, id, role string) (*ActionSet, error) {
	params := url.Values{}
	if role != "" {
		params.Set("role", role)
	}
	var set ActionSet
	if err := s.c.get(ctx, proposalPath(id, "actions"), params, &set); err != nil {
		return nil, err
	}
	return &set, nil
}

// History returns field change history, optionally filtered to one field.
func (s *ProposalService) History(ctx context.Context, id, field string, limit, offset int) ([]HistoryEntry, bool, error) {
	params := url.Values{}
	if field != "" {
		params.Set("field", field)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		params.Set("offset", strconv.Itoa(offset))
	}
	var resp historyResponse
	if err := s.c.get(ctx, proposalPath(id, "history"), params, &resp); err != nil {
		return nil, false, err
	}
	return resp.History, resp.HasMore, nil
}

// Negotiation returns the counter-offer rounds in order.
func (s *ProposalService) Negotiation(ctx context.Context, id string) ([]NegotiationRound, error) {
	var resp negotiationResponse
	if err := s.c.get(ctx, proposalPath(id, "negotiation"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Rounds, nil
}
