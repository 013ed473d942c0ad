package service

import (
	"context"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
)

// GetHistory returns the audit trail for a proposal (pass-through).
func (s *ProposalService) GetHistory(ctx context.Context, q models.HistoryQuery) ([]models.HistoryEntry, bool, error) {
	return s.store.GetHistory(ctx, q)
}

// GetNegotiation returns the counter-offer rounds for a proposal (pass-through).
func (s *ProposalService) GetNegotiation(ctx context.Context, id string) ([]models.NegotiationRound, error) {
	return s.store.GetNegotiation(ctx, id)
}

// ResolveActions returns the actions role may take on the proposal right now.
func (s *ProposalService) ResolveActions(ctx context.Context, id string, role models.Role) (*lifecycle.ActionSet, error) {
	if !role.IsValid() {
		return nil, models.ErrInvalidRole
	}

	p, err := s.store.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}

	set := s.machine.ResolveActions(p, role)

	return &set, nil
}
