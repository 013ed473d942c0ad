package service

import (
	"context"
	"time"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
)

// RequestMeeting opens a virtual meeting request.
func (s *ProposalService) RequestMeeting(ctx context.Context, id string, cmd lifecycle.Command, dates []time.Time) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpRequestMeeting, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.RequestMeeting(cur, cmd, dates)
	})
}

// BookMeeting books the requested meeting.
func (s *ProposalService) BookMeeting(ctx context.Context, id string, cmd lifecycle.Command, date time.Time) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpBookMeeting, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.BookMeeting(cur, cmd, date)
	})
}

// ConfirmMeeting confirms a booked meeting.
func (s *ProposalService) ConfirmMeeting(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpConfirmMeeting, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.ConfirmMeeting(cur, cmd)
	})
}

// DeclineMeeting declines a requested or booked meeting.
func (s *ProposalService) DeclineMeeting(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
	return s.mutate(ctx, id, cmd, lifecycle.OpDeclineMeeting, func(cur *models.Proposal) (*models.Proposal, error) {
		return s.machine.DeclineMeeting(cur, cmd)
	})
}
