package client

import (
	"context"
	"time"
)

// MeetingService handles the virtual meeting handshake of a proposal.
type MeetingService struct {
	c *Client
}

func (s *MeetingService) post(ctx context.Context, id, path string, body any) (*Proposal, error) {
	var p Proposal
	if err := s.c.post(ctx, proposalPath(id, "meeting")+path, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Request opens a meeting request with candidate dates.
func (s *MeetingService) Request(ctx context.Context, id string, dates ...time.Time) (*Proposal, error) {
	return s.post(ctx, id, "", map[string][]time.Time{"suggested_dates": dates})
}

// Book picks a date for a requested meeting.
func (s *MeetingService) Book(ctx context.Context, id string, date time.Time) (*Proposal, error) {
	return s.post(ctx, id, "/book", map[string]time.Time{"date": date})
}

// Confirm confirms a booked meeting (platform).
func (s *MeetingService) Confirm(ctx context.Context, id string) (*Proposal, error) {
	return s.post(ctx, id, "/confirm", nil)
}

// Decline declines the meeting.
func (s *MeetingService) Decline(ctx context.Context, id string) (*Proposal, error) {
	return s.post(ctx, id, "/decline", nil)
}
