package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
)

// MeetingHandler serves the virtual meeting endpoints of a proposal.
type MeetingHandler struct {
	svc MeetingService
	log *logrus.Logger
}

// NewMeetingHandler creates a MeetingHandler.
func NewMeetingHandler(svc MeetingService, log *logrus.Logger) *MeetingHandler {
	return &MeetingHandler{svc: svc, log: log}
}

func (h *MeetingHandler) run(c *gin.Context, action string, fn mutation) {
	id, ok := proposalID(c)
	if !ok {
		return
	}

	cmd, ok := commandFor(c)
	if !ok {
		return
	}

	p, err := fn(c.Request.Context(), id, cmd)
	if err != nil {
		respondServiceError(c, h.log, err, action)

		return
	}

	fields := logrus.Fields{"action": action, "proposal_id": id, "actor": cmd.Actor}
	if p.VirtualMeeting != nil {
		fields["meeting_id"] = p.VirtualMeeting.ID
		fields["meeting_state"] = p.VirtualMeeting.State
	}
	h.log.WithFields(fields).Info("audit")

	c.JSON(http.StatusOK, p)
}

// Request handles POST /proposals/:id/meeting.
func (h *MeetingHandler) Request(c *gin.Context) {
	req, ok := bind[models.MeetingRequest](c)
	if !ok {
		return
	}

	h.run(c, "meeting.request", func(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
		return h.svc.RequestMeeting(ctx, id, cmd, req.SuggestedDates)
	})
}

// Book handles POST /proposals/:id/meeting/book.
func (h *MeetingHandler) Book(c *gin.Context) {
	req, ok := bind[models.BookRequest](c)
	if !ok {
		return
	}

	h.run(c, "meeting.book", func(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
		return h.svc.BookMeeting(ctx, id, cmd, req.Date)
	})
}

// Confirm handles POST /proposals/:id/meeting/confirm.
func (h *MeetingHandler) Confirm(c *gin.Context) {
	h.run(c, "meeting.confirm", h.svc.ConfirmMeeting)
}

// Decline handles POST /proposals/:id/meeting/decline.
func (h *MeetingHandler) Decline(c *gin.Context) {
	h.run(c, "meeting.decline", h.svc.DeclineMeeting)
}
