package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/middleware"
	"github.com/splitlease/proposals/internal/models"
)

// ProposalHandler serves the proposal lifecycle endpoints.
type ProposalHandler struct {
	svc ProposalService
	log *logrus.Logger
}

// NewProposalHandler creates a ProposalHandler.
func NewProposalHandler(svc ProposalService, log *logrus.Logger) *ProposalHandler {
	return &ProposalHandler{svc: svc, log: log}
}

type mutation func(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error)

// commandFor returns the caller's command, writing a 400 when it is missing.
func commandFor(c *gin.Context) (lifecycle.Command, bool) {
	cmd, ok := middleware.CommandFrom(c)
	if !ok {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRole, models.ErrInvalidRole.Error())

		return lifecycle.Command{}, false
	}

	return cmd, true
}

// run executes one mutating operation on the :id proposal.
func (h *ProposalHandler) run(c *gin.Context, action string, fn mutation) {
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

	h.log.WithFields(logrus.Fields{
		"action":      action,
		"proposal_id": id,
		"actor":       cmd.Actor,
		"actor_id":    cmd.ActorID,
		"status":      p.Status,
		"revision":    p.Revision,
	}).Info("audit")

	c.JSON(http.StatusOK, p)
}

// bind decodes and validates a JSON body, writing a 400 on failure.
func bind[T any, PT interface {
	*T
	Validate() error
}](c *gin.Context) (T, bool) {
	var req T
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return req, false
	}

	if err := PT(&req).Validate(); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeValidationError, err.Error())

		return req, false
	}

	return req, true
}

// bindOptional is bind for endpoints whose body may be empty.
func bindOptional[T any, PT interface {
	*T
	Validate() error
}](c *gin.Context) (T, bool) {
	if c.Request.ContentLength == 0 {
		var req T

		return req, true
	}

	return bind[T, PT](c)
}

// Create handles POST /proposals.
func (h *ProposalHandler) Create(c *gin.Context) {
	req, ok := bind[models.CreateProposalRequest](c)
	if !ok {
		return
	}

	cmd, ok := commandFor(c)
	if !ok {
		return
	}

	p, err := h.svc.CreateProposal(c.Request.Context(), cmd, req)
	if err != nil {
		respondServiceError(c, h.log, err, "proposal.create")

		return
	}

	h.log.WithFields(logrus.Fields{
		"action":      "proposal.create",
		"proposal_id": p.ID,
		"actor":       cmd.Actor,
		"listing_id":  p.ListingID,
	}).Info("audit")

	c.JSON(http.StatusCreated, p)
}

// Get handles GET /proposals/:id.
func (h *ProposalHandler) Get(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}

	p, err := h.svc.GetProposal(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.log, err, "proposal.get")

		return
	}

	c.JSON(http.StatusOK, p)
}

// List handles GET /proposals.
func (h *ProposalHandler) List(c *gin.Context) {
	limit, offset := page(c, 50)
	q := models.ListQuery{
		GuestID:        c.Query("guest_id"),
		HostID:         c.Query("host_id"),
		ListingID:      c.Query("listing_id"),
		IncludeDeleted: c.Query("include_deleted") == "true",
		Limit:          limit,
		Offset:         offset,
	}

	if raw := c.Query("status"); raw != "" {
		status, ok := models.ParseStatus(raw)
		if !ok {
			respondError(c, http.StatusBadRequest, ErrCodeValidationError, "unknown status "+raw)

			return
		}
		q.Status = status
	}

	proposals, hasMore, err := h.svc.ListProposals(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, h.log, err, "proposal.list")

		return
	}

	c.JSON(http.StatusOK, gin.H{"proposals": proposals, "has_more": hasMore})
}

// Submit handles POST /proposals/:id/submit.
func (h *ProposalHandler) Submit(c *gin.Context) {
	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")

		return
	}

	h.run(c, "proposal.submit", func(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
		return h.svc.Submit(ctx, id, cmd, req)
	})
}

// CompleteApplication handles POST /proposals/:id/application.
func (h *ProposalHandler) CompleteApplication(c *gin.Context) {
	req, ok := bindOptional[models.ApplicationRequest](c)
	if !ok {
		return
	}

	h.run(c, "proposal.application", func(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
		return h.svc.CompleteApplication(ctx, id, cmd, req.Ref)
	})
}

// Accept handles POST /proposals/:id/accept.
func (h *ProposalHandler) Accept(c *gin.Context) {
	h.run(c, "proposal.accept", h.svc.Accept)
}

// Reject handles POST /proposals/:id/reject.
func (h *ProposalHandler) Reject(c *gin.Context) {
	req, ok := bindOptional[models.ReasonRequest](c)
	if !ok {
		return
	}

	h.run(c, "proposal.reject", func(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
		return h.svc.Reject(ctx, id, cmd, req.Reason)
	})
}

// Counter handles POST /proposals/:id/counter.
func (h *ProposalHandler) Counter(c *gin.Context) {
	req, ok := bind[models.CounterRequest](c)
	if !ok {
		return
	}

	h.run(c, "proposal.counter", func(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
		return h.svc.Counter(ctx, id, cmd, req.Changes)
	})
}

// AcceptCounter handles POST /proposals/:id/accept-counter.
func (h *ProposalHandler) AcceptCounter(c *gin.Context) {
	h.run(c, "proposal.accept_counter", h.svc.AcceptCounter)
}

// AttachDraft handles PUT /proposals/:id/drafts/:slot.
func (h *ProposalHandler) AttachDraft(c *gin.Context) {
	req, ok := bind[models.DraftRequest](c)
	if !ok {
		return
	}

	slot := c.Param("slot")

	h.run(c, "proposal.attach_draft", func(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
		return h.svc.AttachDraft(ctx, id, cmd, slot, req.Ref)
	})
}

// DocumentsDrafted handles POST /proposals/:id/documents-drafted.
func (h *ProposalHandler) DocumentsDrafted(c *gin.Context) {
	h.run(c, "proposal.documents_drafted", h.svc.DocumentsDrafted)
}

// FinalizeReview handles POST /proposals/:id/review.
func (h *ProposalHandler) FinalizeReview(c *gin.Context) {
	h.run(c, "proposal.finalize_review", h.svc.FinalizeReview)
}

// PaymentSubmitted handles POST /proposals/:id/payment.
func (h *ProposalHandler) PaymentSubmitted(c *gin.Context) {
	h.run(c, "proposal.payment", h.svc.PaymentSubmitted)
}

// Cancel handles POST /proposals/:id/cancel.
func (h *ProposalHandler) Cancel(c *gin.Context) {
	req, ok := bindOptional[models.ReasonRequest](c)
	if !ok {
		return
	}

	h.run(c, "proposal.cancel", func(ctx context.Context, id string, cmd lifecycle.Command) (*models.Proposal, error) {
		return h.svc.Cancel(ctx, id, cmd, req.Reason)
	})
}

// Delete handles DELETE /proposals/:id.
func (h *ProposalHandler) Delete(c *gin.Context) {
	h.run(c, "proposal.delete", h.svc.DeleteProposal)
}

// Remind handles POST /proposals/:id/remind.
func (h *ProposalHandler) Remind(c *gin.Context) {
	h.run(c, "proposal.remind", h.svc.Remind)
}

// Finalize handles POST /proposals/:id/finalize.
func (h *ProposalHandler) Finalize(c *gin.Context) {
	h.run(c, "proposal.finalize", h.svc.Finalize)
}

// Unlock handles POST /proposals/:id/unlock.
func (h *ProposalHandler) Unlock(c *gin.Context) {
	h.run(c, "proposal.unlock", h.svc.Unlock)
}

// Actions handles GET /proposals/:id/actions. The role defaults to the
// caller's own and may be overridden with ?role= by the platform.
func (h *ProposalHandler) Actions(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}

	cmd, ok := commandFor(c)
	if !ok {
		return
	}

	role := cmd.Actor
	if raw := c.Query("role"); raw != "" {
		parsed, err := models.ParseRole(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, ErrCodeInvalidRole, err.Error())

			return
		}

		if parsed != cmd.Actor && cmd.Actor != models.RolePlatform {
			respondError(c, http.StatusForbidden, ErrCodeForbidden, "only the platform may view another role's actions")

			return
		}
		role = parsed
	}

	set, err := h.svc.ResolveActions(c.Request.Context(), id, role)
	if err != nil {
		respondServiceError(c, h.log, err, "proposal.actions")

		return
	}

	c.JSON(http.StatusOK, set)
}

// History handles GET /proposals/:id/history.
func (h *ProposalHandler) History(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}

	limit, offset := page(c, 100)
	entries, hasMore, err := h.svc.GetHistory(c.Request.Context(), models.HistoryQuery{
		ProposalID: id,
		Field:      c.Query("field"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		respondServiceError(c, h.log, err, "proposal.history")

		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries, "has_more": hasMore})
}

// Negotiation handles GET /proposals/:id/negotiation.
func (h *ProposalHandler) Negotiation(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}

	rounds, err := h.svc.GetNegotiation(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.log, err, "proposal.negotiation")

		return
	}

	c.JSON(http.StatusOK, gin.H{"rounds": rounds, "count": len(rounds)})
}
