package api

import (
	"context"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/middleware"
	"github.com/splitlease/proposals/internal/ws"
)

// StreamHandler upgrades GET /proposals/:id/ws into a subscription on that
// proposal's event room.
type StreamHandler struct {
	appCtx    context.Context //nolint:containedctx // bounds every stream to server lifetime.
	log       *logrus.Logger
	hub       *ws.Hub
	proposals ProposalService
	keys      ws.KeyValidator
	origins   []string
}

// NewStreamHandler creates a StreamHandler. CORS origins double as the
// accepted websocket origin patterns.
func NewStreamHandler(appCtx context.Context, log *logrus.Logger, hub *ws.Hub, proposals ProposalService, keys ws.KeyValidator, origins []string) *StreamHandler {
	return &StreamHandler{appCtx: appCtx, log: log, hub: hub, proposals: proposals, keys: keys, origins: origins}
}

// Subscribe handles GET /proposals/:id/ws.
func (h *StreamHandler) Subscribe(c *gin.Context) {
	id, ok := proposalID(c)
	if !ok {
		return
	}

	cmd, ok := commandFor(c)
	if !ok {
		return
	}

	// Refuse before upgrading so an unknown id gets a plain 404.
	if _, err := h.proposals.GetProposal(c.Request.Context(), id); err != nil {
		respondServiceError(c, h.log, err, "proposal.subscribe")

		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:       h.origins,
		CompressionMode:      websocket.CompressionContextTakeover,
		CompressionThreshold: 128,
	})
	if err != nil {
		h.log.WithError(err).WithField("proposal_id", id).Warn("websocket upgrade failed")

		return
	}

	client := ws.NewClient(h.hub, conn, h.keys, c.GetString(middleware.APIKeyKey))
	client.ProposalID = id
	client.Role = string(cmd.Actor)
	h.hub.Register(client)

	h.log.WithFields(logrus.Fields{
		"proposal_id": id,
		"actor":       cmd.Actor,
	}).Debug("subscriber connected")

	// The stream ends with whichever finishes first: the server or the request.
	ctx, cancel := context.WithCancel(h.appCtx)
	defer cancel()

	stop := context.AfterFunc(c.Request.Context(), cancel)
	defer stop()

	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
