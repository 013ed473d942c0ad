// Package ws streams committed proposal events to WebSocket subscribers.
// Each connection watches a single proposal.
package ws

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/metrics"
	"github.com/splitlease/proposals/internal/models"
)

const (
	publishBuffer  = 256
	registerBuffer = 64

	maxSubscribers            = 1000
	maxSubscribersPerProposal = 50

	maxFrameSize  = 4096
	drainTimeout  = 3 * time.Second
	drainPoll     = 50 * time.Millisecond
	pruneInterval = 10 * time.Minute
)

type outbound struct {
	proposalID string
	frame      []byte
}

// Hub tracks subscribers by proposal. Rooms are only touched by the Run
// goroutine; everything else talks to it over channels.
type Hub struct {
	rooms      map[string]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	publish    chan outbound
	shutdown   chan struct{}
	done       chan struct{}
	count      atomic.Int64
	log        *logrus.Logger
	replay     *ReplayLog
}

// NewHub creates a Hub. Call Run to start it.
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, registerBuffer),
		unregister: make(chan *Client, registerBuffer),
		publish:    make(chan outbound, publishBuffer),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
		log:        log,
		replay:     NewReplayLog(replayDepth, replayTTL),
	}
}

// Run owns the rooms until ctx is cancelled or Shutdown is called.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	prune := time.NewTicker(pruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			h.drain()
			return
		case <-h.shutdown:
			h.drain()
			return
		case c := <-h.register:
			h.join(c)
		case c := <-h.unregister:
			h.leave(c)
		case out := <-h.publish:
			h.fanOut(out)
		case <-prune.C:
			h.replay.Prune()
		}
	}
}

func (h *Hub) join(c *Client) {
	room := h.rooms[c.ProposalID]

	switch {
	case h.count.Load() >= maxSubscribers:
		h.log.Warn("subscriber limit reached, refusing connection")
		c.closeSend()
		return
	case len(room) >= maxSubscribersPerProposal:
		h.log.WithField("proposal_id", c.ProposalID).Warn("proposal subscriber limit reached, refusing connection")
		c.closeSend()
		return
	}

	if room == nil {
		room = make(map[*Client]struct{})
		h.rooms[c.ProposalID] = room
	}

	room[c] = struct{}{}
	h.setCount(h.count.Load() + 1)

	h.log.WithFields(logrus.Fields{
		"proposal_id": c.ProposalID,
		"role":        c.Role,
		"total":       h.count.Load(),
	}).Info("subscriber joined")
}

func (h *Hub) leave(c *Client) {
	if !h.remove(c) {
		return
	}

	h.log.WithFields(logrus.Fields{
		"proposal_id": c.ProposalID,
		"total":       h.count.Load(),
	}).Info("subscriber left")
}

// remove drops c from its room and closes its queue. It reports whether c
// was still subscribed.
func (h *Hub) remove(c *Client) bool {
	room, ok := h.rooms[c.ProposalID]
	if !ok {
		return false
	}

	if _, ok := room[c]; !ok {
		return false
	}

	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.ProposalID)
	}

	c.closeSend()
	h.setCount(h.count.Load() - 1)

	return true
}

func (h *Hub) fanOut(out outbound) {
	for c := range h.rooms[out.proposalID] {
		if !c.deliver(out.frame) {
			h.log.WithField("proposal_id", out.proposalID).Warn("dropping slow subscriber")
			h.remove(c)
		}
	}
}

func (h *Hub) setCount(n int64) {
	h.count.Store(n)
	metrics.WSConnections.Set(float64(n))
}

// Publish records evt for replay and sends it to the proposal's subscribers.
// Duplicate deliveries of the same revision are dropped.
func (h *Hub) Publish(evt models.Event) {
	frame, err := eventFrame(evt)
	if err != nil {
		h.log.WithError(err).Error("encoding event frame")
		return
	}

	if len(frame) > maxFrameSize {
		h.log.WithFields(logrus.Fields{
			"proposal_id": evt.ProposalID,
			"size":        len(frame),
		}).Warn("dropping oversized event frame")
		return
	}

	if !h.replay.Add(evt, frame) {
		return
	}

	select {
	case h.publish <- outbound{proposalID: evt.ProposalID, frame: frame}:
	default:
		h.log.WithField("proposal_id", evt.ProposalID).Warn("publish queue full, dropping event")
	}
}

// Replay queues the frames committed after since on c. When the log has a
// gap, c gets a reset frame instead and must reload the proposal.
func (h *Hub) Replay(c *Client, since int64) {
	frames, ok := h.replay.Since(c.ProposalID, since)
	if !ok {
		frames = [][]byte{controlFrame(FrameReset, "events after your revision are no longer buffered, reload the proposal")}
	}

	for _, f := range frames {
		if !c.deliver(f) {
			return
		}
	}
}

// Register subscribes c to its proposal.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		h.log.Warn("register queue full, refusing connection")
		c.closeSend()
	}
}

// Unregister removes c. After Run has exited this is a no-op.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	default:
	}
}

// ClientCount returns the number of subscribers.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Shutdown tells every subscriber the server is going away, waits up to
// drainTimeout for their queues to flush, and returns once Run has exited.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}

func (h *Hub) drain() {
	if h.count.Load() == 0 {
		return
	}

	h.log.WithField("subscribers", h.count.Load()).Info("draining subscribers")

	bye := controlFrame(FrameShutdown, "server shutting down, reconnect shortly")
	h.each(func(c *Client) { c.deliver(bye) })

	deadline := time.Now().Add(drainTimeout)
	for h.pending() && time.Now().Before(deadline) {
		time.Sleep(drainPoll)
	}

	h.each(func(c *Client) { h.remove(c) })
}

func (h *Hub) each(fn func(*Client)) {
	for _, room := range h.rooms {
		for c := range room {
			fn(c)
		}
	}
}

func (h *Hub) pending() bool {
	busy := false
	h.each(func(c *Client) {
		if len(c.send) > 0 {
			busy = true
		}
	})

	return busy
}
