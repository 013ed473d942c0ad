package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const (
	readLimit        = 4096
	sendQueue        = 256
	writeTimeout     = 10 * time.Second
	pingEvery        = 30 * time.Second
	pingTimeout      = 10 * time.Second
	maxMissedPings   = 2
	recheckKeyEvery  = 15 * time.Minute
	recheckKeyWithin = 10 * time.Second
	maxLifetime      = 4 * time.Hour
)

// KeyValidator re-checks that the key a connection was opened with is still accepted.
type KeyValidator interface {
	ValidateKey(ctx context.Context, apiKey string) error
}

// Client is one subscriber connection. The hub writes frames to send; the
// write pump is the only writer on conn.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	log       *logrus.Logger
	apiKey    string
	keys      KeyValidator
	opened    time.Time

	// mu guards closed so no sender races the close of send.
	mu     sync.Mutex
	closed bool

	ProposalID string
	Role       string
}

// NewClient wraps conn for the hub. keys may be nil to skip key re-checks.
func NewClient(hub *Hub, conn *websocket.Conn, keys KeyValidator, apiKey string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendQueue),
		log:    hub.log,
		apiKey: apiKey,
		keys:   keys,
		opened: time.Now(),
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// deliver queues frame without blocking. It reports false when the queue is
// full or already closed.
func (c *Client) deliver(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// ReadPump handles subscribe messages until the connection closes, then
// unregisters the client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.CloseNow() //nolint:errcheck // teardown.
	}()

	c.conn.SetReadLimit(readLimit)

	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				c.log.WithFields(logrus.Fields{
					"proposal_id": c.ProposalID,
					"status":      status,
				}).Debug("subscriber closed connection")
			}

			return
		}

		var msg subscribeMsg
		if json.Unmarshal(data, &msg) != nil || msg.Type != "subscribe" {
			continue
		}

		c.hub.Replay(c, msg.SinceRevision)
	}
}

// WritePump delivers queued frames and keeps the connection honest: it pings
// periodically, re-checks the API key, and closes the connection once it
// outlives maxLifetime.
func (c *Client) WritePump(ctx context.Context) {
	defer c.conn.CloseNow() //nolint:errcheck // teardown.

	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	recheck := time.NewTicker(recheckKeyEvery)
	defer recheck.Stop()

	expire := time.NewTimer(time.Until(c.opened.Add(maxLifetime)))
	defer expire.Stop()

	missed := 0

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				return
			}

			if err := c.write(ctx, frame); err != nil {
				c.log.WithError(err).WithField("proposal_id", c.ProposalID).Debug("write failed")
				return
			}
		case <-ping.C:
			if c.ping(ctx) {
				missed = 0
				continue
			}

			if missed++; missed >= maxMissedPings {
				c.log.WithField("proposal_id", c.ProposalID).Debug("closing after missed pings")
				return
			}
		case <-recheck.C:
			if !c.keyStillValid(ctx) {
				c.log.WithField("proposal_id", c.ProposalID).Info("closing subscriber: api key no longer accepted")
				c.conn.Close(websocket.StatusPolicyViolation, "authentication expired") //nolint:errcheck // best effort.
				return
			}
		case <-expire.C:
			c.conn.Close(websocket.StatusNormalClosure, "connection lifetime exceeded, reconnect") //nolint:errcheck // best effort.
			return
		}
	}
}

func (c *Client) write(ctx context.Context, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return c.conn.Write(ctx, websocket.MessageText, frame)
}

func (c *Client) ping(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	return c.conn.Ping(ctx) == nil
}

func (c *Client) keyStillValid(ctx context.Context) bool {
	if c.keys == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, recheckKeyWithin)
	defer cancel()

	return c.keys.ValidateKey(ctx, c.apiKey) == nil
}
