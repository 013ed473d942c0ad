package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/dbpool"
	"github.com/splitlease/proposals/internal/models"
)

// EventsChannel carries committed proposal events as JSON payloads.
const EventsChannel = "proposal_events"

const (
	listenIdle      = 2 * time.Minute
	retryFloor      = time.Second
	retryCeiling    = 30 * time.Second
	healthyListenAt = time.Minute
)

// Publisher receives events decoded from the channel.
type Publisher interface {
	Publish(evt models.Event)
}

// NotifyBridge LISTENs on EventsChannel and hands every event to the
// websocket hub, so subscribers on any replica see commits from all of them.
type NotifyBridge struct {
	log  *logrus.Logger
	pool *dbpool.Pool
	hub  Publisher
}

// NewNotifyBridge creates a NotifyBridge.
func NewNotifyBridge(log *logrus.Logger, pool *dbpool.Pool, hub Publisher) *NotifyBridge {
	return &NotifyBridge{log: log, pool: pool, hub: hub}
}

// Start checks the database is reachable and then listens in the background
// until ctx is cancelled, reconnecting with jittered backoff.
func (b *NotifyBridge) Start(ctx context.Context) error {
	if err := b.pool.Ping(ctx); err != nil {
		return fmt.Errorf("notify bridge: %w", err)
	}

	go b.run(ctx)

	return nil
}

func (b *NotifyBridge) run(ctx context.Context) {
	delay := retryFloor

	for ctx.Err() == nil {
		started := time.Now()

		err := b.listen(ctx)
		if err == nil || ctx.Err() != nil {
			return
		}

		// A session that stayed up for a while was healthy; start over.
		if time.Since(started) > healthyListenAt {
			delay = retryFloor
		}

		b.log.WithError(err).WithField("retry_in", delay.String()).Warn("event listener lost, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay = backoff(delay)
	}
}

// listen holds one pooled connection in LISTEN until it fails or ctx ends.
func (b *NotifyBridge) listen(ctx context.Context) error {
	conn, err := b.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{EventsChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", EventsChannel, err)
	}

	b.log.WithField("channel", EventsChannel).Info("listening for proposal events")

	for {
		// Wake up periodically so a dead peer surfaces as a timeout.
		if err := conn.Conn().PgConn().Conn().SetReadDeadline(time.Now().Add(listenIdle)); err != nil {
			return fmt.Errorf("setting read deadline: %w", err)
		}

		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			return fmt.Errorf("waiting for notification: %w", err)
		}

		b.forward(n.Payload)
	}
}

// forward decodes one payload. Payloads that do not name a proposal and a
// revision cannot be ordered for subscribers and are dropped.
func (b *NotifyBridge) forward(payload string) {
	var evt models.Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		b.log.WithError(err).Warn("dropping undecodable proposal event")
		return
	}

	if evt.ProposalID == "" || evt.Revision <= 0 {
		b.log.WithField("payload_size", len(payload)).Warn("dropping proposal event without id or revision")
		return
	}

	if evt.Type == "" {
		evt.Type = models.EventProposalUpdated
	}

	b.hub.Publish(evt)
}

// backoff doubles d up to retryCeiling and spreads it by ±25%.
func backoff(d time.Duration) time.Duration {
	next := min(2*d, retryCeiling)

	return time.Duration(float64(next) * (0.75 + 0.5*rand.Float64())) //nolint:gosec // jitter only.
}
