package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/splitlease/proposals/internal/models"
)

const eventsChannel = "proposal_events"

// EventPublisher sends committed events on the proposal_events channel so
// every replica's notify bridge can fan them out.
type EventPublisher struct {
	Base
}

// NewEventPublisher creates an EventPublisher.
func NewEventPublisher(base Base) *EventPublisher {
	return &EventPublisher{Base: base}
}

// Notify publishes evt. It runs after commit, outside the transaction.
func (p *EventPublisher) Notify(ctx context.Context, evt models.Event) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}

	if _, err := p.Pool.Exec(ctx, "SELECT pg_notify($1, $2)", eventsChannel, string(payload)); err != nil {
		return fmt.Errorf("publishing %s for %s: %w", evt.Type, evt.ProposalID, err)
	}

	return nil
}
