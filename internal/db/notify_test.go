package db

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/models"
)

type recordingHub struct {
	events []models.Event
}

func (h *recordingHub) Publish(evt models.Event) {
	h.events = append(h.events, evt)
}

func newTestBridge(hub Publisher) *NotifyBridge {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return NewNotifyBridge(log, nil, hub)
}

func TestForward(t *testing.T) {
	hub := &recordingHub{}
	b := newTestBridge(hub)

	b.forward(`{"proposal_id":"p1","type":"proposal.counter_offer","revision":4,"status":"host_counteroffer_submitted"}`)
	b.forward(`{"proposal_id":"p2","revision":1}`)
	b.forward(`{"proposal_id":"p3"}`)
	b.forward(`{"type":"proposal.status_changed","revision":2}`)
	b.forward(`not json`)

	if len(hub.events) != 2 {
		t.Fatalf("forwarded = %d, want 2", len(hub.events))
	}

	first := hub.events[0]
	if first.Type != models.EventCounterOffer || first.ProposalID != "p1" || first.Revision != 4 {
		t.Errorf("first = %+v", first)
	}

	if hub.events[1].Type != models.EventProposalUpdated {
		t.Errorf("default type = %s", hub.events[1].Type)
	}
}

func TestBackoff(t *testing.T) {
	d := retryFloor
	for range 10 {
		d = backoff(d)

		if d <= 0 || d > time.Duration(float64(retryCeiling)*1.25) {
			t.Fatalf("backoff %v out of range", d)
		}
	}
}

func TestSchemaVersion(t *testing.T) {
	if got := SchemaVersion(); got < 1 {
		t.Errorf("schema version = %d, want at least 1", got)
	}
}
