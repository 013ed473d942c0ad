package lifecycle_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
)

var (
	guest    = lifecycle.Command{Actor: models.RoleGuest, ActorID: "guest-1"}
	host     = lifecycle.Command{Actor: models.RoleHost, ActorID: "host-1"}
	platform = lifecycle.Command{Actor: models.RolePlatform, ActorID: "ops"}
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// testClock advances one second per reading.
type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newMachine(t *testing.T) (*lifecycle.Machine, *testClock) {
	t.Helper()

	clock := &testClock{t: epoch}
	n := 0
	m := lifecycle.NewMachine(
		lifecycle.WithClock(clock.now),
		lifecycle.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)

	return m, clock
}

func validTerms() models.Terms {
	return models.Terms{
		NightlyPrice:     decimal.NewFromInt(142),
		CleaningFee:      decimal.NewFromInt(60),
		DamageDeposit:    decimal.NewFromInt(500),
		TotalPrice:       decimal.NewFromInt(4036),
		MoveInDate:       epoch.AddDate(0, 1, 0),
		ReservationWeeks: 8,
		NightsPerWeek:    4,
		CheckInDay:       "monday",
		CheckOutDay:      "friday",
	}
}

func must(t *testing.T, p *models.Proposal, err error) *models.Proposal {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p == nil {
		t.Fatal("expected proposal, got nil")
	}

	return p
}

func assertCode(t *testing.T, err error, want *models.Error) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", want.Code)
	}

	if !errors.Is(err, want) {
		t.Fatalf("expected %s error, got %v", want.Code, err)
	}
}

func assertStatus(t *testing.T, p *models.Proposal, want models.Status) {
	t.Helper()

	if p.Status != want {
		t.Fatalf("status = %s, want %s", p.Status, want)
	}
}

func raw(v string) json.RawMessage {
	return json.RawMessage(v)
}

func newProposal(t *testing.T, m *lifecycle.Machine) *models.Proposal {
	t.Helper()

	p, err := m.Create(models.CreateProposalRequest{GuestID: "guest-1", HostID: "host-1", ListingID: "listing-1"}, guest)

	return must(t, p, err)
}

func inHostReview(t *testing.T, m *lifecycle.Machine) *models.Proposal {
	t.Helper()

	p, err := m.Submit(newProposal(t, m), guest, validTerms())

	return must(t, p, err)
}

func inDrafting(t *testing.T, m *lifecycle.Machine) *models.Proposal {
	t.Helper()

	p, err := m.Accept(inHostReview(t, m), host)

	return must(t, p, err)
}

func withDrafts(t *testing.T, m *lifecycle.Machine, p *models.Proposal, slots ...string) *models.Proposal {
	t.Helper()

	for _, slot := range slots {
		var err error
		p, err = m.AttachDraft(p, platform, slot, "doc://"+slot)
		p = must(t, p, err)
	}

	return p
}

func inReview(t *testing.T, m *lifecycle.Machine) *models.Proposal {
	t.Helper()

	p := withDrafts(t, m, inDrafting(t, m), models.DraftSlots...)
	p, err := m.DocumentsDrafted(p, platform)

	return must(t, p, err)
}

func inSignature(t *testing.T, m *lifecycle.Machine) *models.Proposal {
	t.Helper()

	p, err := m.FinalizeReview(inReview(t, m), guest)
	p = must(t, p, err)

	p, err = m.FinalizeReview(p, host)

	return must(t, p, err)
}
