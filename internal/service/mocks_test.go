package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/lease"
	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
	"github.com/splitlease/proposals/internal/pricing"
)

var (
	guest    = lifecycle.Command{Actor: models.RoleGuest, ActorID: "guest-1"}
	host     = lifecycle.Command{Actor: models.RoleHost, ActorID: "host-1"}
	platform = lifecycle.Command{Actor: models.RolePlatform, ActorID: "ops"}
)

var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// memStore is an in-memory ProposalStore.
type memStore struct {
	mu        sync.Mutex
	proposals map[string]*models.Proposal
	calls     []string
}

func newMemStore() *memStore {
	return &memStore{proposals: make(map[string]*models.Proposal)}
}

func (m *memStore) record(name string) {
	m.calls = append(m.calls, name)
}

func (m *memStore) Insert(_ context.Context, p *models.Proposal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Insert")

	if _, ok := m.proposals[p.ID]; ok {
		return models.ErrConcurrentModification
	}
	m.proposals[p.ID] = p.Clone()

	return nil
}

func (m *memStore) Transact(_ context.Context, id string, fn func(*models.Proposal) (*models.Proposal, error)) (*models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Transact")

	cur, ok := m.proposals[id]
	if !ok {
		return nil, models.ErrProposalNotFound
	}

	next, err := fn(cur.Clone())
	if err != nil {
		return nil, err
	}

	if next.Revision == cur.Revision {
		return cur.Clone(), nil
	}

	if next.Revision != cur.Revision+1 {
		return nil, fmt.Errorf("revision jumped from %d to %d", cur.Revision, next.Revision)
	}
	m.proposals[id] = next.Clone()

	return next, nil
}

func (m *memStore) GetProposal(_ context.Context, id string) (*models.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetProposal")

	p, ok := m.proposals[id]
	if !ok {
		return nil, models.ErrProposalNotFound
	}

	return p.Clone(), nil
}

func (m *memStore) ListProposals(_ context.Context, q models.ListQuery) ([]models.Proposal, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListProposals")

	out := []models.Proposal{}
	for _, p := range m.proposals {
		if q.GuestID != "" && p.GuestID != q.GuestID {
			continue
		}
		out = append(out, *p.Clone())
	}

	return out, false, nil
}

func (m *memStore) GetHistory(_ context.Context, q models.HistoryQuery) ([]models.HistoryEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetHistory")

	p, ok := m.proposals[q.ProposalID]
	if !ok {
		return nil, false, models.ErrProposalNotFound
	}

	out := []models.HistoryEntry{}
	for _, h := range p.History {
		if q.Field == "" || h.Field == q.Field {
			out = append(out, h)
		}
	}

	return out, false, nil
}

func (m *memStore) GetNegotiation(_ context.Context, id string) ([]models.NegotiationRound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetNegotiation")

	p, ok := m.proposals[id]
	if !ok {
		return nil, models.ErrProposalNotFound
	}

	return p.Clone().Negotiation, nil
}

func (m *memStore) ListStalled(_ context.Context, cutoff time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListStalled")

	var stalled []*models.Proposal
	for _, p := range m.proposals {
		if p.Deleted || p.IsFinalized || lifecycle.IsTerminal(p.Status) || !p.ModifiedAt.Before(cutoff) {
			continue
		}
		stalled = append(stalled, p)
	}

	sort.Slice(stalled, func(i, j int) bool { return stalled[i].ModifiedAt.Before(stalled[j].ModifiedAt) })

	ids := make([]string, 0, len(stalled))
	for i, p := range stalled {
		if i == limit {
			break
		}
		ids = append(ids, p.ID)
	}

	return ids, nil
}

// recordingEnqueuer captures events synchronously.
type recordingEnqueuer struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingEnqueuer) Enqueue(evt models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingEnqueuer) snapshot() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]models.Event(nil), r.events...)
}

// manualClock returns a fixed instant that tests move explicitly.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *manualClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.t
}

func (c *manualClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	svc    *ProposalService
	store  *memStore
	events *recordingEnqueuer
	clock  *manualClock
	leases *lease.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	clock := &manualClock{t: epoch}
	n := 0
	var idMu sync.Mutex
	machine := lifecycle.NewMachine(
		lifecycle.WithClock(clock.now),
		lifecycle.WithIDGenerator(func() string {
			idMu.Lock()
			defer idMu.Unlock()
			n++
			return fmt.Sprintf("id-%d", n)
		}),
	)

	f := &fixture{
		store:  newMemStore(),
		events: &recordingEnqueuer{},
		clock:  clock,
		leases: lease.New(time.Second),
	}
	f.svc = NewProposalService(f.store, machine, f.leases, f.events, pricing.WeeklyQuoter{}, log)

	return f
}

func validTerms() models.Terms {
	return models.Terms{
		NightlyPrice:     decimal.NewFromInt(142),
		CleaningFee:      decimal.NewFromInt(60),
		DamageDeposit:    decimal.NewFromInt(500),
		MoveInDate:       epoch.AddDate(0, 1, 0),
		ReservationWeeks: 8,
		NightsPerWeek:    4,
		CheckInDay:       "monday",
		CheckOutDay:      "friday",
	}
}

func (f *fixture) create(t *testing.T) *models.Proposal {
	t.Helper()

	p, err := f.svc.CreateProposal(context.Background(), guest, models.CreateProposalRequest{
		GuestID:   "guest-1",
		HostID:    "host-1",
		ListingID: "listing-1",
	})
	if err != nil {
		t.Fatalf("CreateProposal: %v", err)
	}

	return p
}

func (f *fixture) inHostReview(t *testing.T) *models.Proposal {
	t.Helper()

	p := f.create(t)

	p, err := f.svc.Submit(context.Background(), p.ID, guest, models.SubmitRequest{Terms: validTerms()})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	return p
}
