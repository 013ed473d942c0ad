package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/splitlease/proposals/internal/models"
)

// NegotiationLog appends counter-offer rounds and applies their terms.
type NegotiationLog struct {
	now func() time.Time
}

// CanCounter reports whether actor may propose a counter-offer now: the host
// during host review, the guest while a counter-offer awaits them.
func CanCounter(status models.Status, actor models.Role) bool {
	switch status {
	case models.StatusHostReview:
		return actor == models.RoleHost
	case models.StatusCounterofferAwaitingGuestReview:
		return actor == models.RoleGuest
	default:
		return false
	}
}

// propose validates a counter-offer, applies its values to the live terms and
// appends the round. Changes that equal the live value are dropped; a counter
// that changes nothing is rejected.
func (n *NegotiationLog) propose(x *txn, changes map[string]json.RawMessage) (models.NegotiationRound, error) {
	p, actor := x.p, x.cmd.Actor

	if !CanCounter(p.Status, actor) {
		return models.NegotiationRound{}, models.NewNegotiationError(p.Status, actor, "it is not this party's turn to counter")
	}

	if len(changes) == 0 {
		return models.NegotiationRound{}, models.NewNegotiationError(p.Status, actor, "no field changes")
	}

	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)

	diff := make(map[string]models.FieldChange, len(changes))
	for _, name := range names {
		before, err := p.Terms.Get(name)
		if err != nil {
			return models.NegotiationRound{}, err
		}

		after, err := p.Terms.Canonical(name, changes[name])
		if err != nil {
			return models.NegotiationRound{}, err
		}

		if models.Equal(before, after) {
			continue
		}

		diff[name] = models.FieldChange{Before: before, After: after}
	}

	if len(diff) == 0 {
		return models.NegotiationRound{}, models.NewNegotiationError(p.Status, actor, "no field differs from the current terms")
	}

	for _, name := range names {
		change, ok := diff[name]
		if !ok {
			continue
		}

		if _, err := p.Terms.Set(name, change.After); err != nil {
			return models.NegotiationRound{}, err
		}

		if err := x.record("terms."+name, change.Before, change.After); err != nil {
			return models.NegotiationRound{}, err
		}
	}

	round := models.NegotiationRound{
		ProposalID:   p.ID,
		RoundIndex:   len(p.Negotiation) + 1,
		Actor:        actor,
		ActorID:      x.cmd.ActorID,
		FieldChanges: diff,
		CreatedAt:    n.now().UTC(),
	}

	p.Negotiation = append(p.Negotiation, round)
	if err := x.record("negotiation", round.RoundIndex-1, round.RoundIndex); err != nil {
		return models.NegotiationRound{}, err
	}

	if err := x.set("counter_offer_happened", &p.CounterOfferHappened, true); err != nil {
		return models.NegotiationRound{}, err
	}

	return round, nil
}

// ErrBrokenChain is returned by CheckChain when rounds do not link up.
var ErrBrokenChain = errors.New("negotiation rounds do not chain")

// CheckChain verifies rounds are numbered 1..n and that every field's before
// value equals the after value of the previous round that touched it.
func CheckChain(rounds []models.NegotiationRound) error {
	last := map[string]json.RawMessage{}

	for i, r := range rounds {
		if r.RoundIndex != i+1 {
			return fmt.Errorf("%w: round %d has index %d", ErrBrokenChain, i+1, r.RoundIndex)
		}

		for name, c := range r.FieldChanges {
			if prev, ok := last[name]; ok && !models.Equal(prev, c.Before) {
				return fmt.Errorf("%w: round %d field %s", ErrBrokenChain, r.RoundIndex, name)
			}
			last[name] = c.After
		}
	}

	return nil
}
