package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Terms is the price/schedule snapshot a proposal is negotiated over. The
// engine never computes these figures; they arrive from the pricing
// collaborator or from the parties and are carried as opaque values.
type Terms struct {
	NightlyPrice     decimal.Decimal `json:"nightly_price"`
	CleaningFee      decimal.Decimal `json:"cleaning_fee"`
	DamageDeposit    decimal.Decimal `json:"damage_deposit"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	MoveInDate       time.Time       `json:"move_in_date"`
	ReservationWeeks int             `json:"reservation_weeks"`
	NightsPerWeek    int             `json:"nights_per_week"`
	CheckInDay       string          `json:"check_in_day,omitempty"`
	CheckOutDay      string          `json:"check_out_day,omitempty"`
}

// Term field names accepted in counter-offers.
const (
	TermNightlyPrice     = "nightly_price"
	TermCleaningFee      = "cleaning_fee"
	TermDamageDeposit    = "damage_deposit"
	TermTotalPrice       = "total_price"
	TermMoveInDate       = "move_in_date"
	TermReservationWeeks = "reservation_weeks"
	TermNightsPerWeek    = "nights_per_week"
	TermCheckInDay       = "check_in_day"
	TermCheckOutDay      = "check_out_day"
)

type termField struct {
	get      func(t *Terms) any
	set      func(t *Terms, raw json.RawMessage) error
	schedule bool
}

var termFields = map[string]termField{
	TermNightlyPrice: {
		get: func(t *Terms) any { return t.NightlyPrice },
		set: func(t *Terms, raw json.RawMessage) error { return json.Unmarshal(raw, &t.NightlyPrice) },
	},
	TermCleaningFee: {
		get: func(t *Terms) any { return t.CleaningFee },
		set: func(t *Terms, raw json.RawMessage) error { return json.Unmarshal(raw, &t.CleaningFee) },
	},
	TermDamageDeposit: {
		get: func(t *Terms) any { return t.DamageDeposit },
		set: func(t *Terms, raw json.RawMessage) error { return json.Unmarshal(raw, &t.DamageDeposit) },
	},
	TermTotalPrice: {
		get: func(t *Terms) any { return t.TotalPrice },
		set: func(t *Terms, raw json.RawMessage) error { return json.Unmarshal(raw, &t.TotalPrice) },
	},
	TermMoveInDate: {
		get:      func(t *Terms) any { return t.MoveInDate },
		set:      func(t *Terms, raw json.RawMessage) error { return json.Unmarshal(raw, &t.MoveInDate) },
		schedule: true,
	},
	TermReservationWeeks: {
		get:      func(t *Terms) any { return t.ReservationWeeks },
		set:      func(t *Terms, raw json.RawMessage) error { return json.Unmarshal(raw, &t.ReservationWeeks) },
		schedule: true,
	},
	TermNightsPerWeek: {
		get:      func(t *Terms) any { return t.NightsPerWeek },
		set:      func(t *Terms, raw json.RawMessage) error { return json.Unmarshal(raw, &t.NightsPerWeek) },
		schedule: true,
	},
	TermCheckInDay: {
		get:      func(t *Terms) any { return t.CheckInDay },
		set:      func(t *Terms, raw json.RawMessage) error { return json.Unmarshal(raw, &t.CheckInDay) },
		schedule: true,
	},
	TermCheckOutDay: {
		get:      func(t *Terms) any { return t.CheckOutDay },
		set:      func(t *Terms, raw json.RawMessage) error { return json.Unmarshal(raw, &t.CheckOutDay) },
		schedule: true,
	},
}

// TermFieldNames returns the negotiable field names in sorted order.
func TermFieldNames() []string {
	names := make([]string, 0, len(termFields))
	for name := range termFields {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// IsScheduleField reports whether changing name requires re-pricing.
func IsScheduleField(name string) bool {
	return termFields[name].schedule
}

// Get returns the canonical JSON encoding of a term field.
func (t *Terms) Get(name string) (json.RawMessage, error) {
	f, ok := termFields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTerm, name)
	}

	data, err := json.Marshal(f.get(t))
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", name, err)
	}

	return data, nil
}

// Set decodes raw into the named field and returns the field's canonical
// encoding, so "150", 150 and "150.00" all compare equal afterwards.
func (t *Terms) Set(name string, raw json.RawMessage) (json.RawMessage, error) {
	f, ok := termFields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTerm, name)
	}

	if err := f.set(t, raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTermValue, name, err) //nolint:errorlint // decode detail is informational
	}

	return t.Get(name)
}

// Canonical returns the canonical encoding raw would have once stored in name,
// without modifying t.
func (t *Terms) Canonical(name string, raw json.RawMessage) (json.RawMessage, error) {
	scratch := *t

	return scratch.Set(name, raw)
}

// Validate checks the snapshot is complete enough to submit.
func (t *Terms) Validate() error {
	if !t.NightlyPrice.IsPositive() {
		return fmt.Errorf("nightly_price must be positive")
	}

	if t.CleaningFee.IsNegative() || t.DamageDeposit.IsNegative() || t.TotalPrice.IsNegative() {
		return fmt.Errorf("fees and totals must not be negative")
	}

	if t.MoveInDate.IsZero() {
		return fmt.Errorf("move_in_date is required")
	}

	if t.ReservationWeeks < 1 {
		return fmt.Errorf("reservation_weeks must be at least 1")
	}

	if t.NightsPerWeek < 1 || t.NightsPerWeek > 7 {
		return fmt.Errorf("nights_per_week must be between 1 and 7")
	}

	return nil
}

// FieldChange is one before/after pair inside a negotiation round.
type FieldChange struct {
	Before json.RawMessage `json:"before"`
	After  json.RawMessage `json:"after"`
}

// Equal reports whether two encoded values are byte-identical.
func Equal(a, b json.RawMessage) bool {
	return bytes.Equal(a, b)
}
