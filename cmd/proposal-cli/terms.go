package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/splitlease/proposals/client"
)

// termsFile is the YAML layout accepted by "proposal submit --terms".
type termsFile struct {
	NightlyPrice     string `yaml:"nightly_price"`
	CleaningFee      string `yaml:"cleaning_fee"`
	DamageDeposit    string `yaml:"damage_deposit"`
	TotalPrice       string `yaml:"total_price"`
	MoveInDate       string `yaml:"move_in_date"`
	ReservationWeeks int    `yaml:"reservation_weeks"`
	NightsPerWeek    int    `yaml:"nights_per_week"`
	CheckInDay       string `yaml:"check_in_day"`
	CheckOutDay      string `yaml:"check_out_day"`
}

func loadTerms(path string) (client.Terms, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return client.Terms{}, err
	}
	return parseTerms(data)
}

func parseTerms(data []byte) (client.Terms, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return client.Terms{}, fmt.Errorf("parse terms: %w", err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return client.Terms{}, errors.New("parse terms: expected a mapping of term fields")
	}

	var f termsFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return client.Terms{}, fmt.Errorf("parse terms: %w", err)
	}
	if f == (termsFile{}) {
		return client.Terms{}, errors.New("parse terms: no term fields set")
	}

	t := client.Terms{
		ReservationWeeks: f.ReservationWeeks,
		NightsPerWeek:    f.NightsPerWeek,
		CheckInDay:       f.CheckInDay,
		CheckOutDay:      f.CheckOutDay,
	}

	for _, m := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"nightly_price", f.NightlyPrice, &t.NightlyPrice},
		{"cleaning_fee", f.CleaningFee, &t.CleaningFee},
		{"damage_deposit", f.DamageDeposit, &t.DamageDeposit},
		{"total_price", f.TotalPrice, &t.TotalPrice},
	} {
		if m.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(m.raw)
		if err != nil {
			return client.Terms{}, fmt.Errorf("%s: %w", m.name, err)
		}
		*m.dst = d
	}

	if f.MoveInDate != "" {
		d, err := parseDate(f.MoveInDate)
		if err != nil {
			return client.Terms{}, fmt.Errorf("move_in_date: %w", err)
		}
		t.MoveInDate = d
	}

	return t, nil
}

// parseDate accepts RFC 3339 timestamps or plain YYYY-MM-DD dates (UTC midnight).
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%q is not a date (use YYYY-MM-DD or RFC 3339)", s)
	}
	return t, nil
}

// parseChanges turns field=value pairs into counter-offer changes. Values
// that are valid JSON are sent as-is, anything else as a string.
func parseChanges(args []string) (map[string]any, error) {
	changes := make(map[string]any, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("%q is not field=value", arg)
		}
		if _, dup := changes[name]; dup {
			return nil, fmt.Errorf("field %s given twice", name)
		}
		if name == "move_in_date" {
			d, err := parseDate(value)
			if err != nil {
				return nil, err
			}
			changes[name] = d
			continue
		}
		if json.Valid([]byte(value)) {
			changes[name] = json.RawMessage(value)
		} else {
			changes[name] = value
		}
	}
	return changes, nil
}
