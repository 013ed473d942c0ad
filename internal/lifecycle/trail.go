package lifecycle

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/splitlease/proposals/internal/models"
)

// Trail appends write-once history entries to a proposal.
type Trail struct {
	now func() time.Time
}

// NewTrail creates a trail that stamps entries with now.
func NewTrail(now func() time.Time) *Trail {
	if now == nil {
		now = time.Now
	}

	return &Trail{now: now}
}

// Record appends one entry for field. The entry carries the revision the
// in-flight call will commit as (p.Revision+1); the machine bumps p.Revision
// once the whole call succeeds. Timestamps never go backwards: a clock that
// reads earlier than the last entry is clamped to it and Seq breaks the tie.
func (t *Trail) Record(p *models.Proposal, actor models.Role, actorID, field string, before, after any) (models.HistoryEntry, error) {
	b, err := encode(before)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("encoding %s before: %w", field, err)
	}

	a, err := encode(after)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("encoding %s after: %w", field, err)
	}

	ts := t.now().UTC()
	seq := int64(1)

	if last, ok := p.LastHistory(); ok {
		seq = last.Seq + 1
		if ts.Before(last.Timestamp) {
			ts = last.Timestamp
		}
	}

	entry := models.HistoryEntry{
		ProposalID: p.ID,
		Seq:        seq,
		Revision:   p.Revision + 1,
		Timestamp:  ts,
		Actor:      actor,
		ActorID:    actorID,
		Field:      field,
		Before:     b,
		After:      a,
	}

	p.History = append(p.History, entry)
	if ts.After(p.ModifiedAt) {
		p.ModifiedAt = ts
	}

	return entry, nil
}

func encode(v any) (json.RawMessage, error) {
	switch val := v.(type) {
	case json.RawMessage:
		if val == nil {
			return json.RawMessage("null"), nil
		}

		return val, nil
	case nil:
		return json.RawMessage("null"), nil
	default:
		return json.Marshal(v)
	}
}
