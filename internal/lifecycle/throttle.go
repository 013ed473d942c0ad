package lifecycle

import (
	"fmt"

	"github.com/splitlease/proposals/internal/models"
)

// MaxReminders is the per-party cap on reminders over a proposal's lifetime.
const MaxReminders = 3

// Throttle caps reminders per party.
type Throttle struct {
	Max int
}

// CanRemind reports whether actor has reminders left. The platform never
// sends reminders.
func (t Throttle) CanRemind(p *models.Proposal, actor models.Role) bool {
	if !actor.IsParty() {
		return false
	}

	return p.Reminders(actor) < t.limit()
}

// Remaining returns how many reminders actor may still send.
func (t Throttle) Remaining(p *models.Proposal, actor models.Role) int {
	if !actor.IsParty() {
		return 0
	}

	return max(t.limit()-p.Reminders(actor), 0)
}

// Label renders the reminder affordance text with its counter.
func (t Throttle) Label(p *models.Proposal, actor models.Role) string {
	return fmt.Sprintf("%s (%d/%d)", labelRemind, p.Reminders(actor), t.limit())
}

func (t Throttle) limit() int {
	if t.Max <= 0 {
		return MaxReminders
	}

	return t.Max
}

// record increments the actor's counter. It fails without touching the
// proposal once the cap is reached.
func (t Throttle) record(x *txn) error {
	actor := x.cmd.Actor
	if !actor.IsParty() {
		return models.NewTransitionError(x.p.Status, string(OpRemind), actor)
	}

	if !t.CanRemind(x.p, actor) {
		return &models.Error{
			Code:    models.CodeThrottleExceeded,
			Message: fmt.Sprintf("%s has already sent %d reminders", actor, t.limit()),
			Metadata: map[string]string{
				"Actor": string(actor),
				"Limit": fmt.Sprint(t.limit()),
			},
		}
	}

	if actor == models.RoleGuest {
		before := x.p.RemindersByGuest
		x.p.RemindersByGuest++

		return x.record("reminders_by_guest", before, x.p.RemindersByGuest)
	}

	before := x.p.RemindersByHost
	x.p.RemindersByHost++

	return x.record("reminders_by_host", before, x.p.RemindersByHost)
}
