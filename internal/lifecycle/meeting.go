package lifecycle

import (
	"slices"
	"time"

	"github.com/splitlease/proposals/internal/models"
)

// Meetings drives the virtual meeting sub-machine. It runs independently of
// the proposal status and is cleared when the proposal reaches a terminal.
type Meetings struct {
	now   func() time.Time
	newID func() string
}

// IsActive reports whether a meeting is still worth showing: the proposal is
// open, the meeting was not declined, and either the booked date or the
// latest suggested date lies ahead of now. Suggested dates are kept sorted,
// so the last one is the latest.
func IsActive(vm *models.VirtualMeeting, p *models.Proposal, now time.Time) bool {
	if vm == nil || p == nil || IsTerminal(p.Status) || p.Deleted {
		return false
	}

	if vm.Declined || vm.State == models.MeetingDeclined {
		return false
	}

	if vm.BookedDate != nil && vm.BookedDate.After(now) {
		return true
	}

	n := len(vm.SuggestedDates)

	return n > 0 && vm.SuggestedDates[n-1].After(now)
}

func meetingError(x *txn, op Operation, vm *models.VirtualMeeting) error {
	err := models.NewTransitionError(x.p.Status, string(op), x.cmd.Actor)
	if vm != nil {
		err.Metadata["MeetingState"] = string(vm.State)
		err.Message += " (meeting " + string(vm.State) + ")"
	} else {
		err.Message += " (no meeting)"
	}

	return err
}

func (m *Meetings) request(x *txn, dates []time.Time) error {
	actor := x.cmd.Actor
	if !actor.IsParty() {
		return meetingError(x, OpRequestMeeting, x.p.VirtualMeeting)
	}

	if len(dates) == 0 {
		return models.NewPreconditionError(string(OpRequestMeeting), "at least one suggested date")
	}

	now := m.now().UTC()
	sorted := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		if !d.After(now) {
			return models.NewPreconditionError(string(OpRequestMeeting), "suggested dates in the future")
		}

		d = d.UTC()
		if !slices.ContainsFunc(sorted, d.Equal) {
			sorted = append(sorted, d)
		}
	}
	slices.SortFunc(sorted, func(a, b time.Time) int { return a.Compare(b) })

	vm := x.p.VirtualMeeting
	if vm != nil {
		switch {
		case vm.State == models.RequestedState(actor) && vm.RequestedBy == actor:
			return nil
		case vm.State != models.MeetingDeclined:
			return meetingError(x, OpRequestMeeting, vm)
		}
	}

	fresh := &models.VirtualMeeting{
		ID:             m.newID(),
		ProposalID:     x.p.ID,
		State:          models.RequestedState(actor),
		RequestedBy:    actor,
		SuggestedDates: sorted,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var previous any
	if vm != nil {
		previous = vm.ID
	}

	x.p.VirtualMeeting = fresh

	if err := x.record("virtual_meeting", previous, fresh.ID); err != nil {
		return err
	}

	if err := x.record("virtual_meeting.state", meetingState(vm), fresh.State); err != nil {
		return err
	}

	return x.record("virtual_meeting.suggested_dates", nil, fresh.SuggestedDates)
}

func (m *Meetings) book(x *txn, date time.Time) error {
	vm, actor := x.p.VirtualMeeting, x.cmd.Actor
	if vm == nil || !vm.State.IsRequested() || actor == vm.RequestedBy {
		return meetingError(x, OpBookMeeting, vm)
	}

	now := m.now().UTC()
	date = date.UTC()

	if !date.After(now) {
		return models.NewPreconditionError(string(OpBookMeeting), "a future meeting date")
	}

	if actor.IsParty() && !vm.HasSuggested(date) {
		return models.NewPreconditionError(string(OpBookMeeting), "one of the suggested dates")
	}

	before := vm.State
	vm.State = models.MeetingBookedAwaitingConfirmation
	vm.BookedDate = &date
	vm.UpdatedAt = now

	if err := x.record("virtual_meeting.state", before, vm.State); err != nil {
		return err
	}

	return x.record("virtual_meeting.booked_date", nil, date)
}

func (m *Meetings) confirm(x *txn) error {
	vm := x.p.VirtualMeeting
	if x.cmd.Actor != models.RolePlatform || vm == nil || vm.State != models.MeetingBookedAwaitingConfirmation {
		return meetingError(x, OpConfirmMeeting, vm)
	}

	vm.State = models.MeetingConfirmed
	vm.UpdatedAt = m.now().UTC()

	if err := x.record("virtual_meeting.state", models.MeetingBookedAwaitingConfirmation, vm.State); err != nil {
		return err
	}

	return setField(x, "virtual_meeting.confirmed_by_platform", &vm.ConfirmedByPlatform, true)
}

func (m *Meetings) decline(x *txn) error {
	vm := x.p.VirtualMeeting
	if vm == nil || !(vm.State.IsRequested() || vm.State == models.MeetingBookedAwaitingConfirmation) {
		return meetingError(x, OpDeclineMeeting, vm)
	}

	before := vm.State
	vm.State = models.MeetingDeclined
	vm.UpdatedAt = m.now().UTC()

	if err := x.record("virtual_meeting.state", before, vm.State); err != nil {
		return err
	}

	return setField(x, "virtual_meeting.declined", &vm.Declined, true)
}

// clear drops the meeting when the proposal terminates.
func (m *Meetings) clear(x *txn) error {
	vm := x.p.VirtualMeeting
	if vm == nil {
		return nil
	}

	x.p.VirtualMeeting = nil

	return x.record("virtual_meeting", vm.ID, nil)
}

func meetingState(vm *models.VirtualMeeting) any {
	if vm == nil {
		return nil
	}

	return vm.State
}
