package models

import (
	"slices"
	"time"
)

// MeetingState is the state of a virtual meeting record. A proposal without a
// meeting record is in the implicit "no meeting" state.
type MeetingState string

const (
	MeetingRequestedByGuest           MeetingState = "requested_by_guest"
	MeetingRequestedByHost            MeetingState = "requested_by_host"
	MeetingBookedAwaitingConfirmation MeetingState = "booked_awaiting_confirmation"
	MeetingConfirmed                  MeetingState = "confirmed"
	MeetingDeclined                   MeetingState = "declined"
)

// RequestedState returns the requested state for the party that opened it.
func RequestedState(by Role) MeetingState {
	if by == RoleHost {
		return MeetingRequestedByHost
	}

	return MeetingRequestedByGuest
}

// IsRequested reports whether the meeting is waiting for the counterpart.
func (s MeetingState) IsRequested() bool {
	return s == MeetingRequestedByGuest || s == MeetingRequestedByHost
}

// VirtualMeeting is an optional scheduling handshake owned by a proposal.
type VirtualMeeting struct {
	ID                  string       `json:"id"`
	ProposalID          string       `json:"proposal_id"`
	State               MeetingState `json:"state"`
	RequestedBy         Role         `json:"requested_by"`
	SuggestedDates      []time.Time  `json:"suggested_dates"`
	BookedDate          *time.Time   `json:"booked_date,omitempty"`
	ConfirmedByPlatform bool         `json:"confirmed_by_platform"`
	Declined            bool         `json:"declined"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}

func (vm VirtualMeeting) clone() VirtualMeeting {
	c := vm
	c.SuggestedDates = slices.Clone(vm.SuggestedDates)
	if vm.BookedDate != nil {
		d := *vm.BookedDate
		c.BookedDate = &d
	}

	return c
}

// HasSuggested reports whether date is one of the suggested dates.
func (vm *VirtualMeeting) HasSuggested(date time.Time) bool {
	for _, d := range vm.SuggestedDates {
		if d.Equal(date) {
			return true
		}
	}

	return false
}
