package lifecycle

import (
	"time"

	"github.com/splitlease/proposals/internal/models"
)

// Affordance labels.
const (
	LabelCancel           = "Cancel Proposal"
	LabelReject           = "Reject Proposal"
	LabelDeclineCounter   = "Decline Counteroffer"
	LabelCounter          = "Counteroffer"
	LabelRequestMeeting   = "Request Virtual Meeting"
	LabelMeetingRequested = "Meeting Requested"
	LabelRespondMeeting   = "Respond to Meeting Request"
	LabelDeclineMeeting   = "Decline Meeting"
	LabelConfirmMeeting   = "Confirm Meeting"
	LabelMeetingBooked    = "Meeting Booked"
	LabelMeetingConfirmed = "Meeting Confirmed"
	LabelMeetingLapsed    = "Meeting Date Passed"
	LabelReviewFinalized  = "Review Finalized"
	LabelFinalize         = "Lock Proposal"
	LabelUnlock           = "Unlock Proposal"
)

// Affordance is one action a role may see for a proposal.
type Affordance struct {
	Action  Operation `json:"action,omitempty"`
	Label   string    `json:"label"`
	Visible bool      `json:"visible"`
	Enabled bool      `json:"enabled"`
}

// ActionSet is what a role should be offered for a proposal right now.
type ActionSet struct {
	Status         models.Status `json:"status"`
	Role           models.Role   `json:"role"`
	StageIndex     int           `json:"stage_index"`
	PrimaryLabel   string        `json:"primary_label"`
	SecondaryLabel string        `json:"secondary_label"`
	Visible        bool          `json:"visible"`
	Enabled        bool          `json:"enabled"`
	Affordances    []Affordance  `json:"affordances"`
}

// Find returns the affordance for op, if offered.
func (s ActionSet) Find(op Operation) (Affordance, bool) {
	for _, a := range s.Affordances {
		if a.Action == op {
			return a, true
		}
	}

	return Affordance{}, false
}

// ResolveActions computes the action set with the default reminder limit.
func ResolveActions(p *models.Proposal, role models.Role, now time.Time) ActionSet {
	return resolve(p, role, now, Throttle{})
}

// ResolveActions computes the action set using the machine's clock and
// reminder limit.
func (m *Machine) ResolveActions(p *models.Proposal, role models.Role) ActionSet {
	return resolve(p, role, m.now(), m.throttle)
}

func resolve(p *models.Proposal, role models.Role, now time.Time, th Throttle) ActionSet {
	set := ActionSet{Affordances: []Affordance{}}
	if p == nil {
		return set
	}

	set.Status, set.Role = p.Status, role

	desc, ok := Describe(p.Status)
	if !ok || !role.IsValid() {
		return set
	}
	set.StageIndex = desc.StageIndex

	if desc.Terminal {
		if desc.DeletePermitted && !p.Deleted {
			del := Affordance{Action: OpDelete, Label: labelDelete, Visible: true, Enabled: true}
			set.Affordances = append(set.Affordances, del)
			set.PrimaryLabel, set.Visible, set.Enabled = del.Label, true, true
		}

		return set
	}

	op, label := desc.Action(role)
	primary := primaryAffordance(p, role, op, label, th)
	if primary.Label != "" {
		set.PrimaryLabel, set.Visible, set.Enabled = primary.Label, primary.Visible, primary.Enabled
		if primary.Action != "" {
			set.Affordances = append(set.Affordances, primary)
		}
	}

	if sec, ok := secondaryAffordance(p, role); ok {
		set.SecondaryLabel = sec.Label
		set.Affordances = append(set.Affordances, sec)
	}

	if CanCounter(p.Status, role) {
		set.Affordances = append(set.Affordances, Affordance{Action: OpCounter, Label: LabelCounter, Visible: true, Enabled: true})
	}

	if role.IsParty() && op != OpRemind {
		can := th.CanRemind(p, role)
		set.Affordances = append(set.Affordances, Affordance{Action: OpRemind, Label: th.Label(p, role), Visible: can, Enabled: can})
	}

	set.Affordances = append(set.Affordances, meetingAffordances(p, role, now)...)

	if role == models.RolePlatform {
		if p.IsFinalized {
			set.Affordances = append(set.Affordances, Affordance{Action: OpUnlock, Label: LabelUnlock, Visible: true, Enabled: true})
		} else {
			set.Affordances = append(set.Affordances, Affordance{Action: OpFinalize, Label: LabelFinalize, Visible: true, Enabled: true})
		}

		return set
	}

	if p.IsFinalized {
		set.Enabled = false
		for i := range set.Affordances {
			set.Affordances[i].Enabled = false
		}
	}

	return set
}

func primaryAffordance(p *models.Proposal, role models.Role, op Operation, label string, th Throttle) Affordance {
	switch op {
	case "":
		// Waiting on the other party: show the state, nothing to press.
		return Affordance{Label: label, Visible: label != ""}
	case OpRemind:
		can := th.CanRemind(p, role)

		return Affordance{Action: op, Label: th.Label(p, role), Visible: can, Enabled: can}
	case OpFinalizeReview:
		done := p.GuestDocumentsReviewFinalized
		if role == models.RoleHost {
			done = p.HostDocumentsReviewFinalized
		}

		if done {
			return Affordance{Action: op, Label: LabelReviewFinalized, Visible: true}
		}
	case OpDocumentsDrafted:
		return Affordance{Action: op, Label: label, Visible: true, Enabled: len(p.DraftDocuments.Missing()) == 0}
	}

	return Affordance{Action: op, Label: label, Visible: true, Enabled: true}
}

func secondaryAffordance(p *models.Proposal, role models.Role) (Affordance, bool) {
	switch {
	case role == models.RoleHost && p.Status == models.StatusHostReview:
		return Affordance{Action: OpReject, Label: LabelReject, Visible: true, Enabled: true}, true
	case role == models.RoleGuest && p.Status == models.StatusCounterofferAwaitingGuestReview:
		return Affordance{Action: OpReject, Label: LabelDeclineCounter, Visible: true, Enabled: true}, true
	case role == models.RoleGuest:
		return Affordance{Action: OpCancelByGuest, Label: LabelCancel, Visible: true, Enabled: true}, true
	case role == models.RolePlatform:
		return Affordance{Action: OpCancelByPlatform, Label: LabelCancel, Visible: true, Enabled: true}, true
	default:
		return Affordance{}, false
	}
}

func meetingAffordances(p *models.Proposal, role models.Role, now time.Time) []Affordance {
	vm := p.VirtualMeeting

	if role == models.RolePlatform {
		if vm != nil && vm.State == models.MeetingBookedAwaitingConfirmation && IsActive(vm, p, now) {
			return []Affordance{
				{Action: OpConfirmMeeting, Label: LabelConfirmMeeting, Visible: true, Enabled: true},
				{Action: OpDeclineMeeting, Label: LabelDeclineMeeting, Visible: true, Enabled: true},
			}
		}

		return nil
	}

	switch {
	case vm == nil || vm.State == models.MeetingDeclined:
		return []Affordance{{Action: OpRequestMeeting, Label: LabelRequestMeeting, Visible: true, Enabled: true}}
	case vm.State.IsRequested() && vm.RequestedBy == role:
		return []Affordance{
			{Action: OpRequestMeeting, Label: LabelMeetingRequested, Visible: true},
			{Action: OpDeclineMeeting, Label: LabelDeclineMeeting, Visible: true, Enabled: true},
		}
	case vm.State.IsRequested():
		return []Affordance{
			{Action: OpBookMeeting, Label: LabelRespondMeeting, Visible: true, Enabled: true},
			{Action: OpDeclineMeeting, Label: LabelDeclineMeeting, Visible: true, Enabled: true},
		}
	case vm.State == models.MeetingBookedAwaitingConfirmation && !IsActive(vm, p, now):
		return []Affordance{{Action: OpBookMeeting, Label: LabelMeetingLapsed, Visible: true}}
	case vm.State == models.MeetingBookedAwaitingConfirmation:
		return []Affordance{
			{Action: OpBookMeeting, Label: LabelMeetingBooked, Visible: true},
			{Action: OpDeclineMeeting, Label: LabelDeclineMeeting, Visible: true, Enabled: true},
		}
	default:
		return []Affordance{{Action: OpConfirmMeeting, Label: LabelMeetingConfirmed, Visible: true}}
	}
}
