// Package lifecycle implements the proposal lifecycle engine: the status
// registry, the audit trail, the reminder throttle, the negotiation log, the
// virtual meeting sub-machine, the proposal state machine and the action
// policy resolver.
//
// Everything in this package is pure: it works on an in-memory
// models.Proposal with an injected clock and never performs I/O. Locking and
// persistence belong to the service and store layers.
package lifecycle

import (
	"slices"

	"github.com/splitlease/proposals/internal/models"
)

// Operation names an engine entry point.
type Operation string

const (
	OpCreate               Operation = "create"
	OpSubmit               Operation = "submit"
	OpApplicationCompleted Operation = "application_completed"
	OpAccept               Operation = "accept"
	OpReject               Operation = "reject"
	OpCounter              Operation = "counter"
	OpAcceptCounter        Operation = "accept_counter"
	OpAttachDraft          Operation = "attach_draft"
	OpDocumentsDrafted     Operation = "documents_drafted"
	OpFinalizeReview       Operation = "finalize_review"
	OpBothFinalizeReview   Operation = "both_finalize_review"
	OpPaymentSubmitted     Operation = "payment_submitted"
	OpCancelByGuest        Operation = "cancel_by_guest"
	OpCancelByPlatform     Operation = "cancel_by_platform"
	OpDelete               Operation = "delete"
	OpRemind               Operation = "remind"
	OpFinalize             Operation = "finalize"
	OpUnlock               Operation = "unlock"
	OpRequestMeeting       Operation = "request_meeting"
	OpBookMeeting          Operation = "book_meeting"
	OpConfirmMeeting       Operation = "confirm_meeting"
	OpDeclineMeeting       Operation = "decline_meeting"
	OpViewLease            Operation = "view_lease"
)

// Descriptor is the static description of one status.
type Descriptor struct {
	Status          models.Status `json:"status"`
	StageIndex      int           `json:"stage_index"`
	UsualOrder      int           `json:"usual_order"`
	Terminal        bool          `json:"terminal"`
	SuccessTerminal bool          `json:"success_terminal"`
	DeletePermitted bool          `json:"delete_permitted"`

	GuestAction      Operation `json:"guest_action,omitempty"`
	GuestActionLabel string    `json:"guest_action_label"`
	HostAction       Operation `json:"host_action,omitempty"`
	HostActionLabel  string    `json:"host_action_label"`
	PlatformAction   Operation `json:"platform_action,omitempty"`
	PlatformLabel    string    `json:"platform_action_label,omitempty"`
}

// Action returns the primary operation and label a role sees in this status.
func (d Descriptor) Action(role models.Role) (Operation, string) {
	switch role {
	case models.RoleGuest:
		return d.GuestAction, d.GuestActionLabel
	case models.RoleHost:
		return d.HostAction, d.HostActionLabel
	case models.RolePlatform:
		return d.PlatformAction, d.PlatformLabel
	default:
		return "", ""
	}
}

// Edge is one status-changing transition.
type Edge struct {
	From   models.Status `json:"from"`
	Op     Operation     `json:"operation"`
	Actors []models.Role `json:"actors"`
	To     models.Status `json:"to"`
}

// Permits reports whether role may take this edge.
func (e Edge) Permits(role models.Role) bool {
	return slices.Contains(e.Actors, role)
}

const (
	labelRemind = "Remind Split Lease"
	labelDelete = "Delete Proposal"
)

var descriptors = map[models.Status]Descriptor{
	models.StatusPending: {
		StageIndex: 1, UsualOrder: 0,
		GuestAction: OpSubmit, GuestActionLabel: "Submit Proposal",
		HostActionLabel: "Awaiting Guest Submission",
	},
	models.StatusAwaitingRentalApplication: {
		StageIndex: 1, UsualOrder: 1,
		GuestAction: OpApplicationCompleted, GuestActionLabel: "Complete Rental Application",
		HostAction: OpRemind, HostActionLabel: labelRemind,
	},
	models.StatusHostReview: {
		StageIndex: 2, UsualOrder: 2,
		GuestAction: OpRemind, GuestActionLabel: labelRemind,
		HostAction: OpAccept, HostActionLabel: "Accept Proposal",
	},
	models.StatusCounterofferAwaitingGuestReview: {
		StageIndex: 2, UsualOrder: 3,
		GuestAction: OpAcceptCounter, GuestActionLabel: "Accept Counteroffer",
		HostAction: OpRemind, HostActionLabel: labelRemind,
	},
	models.StatusAcceptedDraftingDocuments: {
		StageIndex: 3, UsualOrder: 4,
		GuestAction: OpRemind, GuestActionLabel: labelRemind,
		HostAction: OpRemind, HostActionLabel: labelRemind,
		PlatformAction: OpDocumentsDrafted, PlatformLabel: "Send Lease Documents",
	},
	models.StatusLeaseDocsSentForReview: {
		StageIndex: 4, UsualOrder: 5,
		GuestAction: OpFinalizeReview, GuestActionLabel: "Review Documents",
		HostAction: OpFinalizeReview, HostActionLabel: "Review Documents",
	},
	models.StatusLeaseDocsSentForSignature: {
		StageIndex: 5, UsualOrder: 6,
		GuestAction: OpPaymentSubmitted, GuestActionLabel: "Submit Initial Payment",
		HostAction: OpRemind, HostActionLabel: labelRemind,
		PlatformAction: OpPaymentSubmitted, PlatformLabel: "Record Initial Payment",
	},
	models.StatusLeaseActivated: {
		StageIndex: 6, UsualOrder: 7, Terminal: true, SuccessTerminal: true,
		GuestAction: OpViewLease, GuestActionLabel: "Go to Leases",
		HostAction: OpViewLease, HostActionLabel: "Go to Leases",
	},
	models.StatusRejectedByHost: {
		StageIndex: 6, UsualOrder: -1, Terminal: true, DeletePermitted: true,
		GuestAction: OpDelete, GuestActionLabel: labelDelete,
		HostAction: OpDelete, HostActionLabel: labelDelete,
		PlatformAction: OpDelete, PlatformLabel: labelDelete,
	},
	models.StatusCancelledByGuest: {
		StageIndex: 6, UsualOrder: -1, Terminal: true, DeletePermitted: true,
		GuestAction: OpDelete, GuestActionLabel: labelDelete,
		HostAction: OpDelete, HostActionLabel: labelDelete,
		PlatformAction: OpDelete, PlatformLabel: labelDelete,
	},
	models.StatusCancelledByPlatform: {
		StageIndex: 6, UsualOrder: -1, Terminal: true, DeletePermitted: true,
		GuestAction: OpDelete, GuestActionLabel: labelDelete,
		HostAction: OpDelete, HostActionLabel: labelDelete,
		PlatformAction: OpDelete, PlatformLabel: labelDelete,
	},
}

var (
	guestOnly    = []models.Role{models.RoleGuest}
	hostOnly     = []models.Role{models.RoleHost}
	platformOnly = []models.Role{models.RolePlatform}
)

var edges = buildEdges()

func buildEdges() []Edge {
	table := []Edge{
		{From: models.StatusPending, Op: OpSubmit, Actors: guestOnly, To: models.StatusAwaitingRentalApplication},
		{From: models.StatusPending, Op: OpSubmit, Actors: guestOnly, To: models.StatusHostReview},
		{From: models.StatusAwaitingRentalApplication, Op: OpApplicationCompleted, Actors: guestOnly, To: models.StatusHostReview},
		{From: models.StatusHostReview, Op: OpReject, Actors: hostOnly, To: models.StatusRejectedByHost},
		{From: models.StatusHostReview, Op: OpCounter, Actors: hostOnly, To: models.StatusCounterofferAwaitingGuestReview},
		{From: models.StatusHostReview, Op: OpAccept, Actors: hostOnly, To: models.StatusAcceptedDraftingDocuments},
		{From: models.StatusCounterofferAwaitingGuestReview, Op: OpAcceptCounter, Actors: guestOnly, To: models.StatusAcceptedDraftingDocuments},
		{From: models.StatusCounterofferAwaitingGuestReview, Op: OpCounter, Actors: guestOnly, To: models.StatusHostReview},
		{From: models.StatusCounterofferAwaitingGuestReview, Op: OpReject, Actors: guestOnly, To: models.StatusCancelledByGuest},
		{From: models.StatusAcceptedDraftingDocuments, Op: OpDocumentsDrafted, Actors: platformOnly, To: models.StatusLeaseDocsSentForReview},
		{From: models.StatusLeaseDocsSentForReview, Op: OpBothFinalizeReview, Actors: []models.Role{models.RoleGuest, models.RoleHost}, To: models.StatusLeaseDocsSentForSignature},
		{From: models.StatusLeaseDocsSentForSignature, Op: OpPaymentSubmitted, Actors: []models.Role{models.RoleGuest, models.RolePlatform}, To: models.StatusLeaseActivated},
	}

	for _, s := range models.AllStatuses {
		if descriptors[s].Terminal {
			continue
		}

		table = append(table,
			Edge{From: s, Op: OpCancelByGuest, Actors: guestOnly, To: models.StatusCancelledByGuest},
			Edge{From: s, Op: OpCancelByPlatform, Actors: platformOnly, To: models.StatusCancelledByPlatform},
		)
	}

	return table
}

// Describe returns the static description of a status. Unknown statuses
// report ok=false.
func Describe(s models.Status) (Descriptor, bool) {
	d, ok := descriptors[s]
	if !ok {
		return Descriptor{}, false
	}
	d.Status = s

	return d, true
}

// IsTerminal reports whether s admits no further status transitions.
func IsTerminal(s models.Status) bool {
	return descriptors[s].Terminal
}

// Edges returns a copy of the full transition table.
func Edges() []Edge {
	return slices.Clone(edges)
}

// EdgesFrom returns the transitions leaving s.
func EdgesFrom(s models.Status) []Edge {
	var out []Edge
	for _, e := range edges {
		if e.From == s {
			out = append(out, e)
		}
	}

	return out
}

// Lookup finds the edge for op from status taken by role. When an operation
// has several targets (submit), the caller picks with LookupTo.
func Lookup(from models.Status, op Operation, role models.Role) (Edge, bool) {
	for _, e := range edges {
		if e.From == from && e.Op == op && e.Permits(role) {
			return e, true
		}
	}

	return Edge{}, false
}

// LookupTo finds the edge for op from status to a specific target.
func LookupTo(from models.Status, op Operation, role models.Role, to models.Status) (Edge, bool) {
	for _, e := range edges {
		if e.From == from && e.Op == op && e.To == to && e.Permits(role) {
			return e, true
		}
	}

	return Edge{}, false
}

// Produces reports whether role taking op could have led into status. Used
// to detect an idempotent repeat of the call that produced a terminal.
func Produces(op Operation, role models.Role, status models.Status) bool {
	for _, e := range edges {
		if e.Op == op && e.To == status && e.Permits(role) {
			return true
		}
	}

	return false
}
