package lifecycle_test

import (
	"testing"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
)

func TestDescribe_CoversEveryStatus(t *testing.T) {
	for _, s := range models.AllStatuses {
		d, ok := lifecycle.Describe(s)
		if !ok {
			t.Errorf("no descriptor for %s", s)
			continue
		}

		if d.Status != s {
			t.Errorf("descriptor status = %s, want %s", d.Status, s)
		}

		if d.StageIndex < 1 || d.StageIndex > 6 {
			t.Errorf("%s: stage index %d out of range", s, d.StageIndex)
		}

		if d.SuccessTerminal && !d.Terminal {
			t.Errorf("%s: success terminal must be terminal", s)
		}

		if d.DeletePermitted && !d.Terminal {
			t.Errorf("%s: delete permitted on open status", s)
		}
	}

	if _, ok := lifecycle.Describe("archived"); ok {
		t.Error("expected unknown status to be undescribed")
	}
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	for _, s := range models.AllStatuses {
		d, _ := lifecycle.Describe(s)
		out := lifecycle.EdgesFrom(s)

		if d.Terminal && len(out) > 0 {
			t.Errorf("terminal %s has %d outgoing edges", s, len(out))
		}

		if !d.Terminal && len(out) == 0 {
			t.Errorf("open status %s has no outgoing edges", s)
		}
	}
}

func TestEdges_ReferenceKnownStatusesAndActors(t *testing.T) {
	for _, e := range lifecycle.Edges() {
		if !e.From.IsValid() || !e.To.IsValid() {
			t.Errorf("edge %s uses unknown status %s -> %s", e.Op, e.From, e.To)
		}

		if len(e.Actors) == 0 {
			t.Errorf("edge %s from %s has no actors", e.Op, e.From)
		}

		for _, r := range e.Actors {
			if !r.IsValid() {
				t.Errorf("edge %s from %s has invalid actor %q", e.Op, e.From, r)
			}
		}
	}
}

func TestCancelEdgesCoverEveryOpenStatus(t *testing.T) {
	for _, s := range models.AllStatuses {
		if lifecycle.IsTerminal(s) {
			continue
		}

		if e, ok := lifecycle.Lookup(s, lifecycle.OpCancelByGuest, models.RoleGuest); !ok || e.To != models.StatusCancelledByGuest {
			t.Errorf("%s: missing cancel by guest", s)
		}

		if e, ok := lifecycle.Lookup(s, lifecycle.OpCancelByPlatform, models.RolePlatform); !ok || e.To != models.StatusCancelledByPlatform {
			t.Errorf("%s: missing cancel by platform", s)
		}

		if _, ok := lifecycle.Lookup(s, lifecycle.OpCancelByGuest, models.RoleHost); ok {
			t.Errorf("%s: host must not cancel as guest", s)
		}
	}
}

func TestUsualOrder(t *testing.T) {
	prev := -1
	for _, s := range models.AllStatuses {
		d, _ := lifecycle.Describe(s)
		if d.Terminal && !d.SuccessTerminal {
			if d.UsualOrder != -1 {
				t.Errorf("%s: usual order = %d, want -1", s, d.UsualOrder)
			}
			continue
		}

		if d.UsualOrder <= prev {
			t.Errorf("%s: usual order %d not after %d", s, d.UsualOrder, prev)
		}
		prev = d.UsualOrder
	}
}

func TestProduces(t *testing.T) {
	tests := []struct {
		name   string
		op     lifecycle.Operation
		role   models.Role
		status models.Status
		want   bool
	}{
		{"guest cancel", lifecycle.OpCancelByGuest, models.RoleGuest, models.StatusCancelledByGuest, true},
		{"guest decline counter", lifecycle.OpReject, models.RoleGuest, models.StatusCancelledByGuest, true},
		{"host reject", lifecycle.OpReject, models.RoleHost, models.StatusRejectedByHost, true},
		{"host reject into guest cancel", lifecycle.OpReject, models.RoleHost, models.StatusCancelledByGuest, false},
		{"platform cancel into guest cancel", lifecycle.OpCancelByPlatform, models.RolePlatform, models.StatusCancelledByGuest, false},
		{"payment", lifecycle.OpPaymentSubmitted, models.RoleGuest, models.StatusLeaseActivated, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := lifecycle.Produces(tc.op, tc.role, tc.status); got != tc.want {
				t.Errorf("Produces = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDescriptor_Action(t *testing.T) {
	d, _ := lifecycle.Describe(models.StatusHostReview)

	op, label := d.Action(models.RoleHost)
	if op != lifecycle.OpAccept || label != "Accept Proposal" {
		t.Errorf("host action = %s %q", op, label)
	}

	op, _ = d.Action(models.RoleGuest)
	if op != lifecycle.OpRemind {
		t.Errorf("guest action = %s, want remind", op)
	}
}
