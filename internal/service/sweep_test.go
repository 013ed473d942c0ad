package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
)

func TestExpireStalled_CancelsOnlyStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.inHostReview(t)
	f.clock.advance(15 * 24 * time.Hour)
	fresh := f.inHostReview(t)

	res, err := f.svc.ExpireStalled(ctx, 14*24*time.Hour, 10)
	if err != nil {
		t.Fatalf("ExpireStalled: %v", err)
	}

	if res.Scanned != 1 || len(res.Cancelled) != 1 || res.Cancelled[0] != stale.ID {
		t.Fatalf("result = %+v, want only %s cancelled", res, stale.ID)
	}

	got, _ := f.svc.GetProposal(ctx, stale.ID)
	if got.Status != models.StatusCancelledByPlatform {
		t.Errorf("stale status = %s, want cancelled_by_platform", got.Status)
	}
	if got.CancellationReason == nil || *got.CancellationReason != lifecycle.ReasonExpired {
		t.Errorf("reason = %v, want %q", got.CancellationReason, lifecycle.ReasonExpired)
	}

	got, _ = f.svc.GetProposal(ctx, fresh.ID)
	if got.Status != models.StatusHostReview {
		t.Errorf("fresh status = %s, want host_review", got.Status)
	}
}

func TestExpireStalled_SkipsFinalized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.inHostReview(t)
	if _, err := f.svc.Finalize(ctx, p.ID, platform); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	f.clock.advance(30 * 24 * time.Hour)

	res, err := f.svc.ExpireStalled(ctx, 14*24*time.Hour, 10)
	if err != nil {
		t.Fatalf("ExpireStalled: %v", err)
	}

	if len(res.Cancelled) != 0 {
		t.Errorf("cancelled = %v, want none", res.Cancelled)
	}
}

func TestExpireStalled_OutlivesCallerCancellation(t *testing.T) {
	f := newFixture(t)

	stale := f.inHostReview(t)
	f.clock.advance(15 * 24 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.ExpireStalled(ctx, 14*24*time.Hour, 10)
	if err != nil {
		t.Fatalf("ExpireStalled: %v", err)
	}
	if len(res.Cancelled) != 1 || res.Cancelled[0] != stale.ID {
		t.Fatalf("cancelled = %v, want [%s]", res.Cancelled, stale.ID)
	}

	got, _ := f.svc.GetProposal(context.Background(), stale.ID)
	if got.Status != models.StatusCancelledByPlatform {
		t.Errorf("status = %s, want cancelled_by_platform", got.Status)
	}
}

func TestExpireStalled_RejectsBadWindow(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ExpireStalled(context.Background(), 0, 10)
	if !errors.Is(err, models.ErrInvalidDuration) {
		t.Fatalf("err = %v, want ErrInvalidDuration", err)
	}
}

func TestSkippable(t *testing.T) {
	if !skippable(models.NewTransitionError(models.StatusLeaseActivated, "cancel_by_platform", models.RolePlatform)) {
		t.Error("transition error should be skippable")
	}

	if skippable(errors.New("connection reset")) {
		t.Error("infrastructure error should not be skippable")
	}
}
