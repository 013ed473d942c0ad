package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/metrics"
	"github.com/splitlease/proposals/internal/models"
)

const (
	defaultSweepLimit = 100
	sweepTimeout      = 2 * time.Minute
)

// ExpireStalled cancels proposals that have not moved for olderThan.
// Concurrent sweeps with the same window share one run.
func (s *ProposalService) ExpireStalled(ctx context.Context, olderThan time.Duration, limit int) (*models.ExpireResult, error) {
	if olderThan <= 0 {
		return nil, models.ErrInvalidDuration
	}

	if limit <= 0 {
		limit = defaultSweepLimit
	}

	key := fmt.Sprintf("%s/%d", olderThan, limit)

	// The run is shared, so one caller going away must not cut it short.
	v, err, _ := s.sweeps.Do(key, func() (any, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sweepTimeout)
		defer cancel()

		return s.expire(runCtx, olderThan, limit)
	})
	if err != nil {
		return nil, err
	}

	return v.(*models.ExpireResult), nil
}

func (s *ProposalService) expire(ctx context.Context, olderThan time.Duration, limit int) (*models.ExpireResult, error) {
	cutoff := s.machine.Now().Add(-olderThan)

	ids, err := s.store.ListStalled(ctx, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("listing stalled proposals: %w", err)
	}

	result := &models.ExpireResult{
		Scanned:   len(ids),
		Cancelled: []string{},
		Skipped:   []string{},
	}

	cmd := lifecycle.Command{Actor: models.RolePlatform, ActorID: "expiry-sweep"}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		p, err := s.mutate(ctx, id, cmd, lifecycle.OpCancelByPlatform, func(cur *models.Proposal) (*models.Proposal, error) {
			// Another writer may have moved it since the scan.
			if cur.ModifiedAt.After(cutoff) {
				return cur, nil
			}

			return s.machine.CancelByPlatform(cur, cmd, lifecycle.ReasonExpired)
		})

		switch {
		case err != nil && !skippable(err):
			return result, err
		case err != nil || p.Status != models.StatusCancelledByPlatform:
			result.Skipped = append(result.Skipped, id)
		default:
			result.Cancelled = append(result.Cancelled, id)
			metrics.ExpiredTotal.Inc()
		}
	}

	s.log.WithFields(logrus.Fields{
		"scanned":   result.Scanned,
		"cancelled": len(result.Cancelled),
		"skipped":   len(result.Skipped),
	}).Info("expiry sweep finished")

	return result, nil
}

func skippable(err error) bool {
	return errors.Is(err, models.ErrInvalidTransition) ||
		errors.Is(err, models.ErrProposalFinalized) ||
		errors.Is(err, models.ErrConcurrentModification)
}
