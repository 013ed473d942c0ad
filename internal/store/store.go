// Package store provides PostgreSQL persistence for proposals.
//
// A proposal row owns its history, negotiation rounds and virtual meeting
// rows. Every engine call runs inside Transact: one transaction that locks
// the proposal row, hands the snapshot to the engine and writes the result
// plus the appended history and rounds back.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/dbpool"
	"github.com/splitlease/proposals/internal/models"
)

const (
	defaultQueryTimeout = 30 * time.Second
	defaultLockTimeout  = 3 * time.Second

	// maxListLimit is a defense-in-depth cap on limit values for list queries.
	maxListLimit = 1000
)

// PostgreSQL error codes mapped to engine errors.
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// Base contains shared dependencies for all stores.
type Base struct {
	Pool *dbpool.Pool
	Log  *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// beginTx starts a read-write transaction whose row lock waits are bounded
// by lockTimeout.
func (b *Base) beginTx(ctx context.Context, lockTimeout time.Duration) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	ms := fmt.Sprintf("%dms", lockTimeout.Milliseconds())
	if _, err := tx.Exec(ctx, "SELECT set_config('lock_timeout', $1, true)", ms); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, fmt.Errorf("setting lock timeout: %w", err)
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction.
func (b *Base) beginReadTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	return tx, nil
}

// mapPgError turns lock contention into ErrConcurrentModification so the
// caller can retry.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%s: %w", pgErr.Message, models.ErrConcurrentModification)
	default:
		return err
	}
}

// clampPage normalises limit and offset for list queries.
func clampPage(limit, offset, def int) (int, int) {
	if limit <= 0 {
		limit = def
	}

	if limit > maxListLimit {
		limit = maxListLimit
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}
