package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/splitlease/proposals/internal/models"
)

// Mutator computes the next snapshot from the locked current one. Returning
// the same pointer (or the same revision) means nothing changed.
type Mutator = func(current *models.Proposal) (*models.Proposal, error)

// ProposalStore persists proposals and their owned rows.
type ProposalStore struct {
	Base
	LockTimeout time.Duration
}

// NewProposalStore creates a new ProposalStore.
func NewProposalStore(base Base, lockTimeout time.Duration) *ProposalStore {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}

	return &ProposalStore{Base: base, LockTimeout: lockTimeout}
}

// Insert stores a newly created proposal with its history.
func (s *ProposalStore) Insert(ctx context.Context, p *models.Proposal) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, s.LockTimeout)
	if err != nil {
		return fmt.Errorf("inserting proposal: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	args, err := proposalArgs(p)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO proposals (`+proposalColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		args...,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("proposal %s already exists: %w", p.ID, models.ErrConcurrentModification)
		}

		return fmt.Errorf("inserting proposal: %w", err)
	}

	if err := insertHistory(ctx, tx, p.History); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing proposal insert: %w", err)
	}

	return nil
}

// Transact locks the proposal row, runs fn on the snapshot and writes the
// result back in the same transaction. The snapshot's History holds only the
// latest entry, which is all the audit trail needs to continue the sequence.
// Lock waits beyond LockTimeout fail with ErrConcurrentModification.
func (s *ProposalStore) Transact(ctx context.Context, id string, fn Mutator) (*models.Proposal, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx, s.LockTimeout)
	if err != nil {
		return nil, fmt.Errorf("transacting proposal: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	current, err := loadLocked(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	next, err := fn(current.Clone())
	if err != nil {
		return nil, err
	}

	if next == nil || next.Revision == current.Revision {
		return current, nil
	}

	if err := s.write(ctx, tx, current, next); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapPgError(fmt.Errorf("committing proposal update: %w", err))
	}

	return next, nil
}

func loadLocked(ctx context.Context, tx pgx.Tx, id string) (*models.Proposal, error) {
	p, meetingID, err := scanProposal(tx.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = $1 FOR UPDATE`, id,
	).Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProposalNotFound
		}

		return nil, mapPgError(fmt.Errorf("locking proposal: %w", err))
	}

	if err := loadOwned(ctx, tx, p, meetingID); err != nil {
		return nil, err
	}

	last, err := scanHistory(tx.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM proposal_history WHERE proposal_id = $1 ORDER BY seq DESC LIMIT 1`, id,
	).Scan)

	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("loading last history entry: %w", err)
	default:
		p.History = []models.HistoryEntry{last}
	}

	return p, nil
}

// loadOwned fills the negotiation rounds and virtual meeting.
func loadOwned(ctx context.Context, q querier, p *models.Proposal, meetingID *string) error {
	rounds, err := queryRounds(ctx, q, p.ID)
	if err != nil {
		return err
	}
	p.Negotiation = rounds

	if meetingID == nil {
		return nil
	}

	vm, err := scanMeeting(q.QueryRow(ctx,
		`SELECT `+meetingColumns+` FROM virtual_meetings WHERE id = $1`, *meetingID,
	).Scan)
	if err != nil {
		return fmt.Errorf("loading virtual meeting: %w", err)
	}
	p.VirtualMeeting = vm

	return nil
}

func (s *ProposalStore) write(ctx context.Context, tx pgx.Tx, current, next *models.Proposal) error {
	if next.VirtualMeeting != nil {
		if err := upsertMeeting(ctx, tx, next.VirtualMeeting); err != nil {
			return err
		}
	}

	args, err := proposalArgs(next)
	if err != nil {
		return err
	}

	// Identity columns and created_at never change.
	tag, err := tx.Exec(ctx,
		`UPDATE proposals SET
			status = $2, is_finalized = $3, deleted = $4, counter_offer_happened = $5, terms = $6,
			rental_app_requested = $7, rental_application_ref = $8,
			guest_documents_review_finalized = $9, host_documents_review_finalized = $10,
			draft_documents = $11, cancellation_reason = $12,
			reminders_by_guest = $13, reminders_by_host = $14, virtual_meeting_id = $15,
			revision = $16, modified_at = $17
		WHERE id = $1 AND revision = $18`,
		append(append([]any{args[0]}, args[4:19]...), args[20], current.Revision)...,
	)
	if err != nil {
		return mapPgError(fmt.Errorf("updating proposal: %w", err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proposal %s revision %d: %w", current.ID, current.Revision, models.ErrConcurrentModification)
	}

	var lastSeq int64
	if last, ok := current.LastHistory(); ok {
		lastSeq = last.Seq
	}

	if err := insertHistory(ctx, tx, next.HistorySince(lastSeq)); err != nil {
		return err
	}

	if len(next.Negotiation) > len(current.Negotiation) {
		if err := insertRounds(ctx, tx, next.Negotiation[len(current.Negotiation):]); err != nil {
			return err
		}
	}

	return nil
}

func proposalArgs(p *models.Proposal) ([]any, error) {
	terms, err := json.Marshal(p.Terms)
	if err != nil {
		return nil, fmt.Errorf("marshalling terms: %w", err)
	}

	drafts, err := json.Marshal(p.DraftDocuments)
	if err != nil {
		return nil, fmt.Errorf("marshalling draft documents: %w", err)
	}

	var meetingID *string
	if p.VirtualMeeting != nil {
		meetingID = &p.VirtualMeeting.ID
	}

	return []any{
		p.ID, p.GuestID, p.HostID, p.ListingID, string(p.Status),
		p.IsFinalized, p.Deleted, p.CounterOfferHappened, terms,
		p.RentalAppRequested, p.RentalApplicationRef,
		p.GuestDocumentsReviewFinalized, p.HostDocumentsReviewFinalized,
		drafts, p.CancellationReason, p.RemindersByGuest, p.RemindersByHost,
		meetingID, p.Revision, p.CreatedAt, p.ModifiedAt,
	}, nil
}

// insertHistory appends entries in one multi-row insert.
func insertHistory(ctx context.Context, tx pgx.Tx, entries []models.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	valueParts := make([]string, 0, len(entries))
	args := make([]any, 0, len(entries)*9)

	for i, e := range entries {
		base := i*9 + 1
		valueParts = append(valueParts, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base, base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args, e.ProposalID, e.Seq, e.Revision, e.Timestamp, string(e.Actor), e.ActorID, e.Field, e.Before, e.After)
	}

	sql := `INSERT INTO proposal_history (` + historyColumns + `) VALUES ` + strings.Join(valueParts, ", ")

	if _, err := tx.Exec(ctx, sql, args...); err != nil {
		return mapPgError(fmt.Errorf("inserting proposal history: %w", err))
	}

	return nil
}

func insertRounds(ctx context.Context, tx pgx.Tx, rounds []models.NegotiationRound) error {
	for _, r := range rounds {
		changes, err := json.Marshal(r.FieldChanges)
		if err != nil {
			return fmt.Errorf("marshalling field changes: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO proposal_negotiation_rounds (`+roundColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
			r.ProposalID, r.RoundIndex, string(r.Actor), r.ActorID, changes, r.CreatedAt,
		)
		if err != nil {
			return mapPgError(fmt.Errorf("inserting negotiation round %d: %w", r.RoundIndex, err))
		}
	}

	return nil
}

func upsertMeeting(ctx context.Context, tx pgx.Tx, vm *models.VirtualMeeting) error {
	dates, err := json.Marshal(vm.SuggestedDates)
	if err != nil {
		return fmt.Errorf("marshalling suggested dates: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO virtual_meetings (`+meetingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			booked_date = EXCLUDED.booked_date,
			confirmed_by_platform = EXCLUDED.confirmed_by_platform,
			declined = EXCLUDED.declined,
			updated_at = EXCLUDED.updated_at`,
		vm.ID, vm.ProposalID, string(vm.State), string(vm.RequestedBy), dates, vm.BookedDate,
		vm.ConfirmedByPlatform, vm.Declined, vm.CreatedAt, vm.UpdatedAt,
	)
	if err != nil {
		return mapPgError(fmt.Errorf("upserting virtual meeting: %w", err))
	}

	return nil
}
