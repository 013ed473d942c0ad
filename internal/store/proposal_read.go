package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/splitlease/proposals/internal/lifecycle"
	"github.com/splitlease/proposals/internal/models"
)

// querier is satisfied by both pgx.Tx and *dbpool.Pool.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetProposal returns a proposal with its negotiation rounds and meeting.
// History is not loaded; use GetHistory.
func (s *ProposalStore) GetProposal(ctx context.Context, id string) (*models.Proposal, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting proposal: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	p, meetingID, err := scanProposal(tx.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id,
	).Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProposalNotFound
		}

		return nil, fmt.Errorf("getting proposal: %w", err)
	}

	if err := loadOwned(ctx, tx, p, meetingID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing proposal read: %w", err)
	}

	return p, nil
}

// ListProposals returns proposals matching q, newest first, with has_more
// pagination. Owned rows are not loaded.
func (s *ProposalStore) ListProposals(ctx context.Context, q models.ListQuery) ([]models.Proposal, bool, error) {
	limit, offset := clampPage(q.Limit, q.Offset, 50)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE TRUE`
	args := []any{}

	add := func(clause string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+clause, len(args))
	}

	if q.GuestID != "" {
		add("guest_id = $%d", q.GuestID)
	}

	if q.HostID != "" {
		add("host_id = $%d", q.HostID)
	}

	if q.ListingID != "" {
		add("listing_id = $%d", q.ListingID)
	}

	if q.Status != "" {
		add("status = $%d", string(q.Status))
	}

	if !q.IncludeDeleted {
		query += " AND NOT deleted"
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit+1, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("listing proposals: %w", err)
	}
	defer rows.Close()

	out := make([]models.Proposal, 0, limit+1)

	for rows.Next() {
		p, _, err := scanProposal(rows.Scan)
		if err != nil {
			return nil, false, fmt.Errorf("scanning proposal row: %w", err)
		}

		out = append(out, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating proposal rows: %w", err)
	}

	hasMore := len(out) > limit
	if hasMore {
		out = out[:limit]
	}

	return out, hasMore, nil
}

// GetHistory returns history entries in sequence order with an optional
// field filter and has_more pagination.
func (s *ProposalStore) GetHistory(ctx context.Context, q models.HistoryQuery) ([]models.HistoryEntry, bool, error) {
	limit, offset := clampPage(q.Limit, q.Offset, 100)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + historyColumns + ` FROM proposal_history WHERE proposal_id = $1`
	args := []any{q.ProposalID}
	argIdx := 2

	if q.Field != "" {
		query += fmt.Sprintf(" AND field = $%d", argIdx)
		args = append(args, q.Field)
		argIdx++
	}

	query += " ORDER BY seq"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit+1, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("querying proposal history: %w", err)
	}
	defer rows.Close()

	entries := make([]models.HistoryEntry, 0, limit+1)

	for rows.Next() {
		e, err := scanHistory(rows.Scan)
		if err != nil {
			return nil, false, fmt.Errorf("scanning history row: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating history rows: %w", err)
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	return entries, hasMore, nil
}

// GetNegotiation returns all negotiation rounds for a proposal.
func (s *ProposalStore) GetNegotiation(ctx context.Context, id string) ([]models.NegotiationRound, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return queryRounds(ctx, s.Pool, id)
}

func queryRounds(ctx context.Context, q querier, id string) ([]models.NegotiationRound, error) {
	rows, err := q.Query(ctx,
		`SELECT `+roundColumns+` FROM proposal_negotiation_rounds WHERE proposal_id = $1 ORDER BY round_index`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("querying negotiation rounds: %w", err)
	}
	defer rows.Close()

	rounds := []models.NegotiationRound{}

	for rows.Next() {
		r, err := scanRound(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning negotiation round: %w", err)
		}

		rounds = append(rounds, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating negotiation rounds: %w", err)
	}

	return rounds, nil
}

// ListStalled returns ids of open proposals not modified since cutoff,
// oldest first.
func (s *ProposalStore) ListStalled(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	limit, _ = clampPage(limit, 0, 100)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var terminal []string
	for _, st := range models.AllStatuses {
		if lifecycle.IsTerminal(st) {
			terminal = append(terminal, string(st))
		}
	}

	rows, err := s.Pool.Query(ctx,
		`SELECT id FROM proposals
		WHERE modified_at < $1 AND NOT deleted AND NOT is_finalized AND status <> ALL($2)
		ORDER BY modified_at LIMIT $3`,
		cutoff, terminal, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stalled proposals: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collecting stalled proposals: %w", err)
	}

	return ids, nil
}
