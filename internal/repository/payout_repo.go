package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PayoutRepository handles persistence of Payout records.
type PayoutRepository struct {
	db *sqlx.DB
}

// NewPayoutRepository creates a new PayoutRepository.
func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Create inserts a new pending Payout for a bet. bet_id is unique, so a
// concurrent attempt to process the same winning bet twice fails here —
// callers should treat that as "already exists" and fetch GetByBetID instead.
func (r *PayoutRepository) Create(ctx context.Context, p *domain.Payout) error {
	query := `
		INSERT INTO payouts
			(id, bet_id, amount, to_address, status, txid, retry_count,
			 network_fee, error_message, created_at, broadcast_at, confirmed_at, updated_at)
		VALUES
			(:id, :bet_id, :amount, :to_address, :status, :txid, :retry_count,
			 :network_fee, :error_message, :created_at, :broadcast_at, :confirmed_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		if isUniqueViolation(err, "payouts_bet_id_key") {
			return domain.ErrPayoutNotFound // signal "use GetByBetID instead", see callers
		}
		return fmt.Errorf("payout_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a Payout by its primary key.
func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Payout, error) {
	var p domain.Payout
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payouts WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("payout_repo.GetByID: %w", err)
	}
	return &p, nil
}

// GetByBetID fetches the Payout owned by bet, if any — the idempotency check
// process_winning_bet must make before building a new transaction.
func (r *PayoutRepository) GetByBetID(ctx context.Context, betID uuid.UUID) (*domain.Payout, error) {
	var p domain.Payout
	err := r.db.GetContext(ctx, &p, `SELECT * FROM payouts WHERE bet_id = $1`, betID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, fmt.Errorf("payout_repo.GetByBetID: %w", err)
	}
	return &p, nil
}

// ListRetryable returns payouts eligible for another build-and-broadcast
// attempt: status pending or failed, with retry budget remaining.
func (r *PayoutRepository) ListRetryable(ctx context.Context, maxRetries, limit int) ([]*domain.Payout, error) {
	var payouts []*domain.Payout
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT * FROM payouts
		WHERE status IN ('pending', 'failed') AND retry_count < $1
		ORDER BY created_at ASC LIMIT $2`,
		maxRetries, limit)
	if err != nil {
		return nil, fmt.Errorf("payout_repo.ListRetryable: %w", err)
	}
	return payouts, nil
}

// ListBroadcast returns payouts awaiting confirmation, for the confirmation
// sweeper.
func (r *PayoutRepository) ListBroadcast(ctx context.Context, limit int) ([]*domain.Payout, error) {
	var payouts []*domain.Payout
	err := r.db.SelectContext(ctx, &payouts,
		`SELECT * FROM payouts WHERE status = 'broadcast' ORDER BY broadcast_at ASC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("payout_repo.ListBroadcast: %w", err)
	}
	return payouts, nil
}

// MarkBroadcast records a successful build-and-broadcast attempt.
func (r *PayoutRepository) MarkBroadcast(ctx context.Context, id uuid.UUID, txid string, networkFee int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payouts
		SET status = 'broadcast', txid = $1, network_fee = $2, broadcast_at = now(),
		    error_message = NULL, updated_at = now()
		WHERE id = $3`,
		txid, networkFee, id)
	if err != nil {
		return fmt.Errorf("payout_repo.MarkBroadcast: %w", err)
	}
	return nil
}

// MarkConfirmed promotes a broadcast payout to confirmed.
func (r *PayoutRepository) MarkConfirmed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payouts SET status = 'confirmed', confirmed_at = now(), updated_at = now()
		WHERE id = $1`,
		id)
	if err != nil {
		return fmt.Errorf("payout_repo.MarkConfirmed: %w", err)
	}
	return nil
}

// RecordAttemptFailure increments retry_count and records the error; the
// caller (Payout Engine) decides whether this exhausts the retry budget and
// should separately call MarkFailed if so.
func (r *PayoutRepository) RecordAttemptFailure(ctx context.Context, id uuid.UUID, errMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payouts
		SET retry_count = retry_count + 1, error_message = $1, updated_at = now()
		WHERE id = $2`,
		errMsg, id)
	if err != nil {
		return fmt.Errorf("payout_repo.RecordAttemptFailure: %w", err)
	}
	return nil
}

// MarkFailed transitions a payout to its terminal failed state.
func (r *PayoutRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payouts SET status = 'failed', updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("payout_repo.MarkFailed: %w", err)
	}
	return nil
}
