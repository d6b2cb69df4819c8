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

// BetRepository handles all database operations for Bets and the atomic
// bet_number counter.
type BetRepository struct {
	db *sqlx.DB
}

// NewBetRepository creates a new BetRepository.
func NewBetRepository(db *sqlx.DB) *BetRepository {
	return &BetRepository{db: db}
}

// Create inserts a new bet inside an existing transaction. Returns
// domain.ErrDuplicateDepositTxid if deposit_txid is already in use —
// materialization must be idempotent per txid.
func (r *BetRepository) Create(ctx context.Context, tx *sqlx.Tx, b *domain.Bet) error {
	query := `
		INSERT INTO bets
			(id, bet_number, user_id, vault_wallet_id, deposit_txid, bet_amount,
			 multiplier, chance, nonce, server_seed_hash, client_seed, status, created_at)
		VALUES
			(:id, :bet_number, :user_id, :vault_wallet_id, :deposit_txid, :bet_amount,
			 :multiplier, :chance, :nonce, :server_seed_hash, :client_seed, :status, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, b); err != nil {
		if isUniqueViolation(err, "bets_deposit_txid_key") {
			return domain.ErrDuplicateDepositTxid
		}
		return fmt.Errorf("bet_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a bet by its primary key.
func (r *BetRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bet, error) {
	var b domain.Bet
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBetNotFound
		}
		return nil, fmt.Errorf("bet_repo.GetByID: %w", err)
	}
	return &b, nil
}

// GetByDepositTxid fetches a bet by its deposit txid, the idempotency key the
// materializer checks before creating a new bet.
func (r *BetRepository) GetByDepositTxid(ctx context.Context, txid string) (*domain.Bet, error) {
	var b domain.Bet
	err := r.db.GetContext(ctx, &b, `SELECT * FROM bets WHERE deposit_txid = $1`, txid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBetNotFound
		}
		return nil, fmt.Errorf("bet_repo.GetByDepositTxid: %w", err)
	}
	return &b, nil
}

// GetByUserID returns a user's bet history, paginated, newest first.
func (r *BetRepository) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.GetByUserID: %w", err)
	}
	return bets, nil
}

// ListPending returns bets still awaiting confirmation or roll, oldest first,
// for the Pending Bet Sweeper. Bounded by limit per sweep pass.
func (r *BetRepository) ListPending(ctx context.Context, limit int) ([]*domain.Bet, error) {
	var bets []*domain.Bet
	err := r.db.SelectContext(ctx, &bets,
		`SELECT * FROM bets WHERE status IN ('pending', 'confirmed') ORDER BY created_at ASC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.ListPending: %w", err)
	}
	return bets, nil
}

// MarkConfirmed transitions a bet from pending to confirmed once the deposit
// meets the configured confirmation threshold.
func (r *BetRepository) MarkConfirmed(ctx context.Context, betID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE bets SET status = 'confirmed', confirmed_at = now()
		WHERE id = $1 AND status = 'pending'`,
		betID)
	if err != nil {
		return fmt.Errorf("bet_repo.MarkConfirmed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrBetNotFound
	}
	return nil
}

// ApplyRoll persists the outcome of RollAndSettle inside a transaction.
// Guards against double-rolling: the WHERE clause only matches bets whose
// roll_result is still unset.
func (r *BetRepository) ApplyRoll(ctx context.Context, tx *sqlx.Tx, b *domain.Bet) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE bets
		SET server_seed   = $1,
		    roll_result   = $2,
		    is_win        = $3,
		    payout_amount = $4,
		    profit        = $5,
		    status        = $6,
		    rolled_at     = now()
		WHERE id = $7 AND roll_result IS NULL`,
		b.ServerSeed, b.RollResult, b.IsWin, b.PayoutAmount, b.Profit, string(b.Status), b.ID)
	if err != nil {
		return fmt.Errorf("bet_repo.ApplyRoll: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyRolled
	}
	return nil
}

// MarkPaid transitions a bet to paid and records the payout txid (win path)
// or simply marks a loss settled (payoutTxid == nil).
func (r *BetRepository) MarkPaid(ctx context.Context, betID uuid.UUID, payoutTxid *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE bets SET status = 'paid', payout_txid = $1, paid_at = now()
		WHERE id = $2`,
		payoutTxid, betID)
	if err != nil {
		return fmt.Errorf("bet_repo.MarkPaid: %w", err)
	}
	return nil
}

// MarkFailed transitions a bet to the terminal failed state (win could not
// be paid after exhausting retries).
func (r *BetRepository) MarkFailed(ctx context.Context, betID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bets SET status = 'failed' WHERE id = $1`, betID)
	if err != nil {
		return fmt.Errorf("bet_repo.MarkFailed: %w", err)
	}
	return nil
}

// BetStats is a summary projection over the bets table for the admin surface.
type BetStats struct {
	TotalBets     int64 `db:"total_bets"`
	TotalWagered  int64 `db:"total_wagered"`
	TotalPaidOut  int64 `db:"total_paid_out"`
	WinCount      int64 `db:"win_count"`
	PendingCount  int64 `db:"pending_count"`
	HouseProfit   int64 `db:"house_profit"`
}

// Stats computes summary statistics over all bets, for the admin dashboard's
// §4.10 "summary statistics over bets and payouts" requirement.
func (r *BetRepository) Stats(ctx context.Context) (*BetStats, error) {
	var s BetStats
	err := r.db.GetContext(ctx, &s, `
		SELECT
			count(*)                                                AS total_bets,
			coalesce(sum(bet_amount), 0)                            AS total_wagered,
			coalesce(sum(payout_amount), 0)                         AS total_paid_out,
			coalesce(count(*) FILTER (WHERE is_win = true), 0)      AS win_count,
			coalesce(count(*) FILTER (WHERE status IN ('pending', 'confirmed')), 0) AS pending_count,
			coalesce(sum(-profit), 0)                               AS house_profit
		FROM bets`)
	if err != nil {
		return nil, fmt.Errorf("bet_repo.Stats: %w", err)
	}
	return &s, nil
}

// NextBetNumber atomically increments and returns the global bet_number
// counter, inside the caller's transaction. Uses UPDATE ... RETURNING so the
// increment and read happen as a single round trip under row lock.
func (r *BetRepository) NextBetNumber(ctx context.Context, tx *sqlx.Tx) (int64, error) {
	var next int64
	err := tx.GetContext(ctx, &next, `
		UPDATE counters SET value = value + 1
		WHERE key = $1
		RETURNING value`,
		domain.CounterKeyBetNumber)
	if err != nil {
		return 0, fmt.Errorf("bet_repo.NextBetNumber: %w", err)
	}
	return next, nil
}
