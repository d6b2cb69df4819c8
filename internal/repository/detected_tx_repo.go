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

// DetectedTxRepository handles persistence of DetectedTransaction records.
type DetectedTxRepository struct {
	db *sqlx.DB
}

// NewDetectedTxRepository creates a new DetectedTxRepository.
func NewDetectedTxRepository(db *sqlx.DB) *DetectedTxRepository {
	return &DetectedTxRepository{db: db}
}

// Create inserts a new DetectedTransaction. On a unique-constraint violation
// over txid, the caller should fall back to GetByTxid — this is the
// ingestion-duplicate path, not an error condition.
func (r *DetectedTxRepository) Create(ctx context.Context, d *domain.DetectedTransaction) error {
	query := `
		INSERT INTO detected_transactions
			(id, txid, from_address, to_address, amount, fee, detected_by,
			 confirmations, block_height, block_hash, is_processed, bet_id, raw, detected_at, updated_at)
		VALUES
			(:id, :txid, :from_address, :to_address, :amount, :fee, :detected_by,
			 :confirmations, :block_height, :block_hash, :is_processed, :bet_id, :raw, :detected_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, d); err != nil {
		if isUniqueViolation(err, "detected_transactions_txid_key") {
			return domain.ErrDuplicateDepositTxid
		}
		return fmt.Errorf("detected_tx_repo.Create: %w", err)
	}
	return nil
}

// GetByTxid fetches a DetectedTransaction by txid.
func (r *DetectedTxRepository) GetByTxid(ctx context.Context, txid string) (*domain.DetectedTransaction, error) {
	var d domain.DetectedTransaction
	err := r.db.GetContext(ctx, &d, `SELECT * FROM detected_transactions WHERE txid = $1`, txid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDetectedTxNotFound
		}
		return nil, fmt.Errorf("detected_tx_repo.GetByTxid: %w", err)
	}
	return &d, nil
}

// GetByID fetches a DetectedTransaction by its primary key.
func (r *DetectedTxRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DetectedTransaction, error) {
	var d domain.DetectedTransaction
	err := r.db.GetContext(ctx, &d, `SELECT * FROM detected_transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDetectedTxNotFound
		}
		return nil, fmt.Errorf("detected_tx_repo.GetByID: %w", err)
	}
	return &d, nil
}

// AttachBet marks a DetectedTransaction processed and links it to the bet it
// materialized into.
func (r *DetectedTxRepository) AttachBet(ctx context.Context, txid string, betID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE detected_transactions
		SET is_processed = true, bet_id = $1, updated_at = now()
		WHERE txid = $2`,
		betID, txid)
	if err != nil {
		return fmt.Errorf("detected_tx_repo.AttachBet: %w", err)
	}
	return nil
}

// MarkProcessed flags a DetectedTransaction processed without attaching a
// bet — the rejection path, where the deposit cannot become a bet.
func (r *DetectedTxRepository) MarkProcessed(ctx context.Context, txid string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE detected_transactions SET is_processed = true, updated_at = now()
		WHERE txid = $1`,
		txid)
	if err != nil {
		return fmt.Errorf("detected_tx_repo.MarkProcessed: %w", err)
	}
	return nil
}

// UpdateConfirmations refreshes a DetectedTransaction's confirmation count
// and block info when the same deposit is observed again; the Pending Bet
// Sweeper reads the stored count but does not refresh it.
func (r *DetectedTxRepository) UpdateConfirmations(ctx context.Context, txid string, confirmations int, blockHeight *int64, blockHash *string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE detected_transactions
		SET confirmations = $1, block_height = $2, block_hash = $3, updated_at = now()
		WHERE txid = $4`,
		confirmations, blockHeight, blockHash, txid)
	if err != nil {
		return fmt.Errorf("detected_tx_repo.UpdateConfirmations: %w", err)
	}
	return nil
}
