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

// VaultWalletRepository handles all database operations for vault wallets —
// the fixed-multiplier Bitcoin addresses that receive deposits and send
// payouts. Implements vault.WalletStore.
type VaultWalletRepository struct {
	db *sqlx.DB
}

// NewVaultWalletRepository creates a new VaultWalletRepository.
func NewVaultWalletRepository(db *sqlx.DB) *VaultWalletRepository {
	return &VaultWalletRepository{db: db}
}

// Create inserts a new vault wallet row.
func (r *VaultWalletRepository) Create(ctx context.Context, w *domain.VaultWallet) error {
	query := `
		INSERT INTO vault_wallets
			(id, multiplier, chance, address, address_type, network,
			 encrypted_private_key, is_active, is_depleted, total_received,
			 total_sent, bet_count, label, created_at, updated_at)
		VALUES
			(:id, :multiplier, :chance, :address, :address_type, :network,
			 :encrypted_private_key, :is_active, :is_depleted, :total_received,
			 :total_sent, :bet_count, :label, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, w); err != nil {
		if isUniqueViolation(err, "vault_wallets_address_key") {
			return domain.ErrWalletAlreadyExists
		}
		return fmt.Errorf("vault_wallet_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a vault wallet by primary key.
func (r *VaultWalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.VaultWallet, error) {
	var w domain.VaultWallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM vault_wallets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("vault_wallet_repo.GetByID: %w", err)
	}
	return &w, nil
}

// GetByAddress fetches a vault wallet by its deposit address.
func (r *VaultWalletRepository) GetByAddress(ctx context.Context, address string) (*domain.VaultWallet, error) {
	var w domain.VaultWallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM vault_wallets WHERE address = $1`, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("vault_wallet_repo.GetByAddress: %w", err)
	}
	return &w, nil
}

// GetByMultiplier fetches the active vault wallet offering a given multiplier.
func (r *VaultWalletRepository) GetByMultiplier(ctx context.Context, multiplier float64) (*domain.VaultWallet, error) {
	var w domain.VaultWallet
	err := r.db.GetContext(ctx, &w,
		`SELECT * FROM vault_wallets WHERE multiplier = $1 AND is_active = true`, multiplier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("vault_wallet_repo.GetByMultiplier: %w", err)
	}
	return &w, nil
}

// ListActive returns every active vault wallet, ordered by multiplier.
func (r *VaultWalletRepository) ListActive(ctx context.Context) ([]domain.VaultWallet, error) {
	var wallets []domain.VaultWallet
	err := r.db.SelectContext(ctx, &wallets,
		`SELECT * FROM vault_wallets WHERE is_active = true ORDER BY multiplier ASC`)
	if err != nil {
		return nil, fmt.Errorf("vault_wallet_repo.ListActive: %w", err)
	}
	return wallets, nil
}

// ListAll returns every vault wallet regardless of status, for the admin dashboard.
func (r *VaultWalletRepository) ListAll(ctx context.Context) ([]domain.VaultWallet, error) {
	var wallets []domain.VaultWallet
	err := r.db.SelectContext(ctx, &wallets, `SELECT * FROM vault_wallets ORDER BY multiplier ASC`)
	if err != nil {
		return nil, fmt.Errorf("vault_wallet_repo.ListAll: %w", err)
	}
	return wallets, nil
}

// RecordDeposit credits total_received and increments bet_count for a wallet.
func (r *VaultWalletRepository) RecordDeposit(ctx context.Context, id uuid.UUID, amount int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE vault_wallets
		SET total_received = total_received + $1,
		    bet_count       = bet_count + 1,
		    updated_at      = now()
		WHERE id = $2`,
		amount, id)
	if err != nil {
		return fmt.Errorf("vault_wallet_repo.RecordDeposit: %w", err)
	}
	return nil
}

// RecordPayout credits total_sent for a wallet after a payout broadcasts.
func (r *VaultWalletRepository) RecordPayout(ctx context.Context, id uuid.UUID, amount int64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE vault_wallets
		SET total_sent = total_sent + $1,
		    updated_at = now()
		WHERE id = $2`,
		amount, id)
	if err != nil {
		return fmt.Errorf("vault_wallet_repo.RecordPayout: %w", err)
	}
	return nil
}

// Update applies admin-editable fields (multiplier, chance, label, is_active)
// to an existing vault wallet. Address, network and key material are
// immutable once created — rotating a vault's key is a delete-and-recreate.
func (r *VaultWalletRepository) Update(ctx context.Context, w *domain.VaultWallet) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE vault_wallets
		SET multiplier = $1, chance = $2, label = $3, is_active = $4, updated_at = now()
		WHERE id = $5`,
		w.Multiplier, w.Chance, w.Label, w.IsActive, w.ID)
	if err != nil {
		return fmt.Errorf("vault_wallet_repo.Update: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

// SetActive activates or deactivates a vault wallet (admin operation).
func (r *VaultWalletRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE vault_wallets SET is_active = $1, updated_at = now() WHERE id = $2`,
		active, id)
	if err != nil {
		return fmt.Errorf("vault_wallet_repo.SetActive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

// SetDepleted sets or clears a vault wallet's is_depleted flag; the Payout
// Engine sets it when a payout attempt finds the vault's UTXO set empty.
// RecordDeposit does not clear it; only a later SetDepleted(id, false) does.
func (r *VaultWalletRepository) SetDepleted(ctx context.Context, id uuid.UUID, depleted bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE vault_wallets SET is_depleted = $1, updated_at = now() WHERE id = $2`,
		depleted, id)
	if err != nil {
		return fmt.Errorf("vault_wallet_repo.SetDepleted: %w", err)
	}
	return nil
}

// Delete removes a vault wallet (admin operation). No bet_count or balance
// check is made here or in the admin handler, which only adds a warning to
// its response when the wallet has received funds.
func (r *VaultWalletRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM vault_wallets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("vault_wallet_repo.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}
