package vault

import (
	"context"
	"fmt"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into Service to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// WalletStore is the minimal persistence surface Service needs. Implemented
// by repository.VaultWalletRepository.
type WalletStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VaultWallet, error)
	GetByAddress(ctx context.Context, address string) (*domain.VaultWallet, error)
	GetByMultiplier(ctx context.Context, multiplier float64) (*domain.VaultWallet, error)
	ListActive(ctx context.Context) ([]domain.VaultWallet, error)
	RecordDeposit(ctx context.Context, id uuid.UUID, amount int64) error
	RecordPayout(ctx context.Context, id uuid.UUID, amount int64) error
	SetDepleted(ctx context.Context, id uuid.UUID, depleted bool) error
}

// ──────────────────────────────────────────────────────────────────────────────
// Service
// ──────────────────────────────────────────────────────────────────────────────

// Service is the Key Vault's wallet lookup and key-material surface. It never
// exposes a decrypted key outside of WithSigningKey.
type Service struct {
	store  WalletStore
	cipher *Cipher
}

// NewService builds a vault Service from a WalletStore and the process's
// Cipher (built once from MASTER_ENCRYPTION_KEY at startup).
func NewService(store WalletStore, cipher *Cipher) *Service {
	return &Service{store: store, cipher: cipher}
}

// WalletForAddress resolves the vault wallet a deposit was sent to. Returns
// domain.ErrNotAVaultAddress if address is not a known, active vault wallet —
// the Mempool Ingester reports every address it observes, including
// false-positive third-party sends, and this is the first filter.
func (s *Service) WalletForAddress(ctx context.Context, address string) (*domain.VaultWallet, error) {
	w, err := s.store.GetByAddress(ctx, address)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrNotAVaultAddress
		}
		return nil, fmt.Errorf("vault.WalletForAddress: %w", err)
	}
	if !w.IsActive {
		return nil, domain.ErrWalletInactive
	}
	return w, nil
}

// GetByID resolves a vault wallet by its primary key — used by RollAndSettle
// to fetch the wallet a bet was materialized against, for payout routing.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.VaultWallet, error) {
	w, err := s.store.GetByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("vault.GetByID: %w", err)
	}
	return w, nil
}

// WalletForMultiplier resolves the active vault wallet offering a given
// multiplier. Used by the admin surface and fairness verification view; the
// materializer itself resolves by deposit address, not multiplier.
func (s *Service) WalletForMultiplier(ctx context.Context, multiplier float64) (*domain.VaultWallet, error) {
	w, err := s.store.GetByMultiplier(ctx, multiplier)
	if err != nil {
		return nil, fmt.Errorf("vault.WalletForMultiplier: %w", err)
	}
	return w, nil
}

// ListActive returns every active vault wallet, e.g. for the admin dashboard
// or to enumerate deposit addresses the Mempool Ingester should monitor.
func (s *Service) ListActive(ctx context.Context) ([]domain.VaultWallet, error) {
	wallets, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("vault.ListActive: %w", err)
	}
	return wallets, nil
}

// ListMultipliers returns the distinct multipliers currently offered, derived
// from the active wallet set.
func (s *Service) ListMultipliers(ctx context.Context) ([]float64, error) {
	wallets, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	multipliers := make([]float64, 0, len(wallets))
	for _, w := range wallets {
		multipliers = append(multipliers, w.Multiplier)
	}
	return multipliers, nil
}

// RecordDeposit updates a wallet's deposit totals after a bet is materialized.
func (s *Service) RecordDeposit(ctx context.Context, id uuid.UUID, amount int64) error {
	if err := s.store.RecordDeposit(ctx, id, amount); err != nil {
		return fmt.Errorf("vault.RecordDeposit: %w", err)
	}
	return nil
}

// RecordPayout updates a wallet's sent totals after a payout broadcasts.
func (s *Service) RecordPayout(ctx context.Context, id uuid.UUID, amount int64) error {
	if err := s.store.RecordPayout(ctx, id, amount); err != nil {
		return fmt.Errorf("vault.RecordPayout: %w", err)
	}
	return nil
}

// SetDepleted flags a vault wallet as depleted (or clears the flag) — the
// Payout Engine calls this when a payout attempt finds no usable UTXOs for
// the wallet, so admins stop routing new deposits to a vault that can't pay
// out.
func (s *Service) SetDepleted(ctx context.Context, id uuid.UUID, depleted bool) error {
	if err := s.store.SetDepleted(ctx, id, depleted); err != nil {
		return fmt.Errorf("vault.SetDepleted: %w", err)
	}
	return nil
}

// WithSigningKey decrypts wallet's private key into a []byte buffer, passes
// it to fn, then zeroes that exact buffer before returning. fn receives the
// WIF as raw bytes rather than a string specifically so this zeroing is
// effective: a string conversion anywhere along the way would copy the key
// into Go's immutable string storage, which can never be scrubbed. fn must
// not retain any reference to wif past its call, and must not convert it to
// a string itself.
func (s *Service) WithSigningKey(wallet *domain.VaultWallet, fn func(wif []byte) error) error {
	wif, err := s.cipher.DecryptPrivateKey(wallet.EncryptedPrivateKey)
	if err != nil {
		return err
	}
	defer zero(wif)
	return fn(wif)
}

// zero overwrites b's backing bytes in place so the plaintext key does not
// linger in memory longer than necessary. Best-effort: this defeats simple
// memory scrapes of the live heap.
func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
