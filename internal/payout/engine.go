package payout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/google/uuid"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/explorer"
)

// BetStore is the subset of bet persistence the Payout Engine needs.
type BetStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Bet, error)
	MarkPaid(ctx context.Context, betID uuid.UUID, payoutTxid *string) error
	MarkFailed(ctx context.Context, betID uuid.UUID) error
}

// DetectedTxStore is the subset of detected-transaction persistence needed to
// check the eligibility gate's confirmation requirement.
type DetectedTxStore interface {
	GetByTxid(ctx context.Context, txid string) (*domain.DetectedTransaction, error)
}

// UserStore is the subset of user persistence the engine needs for the
// recipient-address fallback: the detected deposit's from_address first,
// the user's own address otherwise.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// PayoutStore is the subset of payout persistence the engine needs.
type PayoutStore interface {
	Create(ctx context.Context, p *domain.Payout) error
	GetByBetID(ctx context.Context, betID uuid.UUID) (*domain.Payout, error)
	ListRetryable(ctx context.Context, maxRetries, limit int) ([]*domain.Payout, error)
	ListBroadcast(ctx context.Context, limit int) ([]*domain.Payout, error)
	MarkBroadcast(ctx context.Context, id uuid.UUID, txid string, networkFee int64) error
	MarkConfirmed(ctx context.Context, id uuid.UUID) error
	RecordAttemptFailure(ctx context.Context, id uuid.UUID, errMsg string) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// WalletResolver is the subset of the Key Vault's Service the engine needs.
type WalletResolver interface {
	WithSigningKey(wallet *domain.VaultWallet, fn func(wif []byte) error) error
	RecordPayout(ctx context.Context, id uuid.UUID, amount int64) error
	SetDepleted(ctx context.Context, id uuid.UUID, depleted bool) error
}

// ExplorerClient is the subset of explorer.Client the engine needs.
type ExplorerClient interface {
	UtxosOf(ctx context.Context, address string) ([]explorer.Utxo, error)
	Broadcast(ctx context.Context, rawHex string) (string, error)
}

// Config bundles the payout-relevant tunables from config.BetConfig.
type Config struct {
	FeeBufferSatoshis   int64
	DefaultTxFee        int64
	DustLimitSatoshis   int64
	SettleDelay         time.Duration
	MaxRetries          int
	NetParams           *chaincfg.Params
}

// Engine implements process_winning_bet, retry_failed, and
// check_confirmations from spec.md §4.7.
type Engine struct {
	bets     BetStore
	detected DetectedTxStore
	payouts  PayoutStore
	wallets  WalletResolver
	users    UserStore
	explorer ExplorerClient
	cfg      Config
}

// New builds a payout Engine.
func New(bets BetStore, detected DetectedTxStore, payouts PayoutStore, wallets WalletResolver, users UserStore, explorerClient ExplorerClient, cfg Config) *Engine {
	return &Engine{bets: bets, detected: detected, payouts: payouts, wallets: wallets, users: users, explorer: explorerClient, cfg: cfg}
}

// ProcessWinningBet is process_winning_bet(bet) → Payout. It is safe to call
// more than once for the same bet: an existing Payout is returned unchanged.
func (e *Engine) ProcessWinningBet(ctx context.Context, bet *domain.Bet, vault *domain.VaultWallet, minConfirmationsPayout int) (*domain.Payout, error) {
	if existing, err := e.payouts.GetByBetID(ctx, bet.ID); err == nil {
		return existing, nil
	} else if !domain.IsNotFound(err) {
		return nil, fmt.Errorf("payout.ProcessWinningBet: %w", err)
	}

	if err := e.checkEligibility(ctx, bet, minConfirmationsPayout); err != nil {
		return nil, err
	}

	recipient, err := e.recipientFor(ctx, bet)
	if err != nil {
		return nil, err
	}

	p := &domain.Payout{
		ID:        uuid.New(),
		BetID:     bet.ID,
		Amount:    bet.PayoutAmount,
		ToAddress: recipient,
		Status:    domain.PayoutStatusPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := e.payouts.Create(ctx, p); err != nil {
		if existing, getErr := e.payouts.GetByBetID(ctx, bet.ID); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("payout.ProcessWinningBet: create: %w", err)
	}

	e.attempt(ctx, p, vault)
	return p, nil
}

func (e *Engine) checkEligibility(ctx context.Context, bet *domain.Bet, minConfirmationsPayout int) error {
	if bet.IsWin == nil || !*bet.IsWin || bet.PayoutAmount <= 0 {
		return domain.ErrPayoutNotEligible
	}
	if bet.Status != domain.BetStatusConfirmed && bet.Status != domain.BetStatusRolled {
		return domain.ErrPayoutNotEligible
	}
	if minConfirmationsPayout > 0 {
		dt, err := e.detected.GetByTxid(ctx, bet.DepositTxid)
		if err != nil {
			return fmt.Errorf("payout.checkEligibility: %w", err)
		}
		if !dt.MeetsConfirmations(minConfirmationsPayout) {
			return domain.ErrPayoutNotEligible
		}
	}
	return nil
}

// recipientFor implements §4.7's recipient selection rule: prefer the
// detected deposit's from_address, falling back to the user's own address.
func (e *Engine) recipientFor(ctx context.Context, bet *domain.Bet) (string, error) {
	if dt, err := e.detected.GetByTxid(ctx, bet.DepositTxid); err == nil && dt.FromAddress != nil && *dt.FromAddress != "" {
		return *dt.FromAddress, nil
	}
	if u, err := e.users.GetByID(ctx, bet.UserID); err == nil && u.Address != "" {
		return u.Address, nil
	}
	return "", domain.ErrNoRecipientAddress
}

// attempt runs one build-and-broadcast cycle for payout p against vault,
// recording success or a retryable/terminal failure per §4.7 step 8.
func (e *Engine) attempt(ctx context.Context, p *domain.Payout, vault *domain.VaultWallet) {
	time.Sleep(e.cfg.SettleDelay)

	utxos, err := e.explorer.UtxosOf(ctx, vault.Address)
	if err != nil {
		e.failAttempt(ctx, p, fmt.Errorf("fetch UTXOs: %w", err))
		return
	}
	if len(utxos) == 0 {
		if depErr := e.wallets.SetDepleted(ctx, vault.ID, true); depErr != nil {
			slog.Error("payout: failed to flag vault depleted", "vault_id", vault.ID, "error", depErr)
		}
		e.failAttempt(ctx, p, fmt.Errorf("no UTXOs available"))
		return
	}

	required := p.Amount + e.cfg.FeeBufferSatoshis
	selected, err := SelectUtxos(utxos, required)
	if err != nil {
		e.failAttempt(ctx, p, err)
		return
	}

	built, err := Build(vault.Address, selected, p.ToAddress, p.Amount, e.cfg.DefaultTxFee, e.cfg.DustLimitSatoshis, e.cfg.NetParams)
	if err != nil {
		e.failAttempt(ctx, p, err)
		return
	}

	var rawHex string
	signErr := e.wallets.WithSigningKey(vault, func(wif []byte) error {
		decoded, err := btcutil.DecodeWIF(string(wif))
		if err != nil {
			return fmt.Errorf("decode WIF: %w", err)
		}
		if err := Sign(built, decoded.PrivKey); err != nil {
			return err
		}
		hexTx, err := Serialize(built.Tx)
		if err != nil {
			return err
		}
		rawHex = hexTx
		return nil
	})
	if signErr != nil {
		e.failAttempt(ctx, p, fmt.Errorf("sign: %w", signErr))
		return
	}

	txid, err := e.explorer.Broadcast(ctx, rawHex)
	if err != nil {
		e.failAttempt(ctx, p, fmt.Errorf("broadcast: %w", err))
		return
	}

	if err := e.payouts.MarkBroadcast(ctx, p.ID, txid, built.NetworkFee); err != nil {
		slog.Error("payout: failed to persist broadcast state", "payout_id", p.ID, "error", err)
		return
	}
	if err := e.wallets.RecordPayout(ctx, vault.ID, p.Amount); err != nil {
		slog.Error("payout: failed to record vault payout total", "vault_id", vault.ID, "error", err)
	}
	if err := e.bets.MarkPaid(ctx, p.BetID, &txid); err != nil {
		slog.Error("payout: failed to mark bet paid", "bet_id", p.BetID, "error", err)
	}
	slog.Info("payout broadcast", "bet_id", p.BetID, "payout_id", p.ID, "txid", txid, "amount", p.Amount)
}

func (e *Engine) failAttempt(ctx context.Context, p *domain.Payout, cause error) {
	if err := e.payouts.RecordAttemptFailure(ctx, p.ID, cause.Error()); err != nil {
		slog.Error("payout: failed to record attempt failure", "payout_id", p.ID, "error", err)
	}
	p.RetryCount++
	if p.RetryCount >= e.cfg.MaxRetries {
		if err := e.payouts.MarkFailed(ctx, p.ID); err != nil {
			slog.Error("payout: failed to mark terminal failure", "payout_id", p.ID, "error", err)
			return
		}
		if err := e.bets.MarkFailed(ctx, p.BetID); err != nil {
			slog.Error("payout: failed to mark bet failed", "bet_id", p.BetID, "error", err)
		}
		slog.Warn("payout: retries exhausted", "bet_id", p.BetID, "payout_id", p.ID, "cause", cause)
		return
	}
	slog.Warn("payout: attempt failed, will retry", "bet_id", p.BetID, "payout_id", p.ID, "retry_count", p.RetryCount, "cause", cause)
}

// WithdrawVault builds, signs and broadcasts a one-off spend from vault to
// toAddress for amount satoshis — the admin surface's cold-storage withdrawal
// (spec.md §4.10), reusing the same UTXO-selection/sign/broadcast path as a
// bet payout but outside the Payout/Bet bookkeeping.
func (e *Engine) WithdrawVault(ctx context.Context, vault *domain.VaultWallet, toAddress string, amount int64) (string, error) {
	utxos, err := e.explorer.UtxosOf(ctx, vault.Address)
	if err != nil {
		return "", fmt.Errorf("payout.WithdrawVault: %w", err)
	}
	if len(utxos) == 0 {
		return "", domain.ErrInsufficientFunds
	}

	required := amount + e.cfg.FeeBufferSatoshis
	selected, err := SelectUtxos(utxos, required)
	if err != nil {
		return "", fmt.Errorf("payout.WithdrawVault: %w", err)
	}

	built, err := Build(vault.Address, selected, toAddress, amount, e.cfg.DefaultTxFee, e.cfg.DustLimitSatoshis, e.cfg.NetParams)
	if err != nil {
		return "", fmt.Errorf("payout.WithdrawVault: %w", err)
	}

	var rawHex string
	signErr := e.wallets.WithSigningKey(vault, func(wif []byte) error {
		decoded, err := btcutil.DecodeWIF(string(wif))
		if err != nil {
			return fmt.Errorf("decode WIF: %w", err)
		}
		if err := Sign(built, decoded.PrivKey); err != nil {
			return err
		}
		hexTx, err := Serialize(built.Tx)
		if err != nil {
			return err
		}
		rawHex = hexTx
		return nil
	})
	if signErr != nil {
		return "", fmt.Errorf("payout.WithdrawVault: sign: %w", signErr)
	}

	txid, err := e.explorer.Broadcast(ctx, rawHex)
	if err != nil {
		return "", fmt.Errorf("payout.WithdrawVault: broadcast: %w", err)
	}
	if err := e.wallets.RecordPayout(ctx, vault.ID, amount); err != nil {
		slog.Error("payout: failed to record vault withdrawal total", "vault_id", vault.ID, "error", err)
	}
	slog.Info("vault withdrawal broadcast", "vault_id", vault.ID, "txid", txid, "amount", amount)
	return txid, nil
}

// RetryFailed re-runs build-and-broadcast for every payout with retry budget
// remaining, returning the number of payouts attempted.
func (e *Engine) RetryFailed(ctx context.Context, limit int, resolveVault func(ctx context.Context, betID uuid.UUID) (*domain.VaultWallet, error)) (int, error) {
	payouts, err := e.payouts.ListRetryable(ctx, e.cfg.MaxRetries, limit)
	if err != nil {
		return 0, fmt.Errorf("payout.RetryFailed: %w", err)
	}
	for _, p := range payouts {
		vault, err := resolveVault(ctx, p.BetID)
		if err != nil {
			slog.Error("payout: cannot resolve vault for retry", "bet_id", p.BetID, "error", err)
			continue
		}
		e.attempt(ctx, p, vault)
	}
	return len(payouts), nil
}

// CheckConfirmations promotes broadcast payouts to confirmed once the
// Explorer reports confirmation, returning the number promoted.
func (e *Engine) CheckConfirmations(ctx context.Context, limit int, txStatus func(ctx context.Context, txid string) (confirmed bool, err error)) (int, error) {
	payouts, err := e.payouts.ListBroadcast(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("payout.CheckConfirmations: %w", err)
	}
	promoted := 0
	for _, p := range payouts {
		if p.Txid == nil {
			continue
		}
		confirmed, err := txStatus(ctx, *p.Txid)
		if err != nil {
			slog.Warn("payout: confirmation check failed", "payout_id", p.ID, "txid", *p.Txid, "error", err)
			continue
		}
		if !confirmed {
			continue
		}
		if err := e.payouts.MarkConfirmed(ctx, p.ID); err != nil {
			slog.Error("payout: failed to mark confirmed", "payout_id", p.ID, "error", err)
			continue
		}
		promoted++
	}
	return promoted, nil
}
