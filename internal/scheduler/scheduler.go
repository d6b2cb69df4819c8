// Package scheduler manages the three background goroutines that run the
// settlement pipeline's housekeeping loops:
//  1. sweepLoop    – re-drives stuck pending bets (spec.md §4.6a) every SweepInterval.
//  2. retryLoop    – re-attempts payouts with retry budget remaining.
//  3. confirmLoop  – promotes broadcast payouts to confirmed once the chain catches up.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/explorer"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into Scheduler to avoid import cycles (Step 12 idiom)
// ──────────────────────────────────────────────────────────────────────────────

// BetSweeper is the Bet Materializer's sweep surface.
type BetSweeper interface {
	SweepPending(ctx context.Context) (int, error)
}

// PayoutEngine is the subset of payout.Engine the scheduler drives.
type PayoutEngine interface {
	RetryFailed(ctx context.Context, limit int, resolveVault func(ctx context.Context, betID uuid.UUID) (*domain.VaultWallet, error)) (int, error)
	CheckConfirmations(ctx context.Context, limit int, txStatus func(ctx context.Context, txid string) (bool, error)) (int, error)
}

// BetLookup resolves a bet by id, to map a payout's bet_id to its vault.
type BetLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Bet, error)
}

// VaultLookup resolves a vault wallet by id.
type VaultLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VaultWallet, error)
}

// TxStatusSource reports a transaction's confirmation count.
type TxStatusSource interface {
	TxDetails(ctx context.Context, txid string) (*explorer.TxData, error)
}

// TipSource supplies the best-known chain tip height for confirmation math.
type TipSource func() int64

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Scheduler wires together the Materializer's sweeper and the Payout Engine's
// retry/confirmation loops. Call Start(ctx) once from main(); cancel the
// context to shut it down gracefully.
type Scheduler struct {
	bets    BetSweeper
	payouts PayoutEngine
	betLU   BetLookup
	vaultLU VaultLookup
	txs     TxStatusSource
	tip     TipSource
	cfg     *config.Config
	logger  *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	bets BetSweeper,
	payouts PayoutEngine,
	betLU BetLookup,
	vaultLU VaultLookup,
	txs TxStatusSource,
	tip TipSource,
	cfg *config.Config,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		bets: bets, payouts: payouts, betLU: betLU, vaultLU: vaultLU,
		txs: txs, tip: tip, cfg: cfg, logger: logger,
	}
}

// Start launches the three background goroutines. It returns immediately;
// all loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.sweepLoop(ctx)
	go s.retryLoop(ctx)
	go s.confirmLoop(ctx)
	s.logger.Info("scheduler started")
}

// ──────────────────────────────────────────────────────────────────────────────
// sweepLoop
// ──────────────────────────────────────────────────────────────────────────────

// sweepLoop re-drives pending bets whose deposits have since met the
// confirmation threshold, per spec.md §4.6a, every cfg.Bet.SweepInterval.
func (s *Scheduler) sweepLoop(ctx context.Context) {
	defer s.recoverAndLog("sweepLoop")

	ticker := time.NewTicker(s.cfg.Bet.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweepLoop: shutting down")
			return
		case <-ticker.C:
			n, err := s.bets.SweepPending(ctx)
			if err != nil {
				s.logger.Error("sweepLoop: SweepPending", "err", err)
				continue
			}
			if n > 0 {
				s.logger.Info("sweepLoop: re-drove pending bets", "count", n)
			}
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// retryLoop
// ──────────────────────────────────────────────────────────────────────────────

// retryLoop re-attempts failed payouts with retry budget remaining, every 30
// seconds.
func (s *Scheduler) retryLoop(ctx context.Context) {
	defer s.recoverAndLog("retryLoop")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("retryLoop: shutting down")
			return
		case <-ticker.C:
			n, err := s.payouts.RetryFailed(ctx, s.cfg.Bet.SweepPageSize, s.resolveVault)
			if err != nil {
				s.logger.Error("retryLoop: RetryFailed", "err", err)
				continue
			}
			if n > 0 {
				s.logger.Info("retryLoop: retried payouts", "count", n)
			}
		}
	}
}

// resolveVault maps a payout's bet_id to the vault it was settled against, so
// RetryFailed can re-sign from the correct key.
func (s *Scheduler) resolveVault(ctx context.Context, betID uuid.UUID) (*domain.VaultWallet, error) {
	bet, err := s.betLU.GetByID(ctx, betID)
	if err != nil {
		return nil, err
	}
	return s.vaultLU.GetByID(ctx, bet.VaultWalletID)
}

// ──────────────────────────────────────────────────────────────────────────────
// confirmLoop
// ──────────────────────────────────────────────────────────────────────────────

// confirmLoop promotes broadcast payouts to confirmed once the chain has
// caught up, every 15 seconds.
func (s *Scheduler) confirmLoop(ctx context.Context) {
	defer s.recoverAndLog("confirmLoop")

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("confirmLoop: shutting down")
			return
		case <-ticker.C:
			n, err := s.payouts.CheckConfirmations(ctx, s.cfg.Bet.SweepPageSize, s.txStatus)
			if err != nil {
				s.logger.Error("confirmLoop: CheckConfirmations", "err", err)
				continue
			}
			if n > 0 {
				s.logger.Info("confirmLoop: promoted payouts", "count", n)
			}
		}
	}
}

// txStatus reports whether txid is confirmed and has reached the configured
// payout confirmation threshold.
func (s *Scheduler) txStatus(ctx context.Context, txid string) (bool, error) {
	tx, err := s.txs.TxDetails(ctx, txid)
	if err != nil {
		return false, err
	}
	if !tx.Status.Confirmed {
		return false, nil
	}
	tip := int64(0)
	if s.tip != nil {
		tip = s.tip()
	}
	return tx.Confirmations(tip) >= s.cfg.Bet.MinConfirmationsPayout, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
