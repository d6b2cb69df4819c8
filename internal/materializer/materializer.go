// Package materializer implements the Bet Materializer: the pipeline that
// turns a single on-chain deposit into a persisted Bet, rolls it against the
// provably-fair dice, and drives a winning roll into the Payout Engine.
// Grounded on the teacher's BetService/ResolutionService pattern — a
// db-backed orchestrator that wraps each atomic step in its own
// *sqlx.Tx and injects its collaborators as small point-of-use interfaces.
package materializer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/eventbus"
	"github.com/evetabi/prediction/internal/fairness"
)

// ──────────────────────────────────────────────────────────────────────────────
// Interfaces injected into Materializer to avoid import cycles
// ──────────────────────────────────────────────────────────────────────────────

// BetStore is the subset of bet persistence the materializer needs.
type BetStore interface {
	GetByDepositTxid(ctx context.Context, txid string) (*domain.Bet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Bet, error)
	Create(ctx context.Context, tx *sqlx.Tx, b *domain.Bet) error
	ApplyRoll(ctx context.Context, tx *sqlx.Tx, b *domain.Bet) error
	MarkPaid(ctx context.Context, betID uuid.UUID, payoutTxid *string) error
	NextBetNumber(ctx context.Context, tx *sqlx.Tx) (int64, error)
	ListPending(ctx context.Context, limit int) ([]*domain.Bet, error)
	MarkConfirmed(ctx context.Context, betID uuid.UUID) error
}

// UserStore is the subset of user persistence the materializer needs.
type UserStore interface {
	GetOrCreateByAddress(ctx context.Context, address string) (*domain.User, error)
	ApplyRollResult(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, betAmount int64, isWin bool, payoutAmount int64) error
}

// DetectedTxStore is the subset of detected-transaction persistence the
// materializer needs.
type DetectedTxStore interface {
	GetByTxid(ctx context.Context, txid string) (*domain.DetectedTransaction, error)
	Create(ctx context.Context, d *domain.DetectedTransaction) error
	AttachBet(ctx context.Context, txid string, betID uuid.UUID) error
	MarkProcessed(ctx context.Context, txid string) error
	UpdateConfirmations(ctx context.Context, txid string, confirmations int, blockHeight *int64, blockHash *string) error
}

// UserSeedStore is the subset of UserSeed persistence the materializer needs.
type UserSeedStore interface {
	GetUserSeed(ctx context.Context, userID uuid.UUID) (*domain.UserSeed, error)
	CreateUserSeed(ctx context.Context, s *domain.UserSeed) error
	NextNonce(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int64, error)
}

// ServerSeedStore is the subset of ServerSeed persistence the materializer
// needs beyond the Seed Registry's own GetOrCreateToday — recovering the raw
// seed behind a bet's hash snapshot, and bumping its per-seed bet counter.
type ServerSeedStore interface {
	GetByHash(ctx context.Context, hash string) (*domain.ServerSeed, error)
	IncrementBetCount(ctx context.Context, id uuid.UUID) error
}

// SeedRegistry is the Seed Registry's commitment surface.
type SeedRegistry interface {
	GetOrCreateToday(ctx context.Context) (*domain.ServerSeed, error)
}

// VaultResolver is the Key Vault surface the materializer needs for deposit
// routing and deposit-stat bookkeeping.
type VaultResolver interface {
	WalletForAddress(ctx context.Context, address string) (*domain.VaultWallet, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VaultWallet, error)
	RecordDeposit(ctx context.Context, id uuid.UUID, amount int64) error
}

// PayoutEngine is the subset of the Payout Engine the materializer drives on
// a winning roll.
type PayoutEngine interface {
	ProcessWinningBet(ctx context.Context, bet *domain.Bet, vault *domain.VaultWallet, minConfirmationsPayout int) (*domain.Payout, error)
}

// EventPublisher is the Event Bus surface the materializer publishes to.
type EventPublisher interface {
	PublishBetResult(e eventbus.BetResultEvent)
	PublishSeedHashUpdate(e eventbus.SeedHashUpdateEvent)
}

// Config bundles the materializer-relevant tunables from config.BetConfig.
type Config struct {
	MinBetSatoshis         int64
	MaxBetSatoshis         int64
	MinMultiplier          float64
	MaxMultiplier          float64
	HouseEdge              float64
	MinConfirmationsPayout int
	SweepPageSize          int
}

// Materializer implements §4.6's Materialize/roll_and_settle and the §4.6a
// Pending Bet Sweeper.
type Materializer struct {
	db         *sqlx.DB
	bets       BetStore
	users      UserStore
	detected   DetectedTxStore
	userSeeds  UserSeedStore
	serverSeed ServerSeedStore
	registry   SeedRegistry
	vault      VaultResolver
	payouts    PayoutEngine
	events     EventPublisher
	cfg        Config
}

// New builds a Materializer.
func New(
	db *sqlx.DB,
	bets BetStore,
	users UserStore,
	detected DetectedTxStore,
	userSeeds UserSeedStore,
	serverSeed ServerSeedStore,
	registry SeedRegistry,
	vault VaultResolver,
	payouts PayoutEngine,
	events EventPublisher,
	cfg Config,
) *Materializer {
	return &Materializer{
		db: db, bets: bets, users: users, detected: detected, userSeeds: userSeeds,
		serverSeed: serverSeed, registry: registry, vault: vault, payouts: payouts,
		events: events, cfg: cfg,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Materialize
// ──────────────────────────────────────────────────────────────────────────────

// Materialize turns one DepositEvent into a Bet, following §4.6's twelve
// steps. It is safe to call more than once for the same txid.
func (m *Materializer) Materialize(ctx context.Context, event domain.DepositEvent) (*domain.Bet, error) {
	dt, err := m.upsertDetectedTx(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("materializer.Materialize: %w", err)
	}

	// ── Step 1: deduplicate ──────────────────────────────────────────────────
	if existing, err := m.bets.GetByDepositTxid(ctx, event.Txid); err == nil {
		if !dt.IsProcessed {
			if err := m.detected.AttachBet(ctx, event.Txid, existing.ID); err != nil {
				slog.Error("materializer: failed to attach bet on dedupe path", "txid", event.Txid, "error", err)
			}
		}
		return existing, nil
	} else if !domain.IsNotFound(err) {
		return nil, fmt.Errorf("materializer.Materialize: dedupe check: %w", err)
	}
	if dt.IsProcessed {
		slog.Error("materializer: detected transaction flagged processed with no bet", "txid", event.Txid)
		return nil, domain.ErrCorruptProcessedState
	}

	// ── Step 2: upsert user ──────────────────────────────────────────────────
	if event.FromAddress == nil || *event.FromAddress == "" {
		_ = m.detected.MarkProcessed(ctx, event.Txid)
		return nil, domain.ErrUnknownSender
	}
	user, err := m.users.GetOrCreateByAddress(ctx, *event.FromAddress)
	if err != nil {
		return nil, fmt.Errorf("materializer.Materialize: upsert user: %w", err)
	}

	// ── Step 3: resolve wallet ────────────────────────────────────────────────
	wallet, err := m.vault.WalletForAddress(ctx, event.ToAddress)
	if err != nil {
		if errors.Is(err, domain.ErrNotAVaultAddress) || errors.Is(err, domain.ErrWalletInactive) {
			_ = m.detected.MarkProcessed(ctx, event.Txid)
		}
		return nil, fmt.Errorf("materializer.Materialize: resolve wallet: %w", err)
	}

	// ── Step 4: resolve UserSeed ──────────────────────────────────────────────
	userSeed, err := m.userSeeds.GetUserSeed(ctx, user.ID)
	if err != nil {
		if !domain.IsNotFound(err) {
			return nil, fmt.Errorf("materializer.Materialize: resolve user seed: %w", err)
		}
		userSeed = domain.NewUserSeed(user.ID, user.Address)
		if err := m.userSeeds.CreateUserSeed(ctx, userSeed); err != nil {
			return nil, fmt.Errorf("materializer.Materialize: create user seed: %w", err)
		}
	}

	// ── Step 5: resolve ServerSeed, broadcast a fresh day's hash once ────────
	seed, err := m.registry.GetOrCreateToday(ctx)
	if err != nil {
		return nil, fmt.Errorf("materializer.Materialize: resolve server seed: %w", err)
	}
	if seed.BetCount == 0 {
		m.events.PublishSeedHashUpdate(eventbus.SeedHashUpdateEvent{
			SeedDate:       seed.SeedDate,
			ServerSeedHash: seed.ServerSeedHash,
			Timestamp:      time.Now(),
		})
	}

	// ── Step 6: validate bet parameters ──────────────────────────────────────
	if err := fairness.ValidateBetParams(
		event.Amount, wallet.Multiplier,
		float64(m.cfg.MinBetSatoshis), float64(m.cfg.MaxBetSatoshis),
		m.cfg.MinMultiplier, m.cfg.MaxMultiplier, m.cfg.HouseEdge,
	); err != nil {
		_ = m.detected.MarkProcessed(ctx, event.Txid)
		return nil, err
	}

	// ── Steps 7-9: assign bet_number, compose, persist — one transaction ────
	bet, err := m.createBet(ctx, event, user, wallet, userSeed, seed)
	if err != nil {
		return nil, err
	}

	// ── Step 10: attach the DetectedTransaction ──────────────────────────────
	if err := m.detected.AttachBet(ctx, event.Txid, bet.ID); err != nil {
		slog.Error("materializer: failed to attach bet", "bet_id", bet.ID, "txid", event.Txid, "error", err)
	}

	// ── Step 11: record deposit stats ────────────────────────────────────────
	if err := m.vault.RecordDeposit(ctx, wallet.ID, event.Amount); err != nil {
		slog.Error("materializer: failed to record vault deposit", "bet_id", bet.ID, "error", err)
	}
	if err := m.serverSeed.IncrementBetCount(ctx, seed.ID); err != nil {
		slog.Error("materializer: failed to bump server seed bet count", "bet_id", bet.ID, "error", err)
	}

	// ── Step 12: roll immediately, or leave pending for the sweeper ─────────
	if dt.MeetsConfirmations(m.cfg.MinConfirmationsPayout) {
		if err := m.RollAndSettle(ctx, bet); err != nil {
			slog.Error("materializer: immediate roll_and_settle failed", "bet_id", bet.ID, "error", err)
		}
	}

	return bet, nil
}

// createBet assigns the bet_number, composes, and persists a new Bet inside
// a single transaction. On a racing ingester's duplicate deposit_txid, it
// re-reads and returns the bet the other path already created.
func (m *Materializer) createBet(
	ctx context.Context,
	event domain.DepositEvent,
	user *domain.User,
	wallet *domain.VaultWallet,
	userSeed *domain.UserSeed,
	seed *domain.ServerSeed,
) (*domain.Bet, error) {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("materializer.createBet: begin tx: %w", err)
	}
	var txErr error
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	betNumber, txErr := m.bets.NextBetNumber(ctx, tx)
	if txErr != nil {
		return nil, fmt.Errorf("materializer.createBet: next bet number: %w", txErr)
	}

	bet := &domain.Bet{
		ID:             uuid.New(),
		BetNumber:      betNumber,
		UserID:         user.ID,
		VaultWalletID:  wallet.ID,
		DepositTxid:    event.Txid,
		BetAmount:      event.Amount,
		Multiplier:     wallet.Multiplier,
		Chance:         wallet.Chance,
		Nonce:          userSeed.Nonce,
		ServerSeedHash: seed.ServerSeedHash,
		ClientSeed:     userSeed.ClientSeed,
		Status:         domain.BetStatusPending,
		CreatedAt:      time.Now(),
	}

	if txErr = m.bets.Create(ctx, tx, bet); txErr != nil {
		if errors.Is(txErr, domain.ErrDuplicateDepositTxid) {
			_ = tx.Rollback()
			existing, getErr := m.bets.GetByDepositTxid(ctx, event.Txid)
			if getErr != nil {
				return nil, fmt.Errorf("materializer.createBet: re-read after duplicate: %w", getErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("materializer.createBet: insert: %w", txErr)
	}

	if txErr = tx.Commit(); txErr != nil {
		return nil, fmt.Errorf("materializer.createBet: commit: %w", txErr)
	}
	return bet, nil
}

// upsertDetectedTx finds or creates the DetectedTransaction record backing a
// DepositEvent, refreshing its confirmation count when the event reports a
// newer value. It is the durable dedup anchor that survives process crashes,
// where the ingester's in-memory seen set cannot.
func (m *Materializer) upsertDetectedTx(ctx context.Context, event domain.DepositEvent) (*domain.DetectedTransaction, error) {
	dt, err := m.detected.GetByTxid(ctx, event.Txid)
	if err == nil {
		if event.Confirmations > dt.Confirmations {
			if uErr := m.detected.UpdateConfirmations(ctx, event.Txid, event.Confirmations, event.BlockHeight, event.BlockHash); uErr != nil {
				slog.Error("materializer: failed to refresh confirmations", "txid", event.Txid, "error", uErr)
			} else {
				dt.Confirmations = event.Confirmations
			}
		}
		return dt, nil
	}
	if !domain.IsNotFound(err) {
		return nil, fmt.Errorf("upsertDetectedTx: %w", err)
	}

	dt = &domain.DetectedTransaction{
		ID:            uuid.New(),
		Txid:          event.Txid,
		FromAddress:   event.FromAddress,
		ToAddress:     event.ToAddress,
		Amount:        event.Amount,
		Fee:           event.Fee,
		DetectedBy:    event.DetectedBy,
		Confirmations: event.Confirmations,
		BlockHeight:   event.BlockHeight,
		BlockHash:     event.BlockHash,
		IsProcessed:   false,
		Raw:           event.Raw,
		DetectedAt:    time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := m.detected.Create(ctx, dt); err != nil {
		if errors.Is(err, domain.ErrDuplicateDepositTxid) {
			return m.detected.GetByTxid(ctx, event.Txid)
		}
		return nil, fmt.Errorf("upsertDetectedTx: create: %w", err)
	}
	return dt, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// RollAndSettle
// ──────────────────────────────────────────────────────────────────────────────

// RollAndSettle computes and persists a bet's outcome, guarded against
// double-rolling, then drives the win/loss payout path and finally emits a
// single BetResult event once that path has terminated.
func (m *Materializer) RollAndSettle(ctx context.Context, bet *domain.Bet) error {
	if bet.HasRolled() {
		return domain.ErrAlreadyRolled
	}

	seed, err := m.serverSeed.GetByHash(ctx, bet.ServerSeedHash)
	if err != nil {
		return fmt.Errorf("materializer.RollAndSettle: load server seed: %w", err)
	}

	result := fairness.CreateBetResult(seed.ServerSeed, bet.ClientSeed, bet.Nonce, bet.BetAmount, bet.Multiplier, bet.Chance)

	rolled := *bet
	rawSeed, roll, isWin := seed.ServerSeed, result.Roll, result.IsWin
	rolled.ServerSeed = &rawSeed
	rolled.RollResult = &roll
	rolled.IsWin = &isWin
	rolled.PayoutAmount = result.Payout
	rolled.Profit = result.Profit
	rolled.Status = domain.BetStatusRolled

	if err := m.applyRollTx(ctx, &rolled); err != nil {
		return err
	}

	if isWin {
		vault, err := m.vault.GetByID(ctx, bet.VaultWalletID)
		if err != nil {
			slog.Error("materializer: cannot resolve vault for payout", "bet_id", bet.ID, "error", err)
		} else if _, err := m.payouts.ProcessWinningBet(ctx, &rolled, vault, m.cfg.MinConfirmationsPayout); err != nil {
			slog.Error("materializer: process_winning_bet failed", "bet_id", bet.ID, "error", err)
		}
	} else {
		if err := m.bets.MarkPaid(ctx, bet.ID, nil); err != nil {
			slog.Error("materializer: failed to settle loss", "bet_id", bet.ID, "error", err)
		}
	}

	final, err := m.bets.GetByID(ctx, bet.ID)
	if err != nil {
		return fmt.Errorf("materializer.RollAndSettle: reload final bet: %w", err)
	}
	m.events.PublishBetResult(eventbus.BetResultEvent{
		BetID:          final.ID,
		BetNumber:      final.BetNumber,
		UserAddress:    final.ClientSeed, // client_seed is always the user's address
		BetAmount:      final.BetAmount,
		Multiplier:     final.Multiplier,
		Chance:         final.Chance,
		RollResult:     *final.RollResult,
		IsWin:          *final.IsWin,
		PayoutAmount:   final.PayoutAmount,
		Profit:         final.Profit,
		PayoutTxid:     final.PayoutTxid,
		Status:         string(final.Status),
		ServerSeedHash: final.ServerSeedHash,
		Timestamp:      time.Now(),
	})
	return nil
}

// applyRollTx persists the roll outcome, increments the user's nonce, and
// folds the result into the user's lifetime stats, all inside one
// transaction — steps 3-5 of roll_and_settle.
func (m *Materializer) applyRollTx(ctx context.Context, rolled *domain.Bet) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("materializer.applyRollTx: begin tx: %w", err)
	}
	var txErr error
	defer func() {
		if txErr != nil {
			_ = tx.Rollback()
		}
	}()

	if txErr = m.bets.ApplyRoll(ctx, tx, rolled); txErr != nil {
		return fmt.Errorf("materializer.applyRollTx: apply roll: %w", txErr)
	}
	if _, txErr = m.userSeeds.NextNonce(ctx, tx, rolled.UserID); txErr != nil {
		return fmt.Errorf("materializer.applyRollTx: next nonce: %w", txErr)
	}
	if txErr = m.users.ApplyRollResult(ctx, tx, rolled.UserID, rolled.BetAmount, *rolled.IsWin, rolled.PayoutAmount); txErr != nil {
		return fmt.Errorf("materializer.applyRollTx: user stats: %w", txErr)
	}
	if txErr = tx.Commit(); txErr != nil {
		return fmt.Errorf("materializer.applyRollTx: commit: %w", txErr)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Pending Bet Sweeper (§4.6a)
// ──────────────────────────────────────────────────────────────────────────────

// SweepPending promotes bets whose deposit has since reached the
// confirmation threshold and rolls them, bounded by Config.SweepPageSize per
// invocation. Returns the number of bets rolled.
func (m *Materializer) SweepPending(ctx context.Context) (int, error) {
	pending, err := m.bets.ListPending(ctx, m.cfg.SweepPageSize)
	if err != nil {
		return 0, fmt.Errorf("materializer.SweepPending: %w", err)
	}

	rolled := 0
	for _, bet := range pending {
		if bet.HasRolled() {
			continue
		}
		dt, err := m.detected.GetByTxid(ctx, bet.DepositTxid)
		if err != nil {
			slog.Error("materializer: sweep could not load detected tx", "bet_id", bet.ID, "error", err)
			continue
		}
		if !dt.MeetsConfirmations(m.cfg.MinConfirmationsPayout) {
			continue
		}
		if bet.Status == domain.BetStatusPending {
			if err := m.bets.MarkConfirmed(ctx, bet.ID); err != nil {
				slog.Error("materializer: sweep could not mark confirmed", "bet_id", bet.ID, "error", err)
				continue
			}
			bet.Status = domain.BetStatusConfirmed
		}
		if err := m.RollAndSettle(ctx, bet); err != nil {
			slog.Error("materializer: sweep roll_and_settle failed", "bet_id", bet.ID, "error", err)
			continue
		}
		rolled++
	}
	return rolled, nil
}
