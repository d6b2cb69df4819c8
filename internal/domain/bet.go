package domain

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// Types & constants
// ──────────────────────────────────────────────────────────────────────────────

// BetStatus represents the current state of a bet's settlement pipeline.
type BetStatus string

const (
	BetStatusPending   BetStatus = "pending"   // materialized, awaiting confirmations
	BetStatusConfirmed BetStatus = "confirmed" // deposit confirmations met threshold
	BetStatusRolled    BetStatus = "rolled"     // roll computed, payout (if any) enqueued
	BetStatusPaid      BetStatus = "paid"       // terminal: loss settled, or win broadcast/confirmed
	BetStatusFailed    BetStatus = "failed"     // terminal: win could not be paid (retries exhausted)
)

// ──────────────────────────────────────────────────────────────────────────────
// Bet
// ──────────────────────────────────────────────────────────────────────────────

// Bet is the central record linking one deposit to one roll and, for wins,
// one payout. bet_number is globally monotonic; deposit_txid is unique.
type Bet struct {
	ID             uuid.UUID  `json:"id"                db:"id"`
	BetNumber      int64      `json:"bet_number"        db:"bet_number"`
	UserID         uuid.UUID  `json:"user_id"           db:"user_id"`
	VaultWalletID  uuid.UUID  `json:"vault_wallet_id"   db:"vault_wallet_id"`
	DepositTxid    string     `json:"deposit_txid"      db:"deposit_txid"`
	BetAmount      int64      `json:"bet_amount"        db:"bet_amount"` // satoshis
	Multiplier     float64    `json:"multiplier"        db:"multiplier"`
	Chance         float64    `json:"chance"            db:"chance"`
	Nonce          int64      `json:"nonce"             db:"nonce"`
	ServerSeedHash string     `json:"server_seed_hash"  db:"server_seed_hash"`
	ClientSeed     string     `json:"client_seed"       db:"client_seed"`
	ServerSeed     *string    `json:"server_seed,omitempty" db:"server_seed"` // snapshot, set at roll time
	RollResult     *float64   `json:"roll_result"       db:"roll_result"`     // never mutated once set
	IsWin          *bool      `json:"is_win"            db:"is_win"`
	PayoutAmount   int64      `json:"payout_amount"     db:"payout_amount"` // satoshis
	Profit         int64      `json:"profit"            db:"profit"`       // satoshis, signed
	PayoutTxid     *string    `json:"payout_txid"       db:"payout_txid"`
	Status         BetStatus  `json:"status"            db:"status"`
	CreatedAt      time.Time  `json:"created_at"        db:"created_at"`
	ConfirmedAt    *time.Time `json:"confirmed_at"      db:"confirmed_at"`
	RolledAt       *time.Time `json:"rolled_at"         db:"rolled_at"`
	PaidAt         *time.Time `json:"paid_at"           db:"paid_at"`
}

// HasRolled reports whether this bet's roll has already been computed; the
// Bet Materializer must never roll the same bet twice.
func (b *Bet) HasRolled() bool {
	return b.RollResult != nil
}

// CalculatePayout returns (payout_amount, profit) per spec: floor(bet_amount *
// multiplier) and payout-bet_amount on a win; 0 and -bet_amount on a loss.
// bet_amount * multiplier is computed in float64 then truncated, matching the
// source's int(bet_amount * multiplier) semantics exactly.
func (b *Bet) CalculatePayout(isWin bool) (payoutAmount, profit int64) {
	if !isWin {
		return 0, -b.BetAmount
	}
	payoutAmount = int64(float64(b.BetAmount) * b.Multiplier)
	profit = payoutAmount - b.BetAmount
	return payoutAmount, profit
}

// BetResponse is the API-safe response form of a Bet. It has no server seed
// field, so the raw seed a Bet stores at roll time is never exposed through it.
type BetResponse struct {
	ID             uuid.UUID  `json:"id"`
	BetNumber      int64      `json:"bet_number"`
	BetAmount      int64      `json:"bet_amount"`
	Multiplier     float64    `json:"multiplier"`
	Chance         float64    `json:"chance"`
	Nonce          int64      `json:"nonce"`
	ServerSeedHash string     `json:"server_seed_hash"`
	ClientSeed     string     `json:"client_seed"`
	RollResult     *float64   `json:"roll_result"`
	IsWin          *bool      `json:"is_win"`
	PayoutAmount   int64      `json:"payout_amount"`
	Profit         int64      `json:"profit"`
	PayoutTxid     *string    `json:"payout_txid"`
	Status         BetStatus  `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	RolledAt       *time.Time `json:"rolled_at,omitempty"`
}

// ToResponse converts a Bet to its API response form.
func (b *Bet) ToResponse() BetResponse {
	return BetResponse{
		ID:             b.ID,
		BetNumber:      b.BetNumber,
		BetAmount:      b.BetAmount,
		Multiplier:     b.Multiplier,
		Chance:         b.Chance,
		Nonce:          b.Nonce,
		ServerSeedHash: b.ServerSeedHash,
		ClientSeed:     b.ClientSeed,
		RollResult:     b.RollResult,
		IsWin:          b.IsWin,
		PayoutAmount:   b.PayoutAmount,
		Profit:         b.Profit,
		PayoutTxid:     b.PayoutTxid,
		Status:         b.Status,
		CreatedAt:      b.CreatedAt,
		RolledAt:       b.RolledAt,
	}
}
