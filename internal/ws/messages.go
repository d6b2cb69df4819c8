// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/google/uuid"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeBetResult      MsgType = "bet_result"
	MsgTypeSeedHashUpdate MsgType = "seed_hash_update"
	MsgTypeError          MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// BetResultMessage — broadcast once a bet's roll and payout attempt (if any)
// have both terminated.
// ──────────────────────────────────────────────────────────────────────────────

// BetResultMessage carries a settled bet's full public outcome.
type BetResultMessage struct {
	Type           MsgType   `json:"type"`
	BetID          uuid.UUID `json:"bet_id"`
	BetNumber      int64     `json:"bet_number"`
	UserAddress    string    `json:"user_address"`
	BetAmount      int64     `json:"bet_amount"`
	Multiplier     float64   `json:"multiplier"`
	Chance         float64   `json:"chance"`
	RollResult     float64   `json:"roll_result"`
	IsWin          bool      `json:"is_win"`
	PayoutAmount   int64     `json:"payout_amount"`
	Profit         int64     `json:"profit"`
	PayoutTxid     *string   `json:"payout_txid"`
	Status         string    `json:"status"`
	ServerSeedHash string    `json:"server_seed_hash"`
	Timestamp      time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// SeedHashUpdateMessage — broadcast the first time a bet is materialized
// against a new calendar day's ServerSeed.
// ──────────────────────────────────────────────────────────────────────────────

// SeedHashUpdateMessage notifies clients of the active day's published
// commitment hash.
type SeedHashUpdateMessage struct {
	Type           MsgType   `json:"type"`
	SeedDate       string    `json:"seed_date"`
	ServerSeedHash string    `json:"server_seed_hash"`
	Timestamp      time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}
