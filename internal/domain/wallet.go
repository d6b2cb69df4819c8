package domain

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// VaultWallet
// ──────────────────────────────────────────────────────────────────────────────

// AddressType enumerates the Bitcoin script types a vault wallet's address can
// use. The Payout Engine signs every spend as P2WPKH whatever this value is
// (see payout.Sign).
type AddressType string

const (
	AddressLegacy  AddressType = "legacy"  // P2PKH
	AddressSegwit  AddressType = "segwit"  // P2WPKH
	AddressTaproot AddressType = "taproot" // P2TR
)

// Network identifies which Bitcoin network a vault wallet's address belongs to.
type Network string

const (
	NetworkMainnet Network = "mainnet"
	NetworkTestnet Network = "testnet"
)

// VaultWallet is a Bitcoin wallet bound to a fixed payout multiplier. It both
// receives deposits (determining the multiplier/chance of the resulting bet)
// and sends payouts for wins from that same deposit.
//
// Invariant: chance × multiplier ≤ 100 − house_edge_percent must hold at
// creation time (enforced by the admin surface, not here — this struct only
// carries the already-validated values).
type VaultWallet struct {
	ID                  uuid.UUID   `json:"id"                    db:"id"`
	Multiplier          float64     `json:"multiplier"            db:"multiplier"`
	Chance              float64     `json:"chance"                db:"chance"` // win percentage in (0,100), authoritative
	Address             string      `json:"address"               db:"address"`
	AddressType         AddressType `json:"address_type"           db:"address_type"`
	Network             Network     `json:"network"                db:"network"`
	EncryptedPrivateKey string      `json:"-"                     db:"encrypted_private_key"` // never serialised
	IsActive            bool        `json:"is_active"             db:"is_active"`
	IsDepleted          bool        `json:"is_depleted"            db:"is_depleted"`
	TotalReceived       int64       `json:"total_received"        db:"total_received"` // satoshis
	TotalSent           int64       `json:"total_sent"            db:"total_sent"`     // satoshis
	BetCount            int64       `json:"bet_count"              db:"bet_count"`
	Label               *string     `json:"label,omitempty"       db:"label"`
	CreatedAt           time.Time   `json:"created_at"             db:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"             db:"updated_at"`
}

// RecordDeposit updates the wallet's deposit stats; called once per materialized bet.
func (w *VaultWallet) RecordDeposit(amount int64) {
	w.TotalReceived += amount
	w.BetCount++
}

// RecordPayout updates the wallet's sent-total after a successful broadcast.
func (w *VaultWallet) RecordPayout(amount int64) {
	w.TotalSent += amount
}

// ValidateChanceMultiplier checks the admin-time invariant that no vault wallet
// can offer a positive-expected-value bet: chance × multiplier must not exceed
// 100 minus the configured house edge percentage.
func ValidateChanceMultiplier(chance, multiplier, houseEdgePercent float64) error {
	if chance <= 0 || chance >= 100 {
		return ErrChanceOutOfRange
	}
	ceiling := 100 - houseEdgePercent
	if chance*multiplier > ceiling {
		return ErrInvalidChanceMultiplier
	}
	return nil
}
