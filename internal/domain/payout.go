package domain

import (
	"time"

	"github.com/google/uuid"
)

// PayoutStatus represents the lifecycle of an outbound Bitcoin payment.
type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"   // not yet broadcast, or awaiting retry
	PayoutStatusBroadcast PayoutStatus = "broadcast" // sent to the network, unconfirmed
	PayoutStatusConfirmed PayoutStatus = "confirmed" // at least one confirmation observed
	PayoutStatusFailed    PayoutStatus = "failed"    // terminal: retries exhausted
)

// Payout is owned by exactly one Bet (unique bet reference) and tracks the
// on-chain transaction returning winnings to the bettor.
type Payout struct {
	ID           uuid.UUID    `json:"id"             db:"id"`
	BetID        uuid.UUID    `json:"bet_id"         db:"bet_id"`
	Amount       int64        `json:"amount"         db:"amount"` // satoshis
	ToAddress    string       `json:"to_address"     db:"to_address"`
	Status       PayoutStatus `json:"status"         db:"status"`
	Txid         *string      `json:"txid"           db:"txid"`
	RetryCount   int          `json:"retry_count"    db:"retry_count"`
	NetworkFee   int64        `json:"network_fee"    db:"network_fee"` // satoshis
	ErrorMessage *string      `json:"error_message"  db:"error_message"`
	CreatedAt    time.Time    `json:"created_at"     db:"created_at"`
	BroadcastAt  *time.Time   `json:"broadcast_at"   db:"broadcast_at"`
	ConfirmedAt  *time.Time   `json:"confirmed_at"   db:"confirmed_at"`
	UpdatedAt    time.Time    `json:"updated_at"     db:"updated_at"`
}

// CanRetry reports whether this payout may attempt another build-and-broadcast
// cycle: it has not exhausted its retry budget and is not already terminal.
func (p *Payout) CanRetry(maxRetries int) bool {
	if p.Status == PayoutStatusConfirmed || p.Status == PayoutStatusFailed {
		return false
	}
	return p.RetryCount < maxRetries
}

// IsTerminal reports whether no further action will ever change this payout.
func (p *Payout) IsTerminal() bool {
	return p.Status == PayoutStatusConfirmed || p.Status == PayoutStatusFailed
}

// Counter is a keyed singleton used for atomic fetch-and-increment sequences.
// The only key in use today is "bet_number".
type Counter struct {
	Key   string `json:"key"   db:"key"`
	Value int64  `json:"value" db:"value"`
}

const CounterKeyBetNumber = "bet_number"
