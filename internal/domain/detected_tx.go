package domain

import (
	"time"

	"github.com/google/uuid"
)

// DetectedTransaction records an on-chain transaction observed by the Mempool
// Ingester or Explorer REST fallback. At most one record exists per txid; a
// transaction may be observed repeatedly without creating duplicates.
type DetectedTransaction struct {
	ID            uuid.UUID  `json:"id"             db:"id"`
	Txid          string     `json:"txid"           db:"txid"`
	FromAddress   *string    `json:"from_address"   db:"from_address"`
	ToAddress     string     `json:"to_address"     db:"to_address"`
	Amount        int64      `json:"amount"         db:"amount"` // satoshis
	Fee           int64      `json:"fee"            db:"fee"`   // satoshis
	DetectedBy    string     `json:"detected_by"    db:"detected_by"` // source tag: "ws" | "rest"
	Confirmations int        `json:"confirmations"  db:"confirmations"`
	BlockHeight   *int64     `json:"block_height"   db:"block_height"`
	BlockHash     *string    `json:"block_hash"     db:"block_hash"`
	IsProcessed   bool       `json:"is_processed"   db:"is_processed"`
	BetID         *uuid.UUID `json:"bet_id"         db:"bet_id"`
	Raw           []byte     `json:"-"              db:"raw"` // raw frame/tx blob, JSONB
	DetectedAt    time.Time  `json:"detected_at"    db:"detected_at"`
	UpdatedAt     time.Time  `json:"updated_at"     db:"updated_at"`
}

// MeetsConfirmations reports whether this transaction has at least minConfs
// confirmations.
func (d *DetectedTransaction) MeetsConfirmations(minConfs int) bool {
	return d.Confirmations >= minConfs
}

// DepositEvent is the normalized output of the Mempool Ingester, handed to the
// Bet Materializer. It is not persisted directly; DetectedTransaction is its
// durable counterpart.
type DepositEvent struct {
	Txid          string
	ToAddress     string
	Amount        int64 // satoshis
	FromAddress   *string
	Fee           int64
	Confirmations int
	BlockHeight   *int64
	BlockHash     *string
	DetectedBy    string
	Raw           []byte
}
