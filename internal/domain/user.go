package domain

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// User
// ──────────────────────────────────────────────────────────────────────────────

// User is identified by a Bitcoin address; it is created implicitly on first
// observed deposit from that address and never deleted. There is no login,
// password, or role — the sending address is the only identity.
type User struct {
	ID            uuid.UUID `json:"id"             db:"id"`
	Address       string    `json:"address"        db:"address"`
	TotalBets     int64     `json:"total_bets"     db:"total_bets"`
	TotalWagered  int64     `json:"total_wagered"  db:"total_wagered"` // satoshis
	TotalWon      int64     `json:"total_won"      db:"total_won"`     // satoshis
	TotalLost     int64     `json:"total_lost"     db:"total_lost"`    // satoshis
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"     db:"updated_at"`
}

// PublicProfile is the API-safe view of a user (identical to User today since
// there is nothing sensitive to withhold, but kept as a stable response shape
// independent of the storage struct).
type PublicProfile struct {
	ID           uuid.UUID `json:"id"`
	Address      string    `json:"address"`
	TotalBets    int64     `json:"total_bets"`
	TotalWagered int64     `json:"total_wagered"`
	TotalWon     int64     `json:"total_won"`
	TotalLost    int64     `json:"total_lost"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToPublicProfile converts a User to its public-safe representation.
func (u *User) ToPublicProfile() PublicProfile {
	return PublicProfile{
		ID:           u.ID,
		Address:      u.Address,
		TotalBets:    u.TotalBets,
		TotalWagered: u.TotalWagered,
		TotalWon:     u.TotalWon,
		TotalLost:    u.TotalLost,
		CreatedAt:    u.CreatedAt,
	}
}

// ApplyRollResult folds a settled bet's outcome into the user's lifetime
// aggregates. Called once per RollAndSettle, never retroactively.
func (u *User) ApplyRollResult(betAmount int64, isWin bool, payoutAmount int64) {
	u.TotalBets++
	u.TotalWagered += betAmount
	if isWin {
		u.TotalWon += payoutAmount
	} else {
		u.TotalLost += betAmount
	}
}
