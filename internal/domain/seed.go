package domain

import (
	"time"

	"github.com/google/uuid"
)

// ──────────────────────────────────────────────────────────────────────────────
// ServerSeed
// ──────────────────────────────────────────────────────────────────────────────

// ServerSeed is the house-committed secret for a single calendar date. Its
// hash is published immediately; the raw seed is only disclosed once that
// date is in the past. Past-dated seeds are immutable once created.
type ServerSeed struct {
	ID             uuid.UUID `json:"id"               db:"id"`
	SeedDate       string    `json:"seed_date"        db:"seed_date"` // YYYY-MM-DD
	ServerSeed     string    `json:"-"                db:"server_seed"` // never serialised directly; use PublicView
	ServerSeedHash string    `json:"server_seed_hash" db:"server_seed_hash"`
	BetCount       int64     `json:"bet_count"        db:"bet_count"`
	CreatedAt      time.Time `json:"created_at"       db:"created_at"`
}

// SeedPublicView is the response shape returned by the fairness calendar:
// the raw seed is populated only for dates strictly before today.
type SeedPublicView struct {
	SeedDate       string  `json:"seed_date"`
	ServerSeedHash string  `json:"server_seed_hash"`
	ServerSeed     *string `json:"server_seed,omitempty"`
	BetCount       int64   `json:"bet_count"`
}

// SeedCalendarView is the public fairness calendar response: a bounded window
// of SeedPublicView entries plus the today/three_days_later anchors a client
// needs to know the window's edges without recomputing them.
type SeedCalendarView struct {
	Seeds          []SeedPublicView `json:"seeds"`
	Today          string           `json:"today"`
	ThreeDaysLater string           `json:"three_days_later"`
}

// ToPublicView renders s as a SeedPublicView, revealing the raw seed only when
// isPast is true (the caller determines "past" relative to today's date).
func (s *ServerSeed) ToPublicView(isPast bool) SeedPublicView {
	view := SeedPublicView{
		SeedDate:       s.SeedDate,
		ServerSeedHash: s.ServerSeedHash,
		BetCount:       s.BetCount,
	}
	if isPast {
		seed := s.ServerSeed
		view.ServerSeed = &seed
	}
	return view
}

// ──────────────────────────────────────────────────────────────────────────────
// UserSeed
// ──────────────────────────────────────────────────────────────────────────────

// UserSeed is the active client-seed/nonce pair for one user. The client seed
// equals the user's Bitcoin address per spec; nonce increments once per
// settled roll, never on any other event.
type UserSeed struct {
	ID         uuid.UUID `json:"id"          db:"id"`
	UserID     uuid.UUID `json:"user_id"     db:"user_id"`
	ClientSeed string    `json:"client_seed" db:"client_seed"`
	Nonce      int64     `json:"nonce"       db:"nonce"`
	CreatedAt  time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"  db:"updated_at"`
}

// NewUserSeed constructs the initial UserSeed for a user: client_seed equals
// the user's address, nonce starts at zero.
func NewUserSeed(userID uuid.UUID, address string) *UserSeed {
	return &UserSeed{
		ID:         uuid.New(),
		UserID:     userID,
		ClientSeed: address,
		Nonce:      0,
	}
}
