package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// UserRepository handles all database operations for Users. A user here has
// no password or role: identity is the Bitcoin address that deposits arrive
// from, created implicitly on a wallet's first deposit.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreateByAddress fetches the user for a Bitcoin address, creating one
// if this is its first-ever deposit. Races between concurrent first deposits
// from the same address are resolved by the unique constraint on address: the
// loser of the INSERT re-fetches the winner's row.
func (r *UserRepository) GetOrCreateByAddress(ctx context.Context, address string) (*domain.User, error) {
	u, err := r.GetByAddress(ctx, address)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	u = &domain.User{
		ID:      uuid.New(),
		Address: address,
	}
	query := `
		INSERT INTO users (id, address, total_bets, total_wagered, total_won, total_lost, created_at, updated_at)
		VALUES (:id, :address, :total_bets, :total_wagered, :total_won, :total_lost, now(), now())`
	if _, err := r.db.NamedExecContext(ctx, query, u); err != nil {
		if isUniqueViolation(err, "users_address_key") {
			return r.GetByAddress(ctx, address)
		}
		return nil, fmt.Errorf("user_repo.GetOrCreateByAddress: %w", err)
	}
	return u, nil
}

// GetByID fetches a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.GetByID: %w", err)
	}
	return &u, nil
}

// GetByAddress fetches a user by Bitcoin address.
func (r *UserRepository) GetByAddress(ctx context.Context, address string) (*domain.User, error) {
	var u domain.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE address = $1`, address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("user_repo.GetByAddress: %w", err)
	}
	return &u, nil
}

// List returns a paginated list of all users.
// Returns (users, totalCount, error).
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*domain.User, int, error) {
	var users []*domain.User
	var total int

	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM users`); err != nil {
		return nil, 0, fmt.Errorf("user_repo.List count: %w", err)
	}
	if err := r.db.SelectContext(ctx, &users,
		`SELECT * FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("user_repo.List select: %w", err)
	}
	return users, total, nil
}

// ApplyRollResult persists the effect of a settled bet on a user's running
// totals. Called by the materializer inside the same transaction that
// updates the bet row.
func (r *UserRepository) ApplyRollResult(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, betAmount int64, isWin bool, payoutAmount int64) error {
	wonDelta, lostDelta := int64(0), int64(0)
	if isWin {
		wonDelta = payoutAmount
	} else {
		lostDelta = betAmount
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE users
		SET total_bets    = total_bets + 1,
		    total_wagered = total_wagered + $1,
		    total_won     = total_won + $2,
		    total_lost    = total_lost + $3,
		    updated_at    = now()
		WHERE id = $4`,
		betAmount, wonDelta, lostDelta, userID)
	if err != nil {
		return fmt.Errorf("user_repo.ApplyRollResult: %w", err)
	}
	return nil
}
