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

// SeedRepository handles all database operations for ServerSeed and UserSeed.
type SeedRepository struct {
	db *sqlx.DB
}

// NewSeedRepository creates a new SeedRepository.
func NewSeedRepository(db *sqlx.DB) *SeedRepository {
	return &SeedRepository{db: db}
}

// GetByDate fetches the ServerSeed for a calendar date (YYYY-MM-DD).
func (r *SeedRepository) GetByDate(ctx context.Context, seedDate string) (*domain.ServerSeed, error) {
	var s domain.ServerSeed
	err := r.db.GetContext(ctx, &s, `SELECT * FROM server_seeds WHERE seed_date = $1`, seedDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSeedNotFound
		}
		return nil, fmt.Errorf("seed_repo.GetByDate: %w", err)
	}
	return &s, nil
}

// Create inserts a new ServerSeed row. Returns domain.ErrSeedAlreadyExists if
// seed_date is already taken.
func (r *SeedRepository) Create(ctx context.Context, s *domain.ServerSeed) error {
	query := `
		INSERT INTO server_seeds (id, seed_date, server_seed, server_seed_hash, bet_count, created_at)
		VALUES (:id, :seed_date, :server_seed, :server_seed_hash, :bet_count, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		if isUniqueViolation(err, "server_seeds_seed_date_key") {
			return domain.ErrSeedAlreadyExists
		}
		return fmt.Errorf("seed_repo.Create: %w", err)
	}
	return nil
}

// GetByHash fetches a ServerSeed by its published hash — how RollAndSettle
// recovers the exact seed a bet snapshotted, independent of which calendar
// date is "today" by the time the bet actually settles.
func (r *SeedRepository) GetByHash(ctx context.Context, hash string) (*domain.ServerSeed, error) {
	var s domain.ServerSeed
	err := r.db.GetContext(ctx, &s, `SELECT * FROM server_seeds WHERE server_seed_hash = $1`, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSeedNotFound
		}
		return nil, fmt.Errorf("seed_repo.GetByHash: %w", err)
	}
	return &s, nil
}

// ListAll returns every ServerSeed, most recent date first. The admin calendar
// does not use it; seedregistry.AdminListAll reads through ListByDateRange.
func (r *SeedRepository) ListAll(ctx context.Context) ([]domain.ServerSeed, error) {
	var seeds []domain.ServerSeed
	err := r.db.SelectContext(ctx, &seeds, `SELECT * FROM server_seeds ORDER BY seed_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("seed_repo.ListAll: %w", err)
	}
	return seeds, nil
}

// ListByDateRange returns every ServerSeed whose seed_date falls in
// [from, to] inclusive, most recent date first — the bounded window the
// public fairness calendar uses so future-dated secret seeds beyond the
// published window are never fetched in the first place.
func (r *SeedRepository) ListByDateRange(ctx context.Context, from, to string) ([]domain.ServerSeed, error) {
	var seeds []domain.ServerSeed
	err := r.db.SelectContext(ctx, &seeds,
		`SELECT * FROM server_seeds WHERE seed_date BETWEEN $1 AND $2 ORDER BY seed_date DESC`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("seed_repo.ListByDateRange: %w", err)
	}
	return seeds, nil
}

// IncrementBetCount bumps a ServerSeed's bet_count by one.
func (r *SeedRepository) IncrementBetCount(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE server_seeds SET bet_count = bet_count + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("seed_repo.IncrementBetCount: %w", err)
	}
	return nil
}

// Delete removes a ServerSeed by id (admin operation; future-only dates
// enforced by the seedregistry service, not here).
func (r *SeedRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM server_seeds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("seed_repo.Delete: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSeedNotFound
	}
	return nil
}

// ── UserSeed ──────────────────────────────────────────────────────────────

// GetUserSeed fetches a user's active client-seed/nonce pair.
func (r *SeedRepository) GetUserSeed(ctx context.Context, userID uuid.UUID) (*domain.UserSeed, error) {
	var s domain.UserSeed
	err := r.db.GetContext(ctx, &s, `SELECT * FROM user_seeds WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserSeedNotFound
		}
		return nil, fmt.Errorf("seed_repo.GetUserSeed: %w", err)
	}
	return &s, nil
}

// CreateUserSeed inserts the initial UserSeed row for a user.
func (r *SeedRepository) CreateUserSeed(ctx context.Context, s *domain.UserSeed) error {
	query := `
		INSERT INTO user_seeds (id, user_id, client_seed, nonce, created_at, updated_at)
		VALUES (:id, :user_id, :client_seed, :nonce, now(), now())`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return fmt.Errorf("seed_repo.CreateUserSeed: %w", err)
	}
	return nil
}

// NextNonce atomically increments and returns a user's nonce, inside the
// caller's transaction. Nonce increments unconditionally once per settled
// roll and never on any other event.
func (r *SeedRepository) NextNonce(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int64, error) {
	var next int64
	err := tx.GetContext(ctx, &next, `
		UPDATE user_seeds SET nonce = nonce + 1, updated_at = now()
		WHERE user_id = $1
		RETURNING nonce`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("seed_repo.NextNonce: %w", err)
	}
	return next, nil
}
