// Package seedregistry manages the one-ServerSeed-per-calendar-date
// commitment scheme: a seed's hash is published the moment it is created,
// and the raw seed itself is only ever disclosed once its date has passed.
package seedregistry

import (
	"context"
	"fmt"
	"time"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/fairness"
	"github.com/google/uuid"
)

// Store is the minimal persistence surface Service needs. Implemented by
// repository.SeedRepository.
type Store interface {
	GetByDate(ctx context.Context, seedDate string) (*domain.ServerSeed, error)
	Create(ctx context.Context, s *domain.ServerSeed) error
	ListByDateRange(ctx context.Context, from, to string) ([]domain.ServerSeed, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SeedSource generates cryptographically secure random server seeds. In
// production this is crypto/rand; tests can substitute a fixed source.
type SeedSource func() (string, error)

// Service is the Seed Registry.
type Service struct {
	store Store
	gen   SeedSource
	now   func() time.Time
}

// NewService builds a seedregistry Service.
func NewService(store Store, gen SeedSource, now func() time.Time) *Service {
	return &Service{store: store, gen: gen, now: now}
}

// GetOrCreateToday returns today's ServerSeed, generating and persisting one
// on its first call of the day. Concurrent callers racing to create today's
// seed are resolved by the unique constraint on seed_date: the loser simply
// re-fetches the winner's row.
func (s *Service) GetOrCreateToday(ctx context.Context) (*domain.ServerSeed, error) {
	today := s.now().UTC().Format("2006-01-02")

	seed, err := s.store.GetByDate(ctx, today)
	if err == nil {
		return seed, nil
	}
	if err != domain.ErrSeedNotFound {
		return nil, fmt.Errorf("seedregistry.GetOrCreateToday: %w", err)
	}

	raw, err := s.gen()
	if err != nil {
		return nil, fmt.Errorf("seedregistry.GetOrCreateToday: generate seed: %w", err)
	}
	seed = &domain.ServerSeed{
		ID:             uuid.New(),
		SeedDate:       today,
		ServerSeed:     raw,
		ServerSeedHash: fairness.HashSeed(raw),
		BetCount:       0,
		CreatedAt:      s.now(),
	}
	if err := s.store.Create(ctx, seed); err != nil {
		if err == domain.ErrSeedAlreadyExists {
			return s.store.GetByDate(ctx, today)
		}
		return nil, fmt.Errorf("seedregistry.GetOrCreateToday: %w", err)
	}
	return seed, nil
}

// publicViewForwardDays is the fixed forward edge of the public calendar
// window: today plus the next 3 days' published hashes, regardless of how
// far back window reaches.
const publicViewForwardDays = 3

// PublicView renders the ServerSeeds in [today-window, today+3] as their
// public-facing form, revealing the raw seed only for dates strictly before
// today — the fairness calendar a player uses to audit past rolls without
// compromising today's still-active commitment or leaking seeds scheduled
// further out than the published window.
func (s *Service) PublicView(ctx context.Context, window int) (domain.SeedCalendarView, error) {
	if window < 0 {
		window = 0
	}
	now := s.now().UTC()
	today := now.Format("2006-01-02")
	from := now.AddDate(0, 0, -window).Format("2006-01-02")
	to := now.AddDate(0, 0, publicViewForwardDays).Format("2006-01-02")

	seeds, err := s.store.ListByDateRange(ctx, from, to)
	if err != nil {
		return domain.SeedCalendarView{}, fmt.Errorf("seedregistry.PublicView: %w", err)
	}

	views := make([]domain.SeedPublicView, 0, len(seeds))
	for i := range seeds {
		isPast := seeds[i].SeedDate < today
		views = append(views, seeds[i].ToPublicView(isPast))
	}
	return domain.SeedCalendarView{
		Seeds:          views,
		Today:          today,
		ThreeDaysLater: to,
	}, nil
}

// adminListFrom is an effectively-unbounded lower date for the admin
// calendar, which (unlike the public view) must show every scheduled
// future seed, not just the next three days.
const adminListFrom = "0000-01-01"

// adminListTo is an effectively-unbounded upper date for the admin calendar.
const adminListTo = "9999-12-31"

// AdminListAll renders every known ServerSeed, past and future, for the
// admin calendar — unlike PublicView it is not bounded to [today-N, today+3]
// since the admin surface manages future-dated seeds directly.
func (s *Service) AdminListAll(ctx context.Context) ([]domain.SeedPublicView, error) {
	seeds, err := s.store.ListByDateRange(ctx, adminListFrom, adminListTo)
	if err != nil {
		return nil, fmt.Errorf("seedregistry.AdminListAll: %w", err)
	}
	today := s.now().UTC().Format("2006-01-02")

	views := make([]domain.SeedPublicView, 0, len(seeds))
	for i := range seeds {
		isPast := seeds[i].SeedDate < today
		views = append(views, seeds[i].ToPublicView(isPast))
	}
	return views, nil
}

// AdminCreate creates a ServerSeed for a future date. The calendar is
// future-only writeable: today's and past dates can never be created or
// deleted through this path, since their commitment (or lack of one) is
// already load-bearing.
func (s *Service) AdminCreate(ctx context.Context, seedDate string) (*domain.ServerSeed, error) {
	today := s.now().UTC().Format("2006-01-02")
	if seedDate <= today {
		return nil, domain.ErrSeedDateNotFuture
	}

	raw, err := s.gen()
	if err != nil {
		return nil, fmt.Errorf("seedregistry.AdminCreate: generate seed: %w", err)
	}
	seed := &domain.ServerSeed{
		ID:             uuid.New(),
		SeedDate:       seedDate,
		ServerSeed:     raw,
		ServerSeedHash: fairness.HashSeed(raw),
		BetCount:       0,
		CreatedAt:      s.now(),
	}
	if err := s.store.Create(ctx, seed); err != nil {
		return nil, fmt.Errorf("seedregistry.AdminCreate: %w", err)
	}
	return seed, nil
}

// AdminDelete removes a future-dated ServerSeed. Seeds for today or the past
// can never be deleted: today's may already be bound to in-flight bets, and
// past ones are the permanent audit trail.
func (s *Service) AdminDelete(ctx context.Context, id uuid.UUID, seedDate string) error {
	today := s.now().UTC().Format("2006-01-02")
	if seedDate <= today {
		return domain.ErrSeedDateNotFuture
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("seedregistry.AdminDelete: %w", err)
	}
	return nil
}
