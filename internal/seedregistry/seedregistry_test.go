package seedregistry_test

import (
	"context"
	"testing"
	"time"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/fairness"
	"github.com/evetabi/prediction/internal/seedregistry"
	"github.com/google/uuid"
)

// fakeStore is an in-memory Store for exercising Service without a database.
type fakeStore struct {
	byDate map[string]*domain.ServerSeed
}

func newFakeStore() *fakeStore {
	return &fakeStore{byDate: make(map[string]*domain.ServerSeed)}
}

func (f *fakeStore) GetByDate(ctx context.Context, seedDate string) (*domain.ServerSeed, error) {
	s, ok := f.byDate[seedDate]
	if !ok {
		return nil, domain.ErrSeedNotFound
	}
	return s, nil
}

func (f *fakeStore) Create(ctx context.Context, s *domain.ServerSeed) error {
	if _, exists := f.byDate[s.SeedDate]; exists {
		return domain.ErrSeedAlreadyExists
	}
	f.byDate[s.SeedDate] = s
	return nil
}

func (f *fakeStore) ListByDateRange(ctx context.Context, from, to string) ([]domain.ServerSeed, error) {
	out := make([]domain.ServerSeed, 0, len(f.byDate))
	for date, s := range f.byDate {
		if date >= from && date <= to {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) Delete(ctx context.Context, id uuid.UUID) error {
	for date, s := range f.byDate {
		if s.ID == id {
			delete(f.byDate, date)
			return nil
		}
	}
	return domain.ErrSeedNotFound
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// TestGetOrCreateTodayIsIdempotent verifies that calling GetOrCreateToday
// twice on the same day returns the same seed rather than regenerating it —
// a fresh seed every call would let a bettor influence which seed governs
// their roll by timing requests.
func TestGetOrCreateTodayIsIdempotent(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	svc := seedregistry.NewService(newFakeStore(), fairness.GenerateServerSeed, fixedNow(now))

	first, err := svc.GetOrCreateToday(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.GetOrCreateToday(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID != second.ID || first.ServerSeed != second.ServerSeed {
		t.Error("GetOrCreateToday should return the same seed within the same day")
	}
	if first.ServerSeedHash != fairness.HashSeed(first.ServerSeed) {
		t.Error("server_seed_hash must match sha256(server_seed)")
	}
}

// TestAdminCreateRejectsNonFutureDates verifies the calendar's future-only
// write gate: today and past dates can never be created.
func TestAdminCreateRejectsNonFutureDates(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	svc := seedregistry.NewService(newFakeStore(), fairness.GenerateServerSeed, fixedNow(now))

	if _, err := svc.AdminCreate(context.Background(), "2026-07-31"); err != domain.ErrSeedDateNotFuture {
		t.Errorf("expected ErrSeedDateNotFuture for today's date, got %v", err)
	}
	if _, err := svc.AdminCreate(context.Background(), "2026-07-01"); err != domain.ErrSeedDateNotFuture {
		t.Errorf("expected ErrSeedDateNotFuture for a past date, got %v", err)
	}
	if _, err := svc.AdminCreate(context.Background(), "2026-08-01"); err != nil {
		t.Errorf("expected a future date to be accepted, got %v", err)
	}
}

// TestPublicViewRevealsOnlyPastSeeds verifies the commitment boundary: only
// seeds dated strictly before today disclose their raw server_seed.
func TestPublicViewRevealsOnlyPastSeeds(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.byDate["2026-07-30"] = &domain.ServerSeed{ID: uuid.New(), SeedDate: "2026-07-30", ServerSeed: "past-seed", ServerSeedHash: fairness.HashSeed("past-seed")}
	store.byDate["2026-07-31"] = &domain.ServerSeed{ID: uuid.New(), SeedDate: "2026-07-31", ServerSeed: "today-seed", ServerSeedHash: fairness.HashSeed("today-seed")}

	svc := seedregistry.NewService(store, fairness.GenerateServerSeed, fixedNow(now))
	calendar, err := svc.PublicView(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calendar.Today != "2026-07-31" {
		t.Errorf("today = %s, want 2026-07-31", calendar.Today)
	}
	if calendar.ThreeDaysLater != "2026-08-03" {
		t.Errorf("three_days_later = %s, want 2026-08-03", calendar.ThreeDaysLater)
	}

	for _, v := range calendar.Seeds {
		isPast := v.SeedDate == "2026-07-30"
		if isPast && v.ServerSeed == nil {
			t.Errorf("expected past seed %s to reveal its raw seed", v.SeedDate)
		}
		if !isPast && v.ServerSeed != nil {
			t.Errorf("expected today's seed %s to withhold its raw seed", v.SeedDate)
		}
	}
}

// TestPublicViewExcludesSeedsBeyondWindow verifies the window bound: a seed
// dated further in the past than [today-window] or further in the future
// than [today+3] is never returned, even though it exists in the store.
func TestPublicViewExcludesSeedsBeyondWindow(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.byDate["2026-07-01"] = &domain.ServerSeed{ID: uuid.New(), SeedDate: "2026-07-01", ServerSeed: "too-old", ServerSeedHash: fairness.HashSeed("too-old")}
	store.byDate["2026-07-30"] = &domain.ServerSeed{ID: uuid.New(), SeedDate: "2026-07-30", ServerSeed: "in-window", ServerSeedHash: fairness.HashSeed("in-window")}
	store.byDate["2026-08-10"] = &domain.ServerSeed{ID: uuid.New(), SeedDate: "2026-08-10", ServerSeed: "future-secret", ServerSeedHash: fairness.HashSeed("future-secret")}

	svc := seedregistry.NewService(store, fairness.GenerateServerSeed, fixedNow(now))
	calendar, err := svc.PublicView(context.Background(), 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := make(map[string]bool)
	for _, v := range calendar.Seeds {
		seen[v.SeedDate] = true
	}
	if !seen["2026-07-30"] {
		t.Error("expected in-window seed to be present")
	}
	if seen["2026-07-01"] {
		t.Error("expected seed older than the window to be excluded")
	}
	if seen["2026-08-10"] {
		t.Error("expected future seed beyond today+3 to be excluded — it must not leak")
	}
}
