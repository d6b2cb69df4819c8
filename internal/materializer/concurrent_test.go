package materializer_test

import (
	"sync"
	"sync/atomic"
	"testing"
)

// TestConcurrentRollGuard simulates N goroutines racing to roll the same bet
// — protected by a mutex, mirroring ApplyRoll's "WHERE roll_result IS NULL"
// guard at the database level. This test verifies the guard pattern compiles
// and passes -race; the real guarantee comes from the row-level predicate in
// repository.BetRepository.ApplyRoll, not from this mutex.
func TestConcurrentRollGuard(t *testing.T) {
	const workers = 50

	type betState struct {
		mu     sync.Mutex
		rolled bool
	}
	var (
		b       betState
		wins    int64
		blocked int64
		wg      sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			b.mu.Lock()
			defer b.mu.Unlock()

			if b.rolled {
				atomic.AddInt64(&blocked, 1)
				return
			}
			b.rolled = true
			atomic.AddInt64(&wins, 1)
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("exactly 1 goroutine should have rolled the bet, got %d", wins)
	}
	if blocked != workers-1 {
		t.Errorf("expected %d blocked rolls, got %d", workers-1, blocked)
	}
}

// TestConcurrentDepositDedup simulates N goroutines racing to materialize the
// same deposit txid — only one should win the insert; the rest must resolve
// to the winner's bet rather than creating duplicates. Mirrors
// bets_deposit_txid_key's unique-constraint guard, replicated here with an
// in-memory map keyed by txid so the race detector can confirm the pattern.
func TestConcurrentDepositDedup(t *testing.T) {
	const workers = 30
	const txid = "deadbeef"

	var (
		mu      sync.Mutex
		created int64
		dedup   map[string]int // txid -> bet "id" (goroutine index that won)
		wg      sync.WaitGroup
	)
	dedup = make(map[string]int)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			mu.Lock()
			defer mu.Unlock()

			if _, exists := dedup[txid]; exists {
				return // dedupe path: re-read the existing bet, create nothing
			}
			dedup[txid] = id
			atomic.AddInt64(&created, 1)
		}(i)
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("expected exactly 1 bet created for a shared deposit txid, got %d", created)
	}
	if len(dedup) != 1 {
		t.Errorf("expected exactly 1 distinct bet id across all racers, got %d", len(dedup))
	}
}
