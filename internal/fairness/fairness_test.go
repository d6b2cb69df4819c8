package fairness_test

import (
	"testing"

	"github.com/evetabi/prediction/internal/fairness"
)

// TestCalculateRollIsDeterministic verifies the central invariant of the
// whole system: the same (server_seed, client_seed, nonce) triple always
// produces the same roll, and a single bit of difference anywhere in the
// input changes it.
func TestCalculateRollIsDeterministic(t *testing.T) {
	roll1 := fairness.CalculateRoll("serverseed123", "bc1qclientseed", 0)
	roll2 := fairness.CalculateRoll("serverseed123", "bc1qclientseed", 0)
	if roll1 != roll2 {
		t.Errorf("roll not deterministic: %v != %v", roll1, roll2)
	}

	roll3 := fairness.CalculateRoll("serverseed123", "bc1qclientseed", 1)
	if roll1 == roll3 {
		t.Errorf("changing nonce should (almost certainly) change the roll")
	}

	if roll1 < 0 || roll1 > 99.99 {
		t.Errorf("roll %v out of range [0.00, 99.99]", roll1)
	}
}

// TestVerifyRoll checks that VerifyRoll accepts the true roll and rejects a
// forged one.
func TestVerifyRoll(t *testing.T) {
	roll := fairness.CalculateRoll("seed-a", "seed-b", 42)
	if !fairness.VerifyRoll("seed-a", "seed-b", 42, roll) {
		t.Error("expected true roll to verify")
	}
	if fairness.VerifyRoll("seed-a", "seed-b", 42, roll+10) {
		t.Error("expected forged roll to fail verification")
	}
}

// TestCalculateWinChance checks the house-edge-adjusted win chance formula.
//
//	Scenario: multiplier = 2.0x, house_edge = 2%
//	  win_chance = (100 - 2) / 2.0 = 49.0
func TestCalculateWinChance(t *testing.T) {
	chance := fairness.CalculateWinChance(2.0, 0.02)
	if chance != 49.0 {
		t.Errorf("win chance = %v, want 49.0", chance)
	}
}

// TestCalculateMultiplierIsInverse checks that CalculateMultiplier inverts
// CalculateWinChance for a representative value.
func TestCalculateMultiplierIsInverse(t *testing.T) {
	mult, err := fairness.CalculateMultiplier(49.0, 0.02)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mult != 2.0 {
		t.Errorf("multiplier = %v, want 2.0", mult)
	}

	if _, err := fairness.CalculateMultiplier(0, 0.02); err == nil {
		t.Error("expected error for win_chance=0")
	}
	if _, err := fairness.CalculateMultiplier(100, 0.02); err == nil {
		t.Error("expected error for win_chance=100")
	}
}

// TestIsWinningRoll checks the win predicate at its boundary: a roll exactly
// equal to win_chance is a loss (strict less-than).
func TestIsWinningRoll(t *testing.T) {
	if !fairness.IsWinningRoll(48.99, 49.0) {
		t.Error("roll just under win_chance should win")
	}
	if fairness.IsWinningRoll(49.0, 49.0) {
		t.Error("roll equal to win_chance should lose")
	}
	if fairness.IsWinningRoll(49.01, 49.0) {
		t.Error("roll just over win_chance should lose")
	}
}

// TestCreateBetResultWin exercises the full roll-to-payout pipeline with a
// server/client seed pair known to produce a winning roll at a generous
// win chance, confirming payout and profit arithmetic end to end. winChance
// is passed directly, as the bet's own snapshotted chance would be — not
// re-derived from multiplier/houseEdge.
func TestCreateBetResultWin(t *testing.T) {
	// win_chance=97.03, virtually guaranteeing a win for any seed pair.
	result := fairness.CreateBetResult("house-seed", "player-address", 7, 10_000, 1.01, 97.03)

	if !result.IsWin {
		t.Fatalf("expected a win at win_chance=%.2f, roll=%.2f", result.WinChance, result.Roll)
	}
	wantPayout := int64(float64(10_000) * 1.01)
	if result.Payout != wantPayout {
		t.Errorf("payout = %d, want %d", result.Payout, wantPayout)
	}
	if result.Profit != result.Payout-10_000 {
		t.Errorf("profit = %d, want %d", result.Profit, result.Payout-10_000)
	}
}

// TestCreateBetResultLoss exercises the loss path with a win chance of
// effectively zero, guaranteeing every roll loses.
func TestCreateBetResultLoss(t *testing.T) {
	result := fairness.CreateBetResult("house-seed", "player-address", 7, 10_000, 98.0, 0.01)

	if result.IsWin {
		t.Fatalf("expected a loss at win_chance=%.2f, roll=%.2f", result.WinChance, result.Roll)
	}
	if result.Payout != 0 {
		t.Errorf("payout = %d, want 0", result.Payout)
	}
	if result.Profit != -10_000 {
		t.Errorf("profit = %d, want -10000", result.Profit)
	}
}

// TestCreateBetResultUsesChanceNotDerivedMultiplier verifies CreateBetResult
// decides the win/loss using the winChance argument directly, never
// re-deriving it from multiplier — an admin-set chance that doesn't equal
// (100-edge)/multiplier must still decide the win correctly (spec.md §4.4).
func TestCreateBetResultUsesChanceNotDerivedMultiplier(t *testing.T) {
	roll := fairness.CalculateRoll("house-seed", "player-address", 7)

	// A chance just above the roll must win regardless of what multiplier
	// would "normally" imply for that chance.
	winning := fairness.CreateBetResult("house-seed", "player-address", 7, 10_000, 50.0, roll+0.01)
	if !winning.IsWin {
		t.Fatalf("expected a win when winChance (%.2f) is just above roll (%.2f)", roll+0.01, roll)
	}

	// The same multiplier with a chance just below the roll must lose.
	losing := fairness.CreateBetResult("house-seed", "player-address", 7, 10_000, 50.0, roll)
	if losing.IsWin {
		t.Fatalf("expected a loss when winChance (%.2f) is not above roll (%.2f)", roll, roll)
	}
}

// TestGenerateVerificationData confirms the verification payload reports
// overall_valid=true for a genuine seed/roll pair and false when the hash
// commitment doesn't match the revealed seed.
func TestGenerateVerificationData(t *testing.T) {
	seed := "revealed-server-seed"
	hash := fairness.HashSeed(seed)
	roll := fairness.CalculateRoll(seed, "client-seed", 3)

	data := fairness.GenerateVerificationData(seed, hash, "client-seed", 3, roll)
	if !data.OverallValid {
		t.Error("expected overall_valid=true for a genuine seed/roll pair")
	}

	tampered := fairness.GenerateVerificationData(seed, "0000", "client-seed", 3, roll)
	if tampered.OverallValid {
		t.Error("expected overall_valid=false when server_seed_hash doesn't match")
	}
}

// TestValidateBetParams checks the aggregate bounds gate used before a bet is
// materialized.
func TestValidateBetParams(t *testing.T) {
	// within all bounds
	if err := fairness.ValidateBetParams(10_000, 2.0, 600, 1_000_000, 1.1, 98.0, 0.02); err != nil {
		t.Errorf("expected valid params to pass, got %v", err)
	}
	// amount below minimum
	if err := fairness.ValidateBetParams(100, 2.0, 600, 1_000_000, 1.1, 98.0, 0.02); err == nil {
		t.Error("expected error for bet amount below minimum")
	}
	// multiplier above maximum
	if err := fairness.ValidateBetParams(10_000, 200, 600, 1_000_000, 1.1, 98.0, 0.02); err == nil {
		t.Error("expected error for multiplier above maximum")
	}
}
