package domain_test

import (
	"testing"

	"github.com/evetabi/prediction/internal/domain"
)

// TestCalculatePayoutWin validates the payout/profit arithmetic for a winning
// bet, matching the provably-fair source exactly.
//
//	Scenario: bet_amount = 10 000 sats, multiplier = 2.0x, is_win = true
//	  payout = int(10000 * 2.0) = 20000
//	  profit = 20000 - 10000    = 10000
func TestCalculatePayoutWin(t *testing.T) {
	b := &domain.Bet{BetAmount: 10_000, Multiplier: 2.0}

	payout, profit := b.CalculatePayout(true)
	if payout != 20_000 {
		t.Errorf("payout = %d, want 20000", payout)
	}
	if profit != 10_000 {
		t.Errorf("profit = %d, want 10000", profit)
	}
}

// TestCalculatePayoutLoss validates the payout/profit arithmetic for a losing
// bet: payout is always zero, profit is always -bet_amount.
func TestCalculatePayoutLoss(t *testing.T) {
	b := &domain.Bet{BetAmount: 10_000, Multiplier: 2.0}

	payout, profit := b.CalculatePayout(false)
	if payout != 0 {
		t.Errorf("payout = %d, want 0", payout)
	}
	if profit != -10_000 {
		t.Errorf("profit = %d, want -10000", profit)
	}
}

// TestCalculatePayoutTruncates verifies payout truncates toward zero rather
// than rounding, matching the source's int(bet_amount * multiplier).
//
//	Scenario: bet_amount = 999 sats, multiplier = 1.5x
//	  raw    = 999 * 1.5 = 1498.5
//	  payout = 1498 (truncated, not rounded to 1499)
func TestCalculatePayoutTruncates(t *testing.T) {
	b := &domain.Bet{BetAmount: 999, Multiplier: 1.5}

	payout, profit := b.CalculatePayout(true)
	if payout != 1498 {
		t.Errorf("payout = %d, want 1498 (truncated)", payout)
	}
	if profit != 499 {
		t.Errorf("profit = %d, want 499", profit)
	}
}

// TestValidateChanceMultiplier checks the admin-time invariant: no vault
// wallet may offer a positive-expected-value bet.
//
//	Scenario: house_edge = 2%, ceiling = 98
//	  chance=49.5, multiplier=2   → 99.0  > 98 → rejected
//	  chance=49.0, multiplier=2   → 98.0 <= 98 → accepted
func TestValidateChanceMultiplier(t *testing.T) {
	if err := domain.ValidateChanceMultiplier(49.5, 2, 2.0); err == nil {
		t.Error("expected rejection for chance*multiplier > ceiling, got nil")
	}
	if err := domain.ValidateChanceMultiplier(49.0, 2, 2.0); err != nil {
		t.Errorf("expected acceptance at the ceiling boundary, got %v", err)
	}
	if err := domain.ValidateChanceMultiplier(0, 2, 2.0); err == nil {
		t.Error("expected rejection for chance=0")
	}
	if err := domain.ValidateChanceMultiplier(100, 2, 2.0); err == nil {
		t.Error("expected rejection for chance=100")
	}
}
