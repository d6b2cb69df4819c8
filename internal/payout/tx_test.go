package payout_test

import (
	"errors"
	"testing"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/explorer"
	"github.com/evetabi/prediction/internal/payout"
)

// TestSelectUtxosPrefersSingleFit verifies the first-fit rule: when any one
// UTXO alone covers the required amount, it is chosen over combining several
// smaller ones.
func TestSelectUtxosPrefersSingleFit(t *testing.T) {
	utxos := []explorer.Utxo{
		{Txid: "a", Value: 500},
		{Txid: "b", Value: 2000},
		{Txid: "c", Value: 300},
	}
	selected, err := payout.SelectUtxos(utxos, 1500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != 1 || selected[0].Txid != "b" {
		t.Errorf("expected single-UTXO fit on %q, got %+v", "b", selected)
	}
}

// TestSelectUtxosCombinesAllWhenNoSingleFit verifies the combine-all fallback
// when no single UTXO covers the requirement but their sum does.
func TestSelectUtxosCombinesAllWhenNoSingleFit(t *testing.T) {
	utxos := []explorer.Utxo{
		{Txid: "a", Value: 500},
		{Txid: "b", Value: 600},
		{Txid: "c", Value: 300},
	}
	selected, err := payout.SelectUtxos(utxos, 1200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(selected) != 3 {
		t.Errorf("expected all 3 UTXOs combined, got %d", len(selected))
	}
}

// TestSelectUtxosInsufficientFunds verifies the failure path when even the
// combined total falls short of the requirement.
func TestSelectUtxosInsufficientFunds(t *testing.T) {
	utxos := []explorer.Utxo{
		{Txid: "a", Value: 100},
		{Txid: "b", Value: 100},
	}
	_, err := payout.SelectUtxos(utxos, 1000)
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}
