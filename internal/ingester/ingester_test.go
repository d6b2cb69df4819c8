package ingester_test

import (
	"context"
	"testing"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/explorer"
	"github.com/evetabi/prediction/internal/ingester"
)

type fakeFetcher struct {
	byTxid map[string]*explorer.TxData
}

func (f *fakeFetcher) TxDetails(ctx context.Context, txid string) (*explorer.TxData, error) {
	return f.byTxid[txid], nil
}

// TestHandleFrameEmitsDepositForMonitoredAddress verifies that an
// address-transactions frame naming an unseen txid results in exactly one
// DepositEvent once the transaction's outputs are checked against the
// monitored set.
func TestHandleFrameEmitsDepositForMonitoredAddress(t *testing.T) {
	const vaultAddr = "bc1qvault"
	fetcher := &fakeFetcher{byTxid: map[string]*explorer.TxData{
		"abc123": {
			Txid: "abc123",
			Vin:  []explorer.TxInput{{Prevout: &explorer.TxOutput{ScriptPubKeyAddress: "bc1qsender"}}},
			Vout: []explorer.TxOutput{{ScriptPubKeyAddress: vaultAddr, Value: 5000}},
		},
	}}

	var got []domain.DepositEvent
	in := ingester.New(fetcher, func() int64 { return 0 }, 100, func(e domain.DepositEvent) {
		got = append(got, e)
	})
	in.Watch(vaultAddr)

	in.HandleFrame(context.Background(), explorer.Frame{AddressTransactions: []string{"abc123"}})

	if len(got) != 1 {
		t.Fatalf("expected 1 deposit event, got %d", len(got))
	}
	if got[0].Amount != 5000 || got[0].ToAddress != vaultAddr {
		t.Errorf("unexpected event: %+v", got[0])
	}
	if got[0].FromAddress == nil || *got[0].FromAddress != "bc1qsender" {
		t.Errorf("expected from_address to be recovered from vin[0].prevout")
	}
}

// TestHandleFrameSuppressesDuplicates verifies that a txid already in the
// bounded seen set never fires a second DepositEvent, even if it arrives
// again via a differently-shaped frame.
func TestHandleFrameSuppressesDuplicates(t *testing.T) {
	const vaultAddr = "bc1qvault"
	tx := &explorer.TxData{
		Txid: "dup1",
		Vout: []explorer.TxOutput{{ScriptPubKeyAddress: vaultAddr, Value: 1000}},
	}
	fetcher := &fakeFetcher{byTxid: map[string]*explorer.TxData{"dup1": tx}}

	count := 0
	in := ingester.New(fetcher, func() int64 { return 0 }, 100, func(domain.DepositEvent) { count++ })
	in.Watch(vaultAddr)

	in.HandleFrame(context.Background(), explorer.Frame{AddressTransactions: []string{"dup1"}})
	in.HandleFrame(context.Background(), explorer.Frame{Transaction: tx})

	if count != 1 {
		t.Errorf("expected exactly 1 emission across overlapping frame types, got %d", count)
	}
}

// TestHandleFrameIgnoresUnmonitoredAddress verifies that a transaction paying
// an address not in the monitored set produces no event — a false-positive
// scenario the ingester must stay silent on.
func TestHandleFrameIgnoresUnmonitoredAddress(t *testing.T) {
	tx := &explorer.TxData{
		Txid: "notmine",
		Vout: []explorer.TxOutput{{ScriptPubKeyAddress: "bc1qsomeoneelse", Value: 1000}},
	}
	fetcher := &fakeFetcher{byTxid: map[string]*explorer.TxData{"notmine": tx}}

	count := 0
	in := ingester.New(fetcher, func() int64 { return 0 }, 100, func(domain.DepositEvent) { count++ })
	in.Watch("bc1qvault")

	in.HandleFrame(context.Background(), explorer.Frame{Transaction: tx})

	if count != 0 {
		t.Errorf("expected no emission for unmonitored address, got %d", count)
	}
}
