package explorer_test

import (
	"testing"

	"github.com/evetabi/prediction/internal/explorer"
)

func blockHeight(h int64) *int64 { return &h }

func TestTxDataConfirmations(t *testing.T) {
	cases := []struct {
		name string
		tx   explorer.TxData
		tip  int64
		want int
	}{
		{
			name: "unconfirmed",
			tx:   explorer.TxData{Status: explorer.TxStatus{Confirmed: false}},
			tip:  800000,
			want: 0,
		},
		{
			name: "confirmed missing block height",
			tx:   explorer.TxData{Status: explorer.TxStatus{Confirmed: true, BlockHeight: nil}},
			tip:  800000,
			want: 0,
		},
		{
			name: "just confirmed in tip block",
			tx:   explorer.TxData{Status: explorer.TxStatus{Confirmed: true, BlockHeight: blockHeight(800000)}},
			tip:  800000,
			want: 1,
		},
		{
			name: "several confirmations deep",
			tx:   explorer.TxData{Status: explorer.TxStatus{Confirmed: true, BlockHeight: blockHeight(799995)}},
			tip:  800000,
			want: 6,
		},
		{
			name: "tip stale relative to block height",
			tx:   explorer.TxData{Status: explorer.TxStatus{Confirmed: true, BlockHeight: blockHeight(800005)}},
			tip:  800000,
			want: 0,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.tx.Confirmations(tc.tip); got != tc.want {
				t.Errorf("Confirmations(%d) = %d, want %d", tc.tip, got, tc.want)
			}
		})
	}
}

func TestTxDataFirstInputAddress(t *testing.T) {
	addr := "bc1qexampleaddress"
	tx := explorer.TxData{
		Vin: []explorer.TxInput{
			{Prevout: &explorer.TxOutput{ScriptPubKeyAddress: addr, Value: 10000}},
		},
	}
	got := tx.FirstInputAddress()
	if got == nil || *got != addr {
		t.Fatalf("FirstInputAddress() = %v, want %q", got, addr)
	}
}

func TestTxDataFirstInputAddressMissingPrevout(t *testing.T) {
	tx := explorer.TxData{Vin: []explorer.TxInput{{Prevout: nil}}}
	if got := tx.FirstInputAddress(); got != nil {
		t.Fatalf("FirstInputAddress() = %v, want nil", got)
	}
}

func TestTxDataFirstInputAddressNoInputs(t *testing.T) {
	tx := explorer.TxData{}
	if got := tx.FirstInputAddress(); got != nil {
		t.Fatalf("FirstInputAddress() = %v, want nil", got)
	}
}
