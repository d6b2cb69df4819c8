package explorer

import "testing"

// TestParseFrameAddressTransactions covers the address-transactions shapes
// already supported: bare txid string and single tx object.
func TestParseFrameAddressTransactions(t *testing.T) {
	f, err := parseFrame([]byte(`{"address-transactions": "abc123"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Ignored || len(f.AddressTransactions) != 1 || f.AddressTransactions[0] != "abc123" {
		t.Fatalf("got %+v", f)
	}

	f, err = parseFrame([]byte(`{"address-transactions": {"txid": "def456", "vout": []}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Ignored || f.Transaction == nil || f.Transaction.Txid != "def456" {
		t.Fatalf("got %+v", f)
	}
}

// TestParseFrameTopLevelTransaction covers the bare full-transaction-object
// shape pushed directly at the frame's top level, with no wrapper key —
// {"txid": ..., "vout": [...]}.
func TestParseFrameTopLevelTransaction(t *testing.T) {
	f, err := parseFrame([]byte(`{"txid": "top-level-tx", "vout": [{"scriptpubkey_address": "bc1qvault", "value": 5000}]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Ignored {
		t.Fatal("expected a top-level txid/vout frame to be recognized, not ignored")
	}
	if f.Transaction == nil || f.Transaction.Txid != "top-level-tx" {
		t.Fatalf("got %+v", f)
	}
	if len(f.Transaction.Vout) != 1 || f.Transaction.Vout[0].ScriptPubKeyAddress != "bc1qvault" {
		t.Fatalf("vout not parsed: %+v", f.Transaction.Vout)
	}
}

// TestParseFrameBulkTransactions covers the bulk id-list shape some networks
// push instead of address-specific frames: {"transactions": [{"txid": ...}, ...]}.
func TestParseFrameBulkTransactions(t *testing.T) {
	f, err := parseFrame([]byte(`{"transactions": [{"txid": "bulk1"}, {"txid": "bulk2"}, "bulk3"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Ignored {
		t.Fatal("expected a bulk transactions frame to be recognized, not ignored")
	}
	want := map[string]bool{"bulk1": true, "bulk2": true, "bulk3": true}
	if len(f.AddressTransactions) != len(want) {
		t.Fatalf("got txids %v, want %v", f.AddressTransactions, want)
	}
	for _, txid := range f.AddressTransactions {
		if !want[txid] {
			t.Errorf("unexpected txid %q", txid)
		}
	}
}

// TestParseFrameIgnoresControlFrames verifies that block/mempool-blocks and
// mempoolInfo frames are classified as ignored control frames rather than
// transaction-bearing ones.
func TestParseFrameIgnoresControlFrames(t *testing.T) {
	cases := []string{
		`{"blocks": [{"height": 800000}]}`,
		`{"mempool-blocks": [{"blockSize": 1000000}]}`,
		`{"mempoolInfo": {"size": 12345}}`,
	}
	for _, raw := range cases {
		f, err := parseFrame([]byte(raw))
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", raw, err)
		}
		if !f.Ignored {
			t.Errorf("expected %s to be ignored, got %+v", raw, f)
		}
	}
}

// TestParseFrameIgnoresUnknownShape verifies a frame matching none of the
// recognized shapes is ignored rather than erroring.
func TestParseFrameIgnoresUnknownShape(t *testing.T) {
	f, err := parseFrame([]byte(`{"action": "pong"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.Ignored {
		t.Errorf("expected unrecognized shape to be ignored, got %+v", f)
	}
}
