package payout_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/explorer"
	"github.com/evetabi/prediction/internal/payout"
)

type fakeBetStore struct{}

func (fakeBetStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Bet, error) { return nil, nil }
func (fakeBetStore) MarkPaid(ctx context.Context, betID uuid.UUID, payoutTxid *string) error {
	return nil
}
func (fakeBetStore) MarkFailed(ctx context.Context, betID uuid.UUID) error { return nil }

type fakeDetectedTxStore struct{}

func (fakeDetectedTxStore) GetByTxid(ctx context.Context, txid string) (*domain.DetectedTransaction, error) {
	return nil, domain.ErrDetectedTxNotFound
}

type fakeUserStore struct{ address string }

func (f fakeUserStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return &domain.User{ID: id, Address: f.address}, nil
}

type fakePayoutStore struct {
	created []*domain.Payout
	failed  []string
}

func (f *fakePayoutStore) Create(ctx context.Context, p *domain.Payout) error {
	f.created = append(f.created, p)
	return nil
}
func (f *fakePayoutStore) GetByBetID(ctx context.Context, betID uuid.UUID) (*domain.Payout, error) {
	return nil, domain.ErrPayoutNotFound
}
func (f *fakePayoutStore) ListRetryable(ctx context.Context, maxRetries, limit int) ([]*domain.Payout, error) {
	return nil, nil
}
func (f *fakePayoutStore) ListBroadcast(ctx context.Context, limit int) ([]*domain.Payout, error) {
	return nil, nil
}
func (f *fakePayoutStore) MarkBroadcast(ctx context.Context, id uuid.UUID, txid string, networkFee int64) error {
	return nil
}
func (f *fakePayoutStore) MarkConfirmed(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakePayoutStore) RecordAttemptFailure(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.failed = append(f.failed, errMsg)
	return nil
}
func (f *fakePayoutStore) MarkFailed(ctx context.Context, id uuid.UUID) error { return nil }

// fakeWalletResolver never needs to sign anything in the empty-UTXO test —
// it records whether SetDepleted was called and with what value.
type fakeWalletResolver struct {
	depletedCalls []bool
}

func (f *fakeWalletResolver) WithSigningKey(wallet *domain.VaultWallet, fn func(wif []byte) error) error {
	return fn([]byte("unused"))
}
func (f *fakeWalletResolver) RecordPayout(ctx context.Context, id uuid.UUID, amount int64) error {
	return nil
}
func (f *fakeWalletResolver) SetDepleted(ctx context.Context, id uuid.UUID, depleted bool) error {
	f.depletedCalls = append(f.depletedCalls, depleted)
	return nil
}

type fakeExplorerClient struct {
	utxos []explorer.Utxo
	err   error
}

func (f *fakeExplorerClient) UtxosOf(ctx context.Context, address string) ([]explorer.Utxo, error) {
	return f.utxos, f.err
}
func (f *fakeExplorerClient) Broadcast(ctx context.Context, rawHex string) (string, error) {
	return "", errors.New("not reached")
}

// TestProcessWinningBetFlagsVaultDepletedOnEmptyUtxos verifies that a payout
// attempt finding no usable UTXOs for its vault flags that vault depleted,
// not just records a retryable failure.
func TestProcessWinningBetFlagsVaultDepletedOnEmptyUtxos(t *testing.T) {
	wallets := &fakeWalletResolver{}
	payouts := &fakePayoutStore{}
	engine := payout.New(
		fakeBetStore{},
		fakeDetectedTxStore{},
		payouts,
		wallets,
		fakeUserStore{address: "bc1qplayer"},
		&fakeExplorerClient{utxos: nil},
		payout.Config{MaxRetries: 3},
	)

	isWin := true
	bet := &domain.Bet{
		ID:           uuid.New(),
		IsWin:        &isWin,
		PayoutAmount: 5000,
		Status:       domain.BetStatusConfirmed,
		DepositTxid:  "deadbeef",
	}
	vault := &domain.VaultWallet{ID: uuid.New(), Address: "bc1qvault"}

	p, err := engine.ProcessWinningBet(context.Background(), bet, vault, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p == nil {
		t.Fatal("expected a payout record to be created even though the attempt failed")
	}

	if len(wallets.depletedCalls) != 1 || !wallets.depletedCalls[0] {
		t.Fatalf("expected SetDepleted(vault, true) to be called once, got %v", wallets.depletedCalls)
	}
	if len(payouts.failed) != 1 {
		t.Fatalf("expected the attempt failure to be recorded, got %d", len(payouts.failed))
	}
}

// TestProcessWinningBetDoesNotFlagDepletedOnExplorerError verifies that a
// transient explorer error (as opposed to a genuinely empty UTXO set) never
// flags the vault depleted.
func TestProcessWinningBetDoesNotFlagDepletedOnExplorerError(t *testing.T) {
	wallets := &fakeWalletResolver{}
	payouts := &fakePayoutStore{}
	engine := payout.New(
		fakeBetStore{},
		fakeDetectedTxStore{},
		payouts,
		wallets,
		fakeUserStore{address: "bc1qplayer"},
		&fakeExplorerClient{err: errors.New("explorer unreachable")},
		payout.Config{MaxRetries: 3},
	)

	isWin := true
	bet := &domain.Bet{
		ID:           uuid.New(),
		IsWin:        &isWin,
		PayoutAmount: 5000,
		Status:       domain.BetStatusConfirmed,
		DepositTxid:  "deadbeef",
	}
	vault := &domain.VaultWallet{ID: uuid.New(), Address: "bc1qvault"}

	if _, err := engine.ProcessWinningBet(context.Background(), bet, vault, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(wallets.depletedCalls) != 0 {
		t.Fatalf("expected SetDepleted to never be called on a transient explorer error, got %v", wallets.depletedCalls)
	}
}

