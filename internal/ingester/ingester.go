// Package ingester consumes parsed Explorer WebSocket frames (and REST
// fallback polls) and turns them into DepositEvents for any output paying a
// monitored vault address. Grounded on blockchain.py's TransactionDetector /
// MempoolWebSocket frame-handling rules.
package ingester

import (
	"container/list"
	"context"
	"log/slog"
	"sync"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/explorer"
)

// TxDetailsFetcher is the subset of explorer.Client the Ingester needs,
// declared at point-of-use so tests can supply a fake.
type TxDetailsFetcher interface {
	TxDetails(ctx context.Context, txid string) (*explorer.TxData, error)
}

// seenSet is a bounded, insertion-ordered set of txids: new entries evict the
// oldest once capacity is reached, matching the "bounded set" the spec calls
// for without pulling in an external LRU dependency for something this small.
type seenSet struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element),
	}
}

func (s *seenSet) contains(txid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[txid]
	return ok
}

func (s *seenSet) add(txid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[txid]; ok {
		return
	}
	el := s.order.PushBack(txid)
	s.index[txid] = el
	for s.order.Len() > s.capacity {
		oldest := s.order.Front()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.index, oldest.Value.(string))
	}
}

// Ingester maintains the monitored address set and deduplicates detections
// across overlapping frame types before handing a DepositEvent downstream.
type Ingester struct {
	fetcher TxDetailsFetcher
	tipFunc func() int64 // best-known chain tip height, for confirmation counting

	mu        sync.RWMutex
	monitored map[string]struct{}

	seen *seenSet

	onDeposit func(domain.DepositEvent)
}

// New builds an Ingester. tipFunc supplies the current best-known block
// height for confirmation counting; onDeposit is invoked once per detected
// deposit to a monitored address, synchronously on the caller's goroutine.
func New(fetcher TxDetailsFetcher, tipFunc func() int64, seenCapacity int, onDeposit func(domain.DepositEvent)) *Ingester {
	return &Ingester{
		fetcher:   fetcher,
		tipFunc:   tipFunc,
		monitored: make(map[string]struct{}),
		seen:      newSeenSet(seenCapacity),
		onDeposit: onDeposit,
	}
}

// Watch adds addr to the monitored set. Safe to call concurrently with frame
// handling; a read-biased lock protects the set since handling reads it far
// more often than admin/startup code writes it.
func (in *Ingester) Watch(addr string) {
	in.mu.Lock()
	in.monitored[addr] = struct{}{}
	in.mu.Unlock()
}

// WatchAll adds every address in addrs to the monitored set, for startup
// population from the vault's active wallet list.
func (in *Ingester) WatchAll(addrs []string) {
	in.mu.Lock()
	for _, a := range addrs {
		in.monitored[a] = struct{}{}
	}
	in.mu.Unlock()
}

func (in *Ingester) isMonitored(addr string) bool {
	in.mu.RLock()
	defer in.mu.RUnlock()
	_, ok := in.monitored[addr]
	return ok
}

// HandleFrame dispatches one parsed Explorer frame per §4.3's rules.
func (in *Ingester) HandleFrame(ctx context.Context, f explorer.Frame) {
	switch {
	case f.Transaction != nil:
		in.checkOutputs(f.Transaction, "ws")

	case len(f.AddressTransactions) > 0:
		for _, txid := range f.AddressTransactions {
			if in.seen.contains(txid) {
				continue
			}
			in.fetchAndCheck(ctx, txid)
		}
	}
}

// PollAddress is the REST fallback path: fetch recent transactions for addr
// directly, for use when the WebSocket reader is degraded or during startup
// backfill.
func (in *Ingester) PollAddress(ctx context.Context, client interface {
	AddressTxs(ctx context.Context, address string) ([]explorer.TxData, error)
}, addr string) {
	txs, err := client.AddressTxs(ctx, addr)
	if err != nil {
		slog.Warn("ingester: REST fallback poll failed", "address", addr, "error", err)
		return
	}
	for i := range txs {
		if in.seen.contains(txs[i].Txid) {
			continue
		}
		in.checkOutputs(&txs[i], "rest")
	}
}

func (in *Ingester) fetchAndCheck(ctx context.Context, txid string) {
	tx, err := in.fetcher.TxDetails(ctx, txid)
	if err != nil {
		slog.Warn("ingester: fetch tx details failed", "txid", txid, "error", err)
		return
	}
	in.checkOutputs(tx, "ws")
}

func (in *Ingester) checkOutputs(tx *explorer.TxData, source string) {
	if tx == nil || tx.Txid == "" {
		return
	}
	if in.seen.contains(tx.Txid) {
		return
	}

	for _, out := range tx.Vout {
		if out.ScriptPubKeyAddress == "" || out.Value <= 0 {
			continue
		}
		if !in.isMonitored(out.ScriptPubKeyAddress) {
			continue
		}

		tip := int64(0)
		if in.tipFunc != nil {
			tip = in.tipFunc()
		}

		event := domain.DepositEvent{
			Txid:          tx.Txid,
			ToAddress:     out.ScriptPubKeyAddress,
			Amount:        out.Value,
			FromAddress:   tx.FirstInputAddress(),
			Fee:           tx.Fee,
			Confirmations: tx.Confirmations(tip),
			DetectedBy:    source,
		}
		if tx.Status.BlockHeight != nil {
			event.BlockHeight = tx.Status.BlockHeight
		}
		if tx.Status.BlockHash != nil {
			event.BlockHash = tx.Status.BlockHash
		}

		in.seen.add(tx.Txid)
		slog.Info("ingester: deposit detected", "txid", tx.Txid, "to", out.ScriptPubKeyAddress, "amount", out.Value)
		if in.onDeposit != nil {
			in.onDeposit(event)
		}
		// One monitored output is enough to emit the deposit; a vault never
		// pays itself, so there is at most one matching output per tx.
		return
	}
}

// ApproxBlockTip is a minimal tip-height cache the Ingester can use when the
// caller has no more specific source of chain height; it is refreshed
// periodically by whatever owns the Explorer Client.
type ApproxBlockTip struct {
	mu     sync.RWMutex
	height int64
}

// Set updates the cached tip height.
func (t *ApproxBlockTip) Set(height int64) {
	t.mu.Lock()
	t.height = height
	t.mu.Unlock()
}

// Get returns the cached tip height.
func (t *ApproxBlockTip) Get() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.height
}
