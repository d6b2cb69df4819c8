package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/evetabi/prediction/internal/config"
	"github.com/gorilla/websocket"
)

// Frame is one parsed inbound WebSocket message, already classified by kind.
// The Mempool Ingester (internal/ingester) consumes these; this package never
// interprets their contents beyond JSON shape.
type Frame struct {
	// AddressTransactions holds txids reported by an "address-transactions"
	// frame for a tracked address, or by a bulk "transactions" id-list frame.
	AddressTransactions []string
	// Transaction holds a full transaction object embedded directly in the
	// frame (some networks push these instead of bare txids).
	Transaction *TxData
	// Ignored is true for frame kinds this system has no use for
	// ("mempool-blocks", "blocks", "mempoolInfo", and anything unrecognized).
	Ignored bool
}

// wireFrame mirrors the handful of top-level keys mempool.space's WebSocket
// protocol uses; unknown keys are simply absent and fall through to Ignored.
type wireFrame struct {
	AddressTransactions json.RawMessage `json:"address-transactions"`
	Transactions        json.RawMessage `json:"transactions"`
	Txid                string          `json:"txid"`
	MempoolBlocks       json.RawMessage `json:"mempool-blocks"`
	Blocks              json.RawMessage `json:"blocks"`
	MempoolInfo         json.RawMessage `json:"mempoolInfo"`
}

func parseFrame(raw []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(raw, &w); err != nil {
		return Frame{}, fmt.Errorf("explorer.parseFrame: %w", err)
	}

	if len(w.MempoolBlocks) > 0 || len(w.Blocks) > 0 || len(w.MempoolInfo) > 0 {
		return Frame{Ignored: true}, nil
	}

	// {"txid": ..., "vout": [...]}: a full transaction object pushed directly
	// at the frame's top level (the "track-mempool" feed shape), rather than
	// nested under "address-transactions".
	if w.Txid != "" {
		var tx TxData
		if err := json.Unmarshal(raw, &tx); err == nil && tx.Txid != "" {
			return Frame{Transaction: &tx}, nil
		}
	}

	// {"transactions": [{"txid": ...}, ...]}: the bulk id-list shape some
	// networks push instead of address-specific frames.
	if len(w.Transactions) > 0 {
		txids := parseTxidList(w.Transactions)
		return Frame{AddressTransactions: txids}, nil
	}

	if len(w.AddressTransactions) == 0 {
		return Frame{Ignored: true}, nil
	}

	// address-transactions arrives as a bare string txid, a single tx object,
	// or a list of either — a single tx object is passed through as
	// Transaction; the string and list shapes are normalized to a txid list,
	// whose full tx bodies the ingester fetches separately via REST.
	var asString string
	if err := json.Unmarshal(w.AddressTransactions, &asString); err == nil {
		return Frame{AddressTransactions: []string{asString}}, nil
	}

	var asTx TxData
	if err := json.Unmarshal(w.AddressTransactions, &asTx); err == nil && asTx.Txid != "" {
		return Frame{Transaction: &asTx}, nil
	}

	if txids := parseTxidList(w.AddressTransactions); len(txids) > 0 {
		return Frame{AddressTransactions: txids}, nil
	}

	return Frame{Ignored: true}, nil
}

// parseTxidList normalizes a JSON array of either bare string txids or full
// transaction objects into a flat list of txids.
func parseTxidList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	var txids []string
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil && s != "" {
			txids = append(txids, s)
			continue
		}
		var tx TxData
		if err := json.Unmarshal(item, &tx); err == nil && tx.Txid != "" {
			txids = append(txids, tx.Txid)
		}
	}
	return txids
}

// WSClient is the WebSocket half of the Explorer Client: a long-lived reader
// with bounded exponential-backoff reconnect and ping/pong liveness.
type WSClient struct {
	url               string
	pingInterval      time.Duration
	pingTimeout       time.Duration
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration

	mu              sync.Mutex
	conn            *websocket.Conn
	trackedAddrs    map[string]struct{}
}

// NewWSClient builds a WSClient from the resolved WS tuning configuration.
func NewWSClient(explorerCfg config.ExplorerConfig, wsCfg config.WSConfig) *WSClient {
	return &WSClient{
		url:               explorerCfg.MempoolWebSocket,
		pingInterval:      wsCfg.PingInterval,
		pingTimeout:       wsCfg.PingTimeout,
		reconnectDelay:    wsCfg.ReconnectDelay,
		maxReconnectDelay: wsCfg.MaxReconnectDelay,
		trackedAddrs:      make(map[string]struct{}),
	}
}

// TrackAddress requests live notifications for addr. If currently connected,
// the track message is sent immediately; the address is remembered so
// reconnects automatically re-subscribe to every address tracked so far.
func (c *WSClient) TrackAddress(addr string) {
	c.mu.Lock()
	c.trackedAddrs[addr] = struct{}{}
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = c.send(conn, map[string]string{"track-address": addr})
	}
}

// Run connects and reads frames until ctx is cancelled, reconnecting with
// bounded exponential backoff on any failure. Each parsed frame is delivered
// to onFrame; onFrame must not block for long since it runs on the single
// reader goroutine.
func (c *WSClient) Run(ctx context.Context, onFrame func(Frame)) {
	delay := c.reconnectDelay

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			slog.Error("explorer: websocket connect failed", "error", err, "retry_in", delay)
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = minDuration(delay*2, c.maxReconnectDelay)
			continue
		}

		slog.Info("explorer: websocket connected", "url", c.url)
		delay = c.reconnectDelay // reset backoff on a successful connect

		c.mu.Lock()
		c.conn = conn
		addrs := make([]string, 0, len(c.trackedAddrs))
		for a := range c.trackedAddrs {
			addrs = append(addrs, a)
		}
		c.mu.Unlock()

		_ = c.send(conn, map[string]any{"action": "want", "data": []string{"blocks", "mempool-blocks"}})
		for _, a := range addrs {
			_ = c.send(conn, map[string]string{"track-address": a})
		}

		c.readLoop(ctx, conn, onFrame)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		slog.Warn("explorer: websocket disconnected, reconnecting", "retry_in", delay)
		if !sleepCtx(ctx, delay) {
			return
		}
		delay = minDuration(delay*2, c.maxReconnectDelay)
	}
}

func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	return conn, nil
}

func (c *WSClient) send(conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// readLoop pumps inbound frames and ping liveness until the connection drops
// or ctx is cancelled. Mirrors the read/write pump split the WS hub uses for
// client connections, applied here to the outbound connection this process
// holds against the explorer.
func (c *WSClient) readLoop(ctx context.Context, conn *websocket.Conn, onFrame func(Frame)) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		_ = conn.Close()
	}()
	defer func() {
		select {
		case <-done:
		default:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(c.pingTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.pingTimeout))
		return nil
	})

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	go func() {
		for range ticker.C {
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := parseFrame(raw)
		if err != nil {
			slog.Warn("explorer: failed to parse frame", "error", err)
			continue
		}
		if !frame.Ignored {
			onFrame(frame)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
