// Package explorer wraps the external mempool/Esplora-compatible REST and
// WebSocket surface the rest of the system uses to observe and broadcast
// Bitcoin transactions. It resolves mainnet vs. testnet endpoints from
// configuration and, in production, refuses to start against an endpoint
// that disagrees with the configured network.
package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/evetabi/prediction/internal/config"
	"github.com/evetabi/prediction/internal/domain"
)

// Utxo is one unspent output available to a vault address.
type Utxo struct {
	Txid          string `json:"txid"`
	Vout          uint32 `json:"vout"`
	Value         int64  `json:"value"`
	Confirmations int    `json:"confirmations"`
}

// TxOutput is one output of a transaction returned by the explorer.
type TxOutput struct {
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

// TxInput is one input of a transaction, carrying its previous output so the
// sender address can be recovered without a second lookup.
type TxInput struct {
	Prevout *TxOutput `json:"prevout"`
}

// TxStatus carries confirmation state for a transaction.
type TxStatus struct {
	Confirmed   bool    `json:"confirmed"`
	BlockHeight *int64  `json:"block_height"`
	BlockHash   *string `json:"block_hash"`
}

// TxData is the Esplora-shaped transaction representation this package works
// with throughout — REST responses and WebSocket frames both decode into it.
type TxData struct {
	Txid   string     `json:"txid"`
	Vin    []TxInput  `json:"vin"`
	Vout   []TxOutput `json:"vout"`
	Fee    int64      `json:"fee"`
	Status TxStatus   `json:"status"`
}

// FirstInputAddress returns the spending address of the transaction's first
// input, or nil if unavailable (coinbase, or the explorer omitted prevout).
func (t *TxData) FirstInputAddress() *string {
	if len(t.Vin) == 0 || t.Vin[0].Prevout == nil || t.Vin[0].Prevout.ScriptPubKeyAddress == "" {
		return nil
	}
	addr := t.Vin[0].Prevout.ScriptPubKeyAddress
	return &addr
}

// Confirmations derives a confirmation count from status and a known current
// tip height; the explorer only ever tells us "confirmed" plus the block it
// confirmed in, so the caller supplies the tip to compute a count.
func (t *TxData) Confirmations(tipHeight int64) int {
	if !t.Status.Confirmed || t.Status.BlockHeight == nil {
		return 0
	}
	n := tipHeight - *t.Status.BlockHeight + 1
	if n < 0 {
		return 0
	}
	return int(n)
}

// Client is the REST half of the Explorer Client: primary endpoint with a
// secondary fallback for broadcast. The WebSocket half lives in ws.go.
type Client struct {
	httpClient      *http.Client
	primaryBaseURL  string
	secondaryBaseURL string
	broadcastTimeout time.Duration
}

// New builds a Client from the resolved explorer configuration.
func New(cfg config.ExplorerConfig) *Client {
	return &Client{
		httpClient:       &http.Client{Timeout: cfg.RequestTimeout},
		primaryBaseURL:   cfg.MempoolAPI,
		secondaryBaseURL: cfg.BlockstreamAPI,
		broadcastTimeout: cfg.BroadcastTimeout,
	}
}

// VerifyNetwork probes /blocks/tip/height on the primary endpoint; in
// production this is called once at startup and a failure is ConfigFatal
// (the caller aborts the process) since signing mainnet funds against a
// misconfigured testnet API would be catastrophic.
func (c *Client) VerifyNetwork(ctx context.Context, wantMainnet bool) error {
	body, err := c.get(ctx, c.primaryBaseURL+"/blocks/tip/height")
	if err != nil {
		return fmt.Errorf("explorer.VerifyNetwork: probe failed: %w", err)
	}
	// mainnet tip heights are well past 800000 as of any date this service
	// could plausibly run; testnet resets periodically and stays far lower.
	var height int64
	if err := json.Unmarshal(body, &height); err != nil {
		return fmt.Errorf("explorer.VerifyNetwork: unexpected response: %w", err)
	}
	isMainnetLike := height > 700_000
	if isMainnetLike != wantMainnet {
		return domain.ErrNetworkMismatch
	}
	return nil
}

// TxDetails fetches one transaction by txid.
func (c *Client) TxDetails(ctx context.Context, txid string) (*TxData, error) {
	body, err := c.get(ctx, c.primaryBaseURL+"/tx/"+txid)
	if err != nil {
		return nil, fmt.Errorf("explorer.TxDetails: %w", err)
	}
	var tx TxData
	if err := json.Unmarshal(body, &tx); err != nil {
		return nil, fmt.Errorf("explorer.TxDetails: decode: %w", err)
	}
	return &tx, nil
}

// UtxosOf fetches the current unspent outputs of address.
func (c *Client) UtxosOf(ctx context.Context, address string) ([]Utxo, error) {
	body, err := c.get(ctx, c.primaryBaseURL+"/address/"+address+"/utxo")
	if err != nil {
		return nil, fmt.Errorf("explorer.UtxosOf: %w", err)
	}
	var utxos []Utxo
	if err := json.Unmarshal(body, &utxos); err != nil {
		return nil, fmt.Errorf("explorer.UtxosOf: decode: %w", err)
	}
	return utxos, nil
}

// AddressTxs is the REST fallback poll path: the transactions observed for
// address, newest first, used when the WebSocket reader is degraded.
func (c *Client) AddressTxs(ctx context.Context, address string) ([]TxData, error) {
	body, err := c.get(ctx, c.primaryBaseURL+"/address/"+address+"/txs")
	if err != nil {
		return nil, fmt.Errorf("explorer.AddressTxs: %w", err)
	}
	var txs []TxData
	if err := json.Unmarshal(body, &txs); err != nil {
		return nil, fmt.Errorf("explorer.AddressTxs: decode: %w", err)
	}
	return txs, nil
}

// Broadcast submits a raw signed transaction, trying the primary endpoint
// first and the secondary on failure.
func (c *Client) Broadcast(ctx context.Context, rawHex string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.broadcastTimeout)
	defer cancel()

	txid, err := c.postTx(ctx, c.primaryBaseURL+"/tx", rawHex)
	if err == nil {
		return txid, nil
	}
	if c.secondaryBaseURL == "" {
		return "", fmt.Errorf("explorer.Broadcast: primary failed, no secondary configured: %w", err)
	}
	txid, secErr := c.postTx(ctx, c.secondaryBaseURL+"/tx", rawHex)
	if secErr != nil {
		return "", fmt.Errorf("explorer.Broadcast: primary failed (%v), secondary failed: %w", err, secErr)
	}
	return txid, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

func (c *Client) postTx(ctx context.Context, url, rawHex string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(rawHex))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, buf.String())
	}
	// Esplora-compatible /tx endpoints return the raw txid as the body.
	return buf.String(), nil
}
