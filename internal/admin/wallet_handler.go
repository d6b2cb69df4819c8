package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/explorer"
)

// WalletStore is the vault wallet persistence surface the admin surface needs.
type WalletStore interface {
	Create(ctx context.Context, w *domain.VaultWallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.VaultWallet, error)
	Update(ctx context.Context, w *domain.VaultWallet) error
	ListAll(ctx context.Context) ([]domain.VaultWallet, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UtxoSource reports a vault address's live unspent balance.
type UtxoSource interface {
	UtxosOf(ctx context.Context, address string) ([]explorer.Utxo, error)
}

// Withdrawer performs the cold-storage withdrawal spend. Satisfied by
// *payout.Engine.WithdrawVault.
type Withdrawer interface {
	WithdrawVault(ctx context.Context, vault *domain.VaultWallet, toAddress string, amount int64) (string, error)
}

// WalletHandler serves /admin/wallets.
type WalletHandler struct {
	wallets    WalletStore
	utxos      UtxoSource
	withdrawer Withdrawer
	coldAddr   string
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(wallets WalletStore, utxos UtxoSource, withdrawer Withdrawer, coldStorageAddress string) *WalletHandler {
	return &WalletHandler{wallets: wallets, utxos: utxos, withdrawer: withdrawer, coldAddr: coldStorageAddress}
}

// walletView decorates a vault wallet with its live on-chain balance.
type walletView struct {
	domain.VaultWallet
	LiveBalance *int64 `json:"live_balance,omitempty"`
}

// List godoc
// GET /admin/wallets?live=true
func (h *WalletHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	wallets, err := h.wallets.ListAll(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	views := make([]walletView, len(wallets))
	withLive := c.Query("live") == "true"
	for i, w := range wallets {
		views[i] = walletView{VaultWallet: w}
		if !withLive {
			continue
		}
		utxos, err := h.utxos.UtxosOf(ctx, w.Address)
		if err != nil {
			continue // best-effort: a down explorer shouldn't fail the whole listing
		}
		var balance int64
		for _, u := range utxos {
			balance += u.Value
		}
		views[i].LiveBalance = &balance
	}
	respondList(c, views, len(views), 1, len(views))
}

// Detail godoc
// GET /admin/wallets/:id
func (h *WalletHandler) Detail(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid wallet id")
		return
	}
	w, err := h.wallets.GetByID(c.Request.Context(), id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "wallet not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, w)
}

// createWalletRequest is the admin-supplied shape for a new vault wallet. The
// private key arrives already encrypted (encrypted_private_key) and is stored
// as given; this endpoint does no key generation or encryption.
type createWalletRequest struct {
	Multiplier          float64 `json:"multiplier" binding:"required"`
	Chance              float64 `json:"chance" binding:"required"`
	Address             string  `json:"address" binding:"required"`
	AddressType         string  `json:"address_type" binding:"required"`
	Network             string  `json:"network" binding:"required"`
	EncryptedPrivateKey string  `json:"encrypted_private_key" binding:"required"`
	Label               *string `json:"label"`
	HouseEdgePercent    float64 `json:"house_edge_percent"`
}

// Create godoc
// POST /admin/wallets
func (h *WalletHandler) Create(c *gin.Context) {
	var req createWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_BODY", err.Error())
		return
	}
	if err := domain.ValidateChanceMultiplier(req.Chance, req.Multiplier, req.HouseEdgePercent); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_CHANCE_MULTIPLIER", err.Error())
		return
	}

	w := &domain.VaultWallet{
		ID:                  uuid.New(),
		Multiplier:          req.Multiplier,
		Chance:              req.Chance,
		Address:             req.Address,
		AddressType:         domain.AddressType(req.AddressType),
		Network:             domain.Network(req.Network),
		EncryptedPrivateKey: req.EncryptedPrivateKey,
		IsActive:            true,
		Label:               req.Label,
	}
	if err := h.wallets.Create(c.Request.Context(), w); err != nil {
		if domain.IsConflict(err) {
			respondError(c, http.StatusConflict, "ERR_WALLET_EXISTS", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusCreated, w)
}

// updateWalletRequest carries the admin-editable subset of a vault wallet.
type updateWalletRequest struct {
	Multiplier       float64 `json:"multiplier" binding:"required"`
	Chance           float64 `json:"chance" binding:"required"`
	Label            *string `json:"label"`
	IsActive         bool    `json:"is_active"`
	HouseEdgePercent float64 `json:"house_edge_percent"`
}

// Update godoc
// PUT /admin/wallets/:id
func (h *WalletHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid wallet id")
		return
	}
	var req updateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_BODY", err.Error())
		return
	}
	if err := domain.ValidateChanceMultiplier(req.Chance, req.Multiplier, req.HouseEdgePercent); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_CHANCE_MULTIPLIER", err.Error())
		return
	}

	ctx := c.Request.Context()
	w, err := h.wallets.GetByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "wallet not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	w.Multiplier = req.Multiplier
	w.Chance = req.Chance
	w.Label = req.Label
	w.IsActive = req.IsActive

	if err := h.wallets.Update(ctx, w); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, w)
}

// Delete godoc
// DELETE /admin/wallets/:id
//
// Destructive: warns (via the response body) rather than blocking when the
// wallet has already received deposits, per spec.md §4.10.
func (h *WalletHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid wallet id")
		return
	}
	ctx := c.Request.Context()
	w, err := h.wallets.GetByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "wallet not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	if err := h.wallets.Delete(ctx, id); err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{
		"id":       id,
		"deleted":  true,
		"warning":  w.TotalReceived > 0,
		"received": w.TotalReceived,
	})
}

// withdrawRequest is the body for a cold-storage withdrawal.
type withdrawRequest struct {
	Amount    int64  `json:"amount"`     // satoshis
	ToAddress string `json:"to_address"` // defaults to the configured cold-storage address
}

// Withdraw godoc
// POST /admin/wallets/:id/withdraw
//
// Reuses the Payout Engine's signing path (spec.md §4.7/§4.10) to send all or
// part of a vault's balance to a configured cold-storage address.
func (h *WalletHandler) Withdraw(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid wallet id")
		return
	}
	var req withdrawRequest
	_ = c.ShouldBindJSON(&req) // to_address is optional; validated below

	ctx := c.Request.Context()
	w, err := h.wallets.GetByID(ctx, id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "wallet not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	toAddress := req.ToAddress
	if toAddress == "" {
		toAddress = h.coldAddr
	}
	if toAddress == "" {
		respondError(c, http.StatusBadRequest, "ERR_NO_COLD_ADDRESS", "no cold-storage address configured or supplied")
		return
	}
	if req.Amount <= 0 {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_AMOUNT", "amount must be positive; use the wallet's balance to withdraw all")
		return
	}

	txid, err := h.withdrawer.WithdrawVault(ctx, w, toAddress, req.Amount)
	if err != nil {
		if domain.IsRetryable(err) {
			respondError(c, http.StatusConflict, "ERR_INSUFFICIENT_FUNDS", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_WITHDRAW_FAILED", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"wallet_id": id, "txid": txid, "amount": req.Amount, "to_address": toAddress})
}
