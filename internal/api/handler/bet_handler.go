package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evetabi/prediction/internal/domain"
)

// BetStore is the read-only bet persistence surface this handler needs.
type BetStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Bet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Bet, error)
}

// UserLookup resolves the implicit user identity behind a deposit address —
// there is no login, so address IS the account.
type UserLookup interface {
	GetByAddress(ctx context.Context, address string) (*domain.User, error)
}

// BetHandler serves the public, read-only bet-history surface. Placing a bet
// happens by sending Bitcoin to a vault address, not through this API — see
// internal/ingester and internal/materializer.
type BetHandler struct {
	bets  BetStore
	users UserLookup
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetStore, users UserLookup) *BetHandler {
	return &BetHandler{bets: bets, users: users}
}

// GetByAddress godoc
// GET /api/bets/address/:address?page=1&limit=20
// Returns the bet history for the user implicitly identified by a deposit
// address. An address with no recorded deposits yields an empty list, not
// a 404 — there is no account to "not find".
func (h *BetHandler) GetByAddress(c *gin.Context) {
	address := c.Param("address")
	if address == "" {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ADDRESS", "address is required")
		return
	}

	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	user, err := h.users.GetByAddress(c.Request.Context(), address)
	if err != nil {
		if domain.IsNotFound(err) {
			respondList(c, []domain.BetResponse{}, 0, page, limit)
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not resolve address")
		return
	}

	bets, err := h.bets.GetByUserID(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bet history")
		return
	}

	views := make([]domain.BetResponse, len(bets))
	for i, b := range bets {
		views[i] = b.ToResponse()
	}
	respondList(c, views, len(views), page, limit)
}

// GetByID godoc
// GET /api/bets/:id
// Returns a single bet by id. ToResponse never includes the server seed, so
// this endpoint needs no auth.
func (h *BetHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_BET_ID", "invalid bet id")
		return
	}

	bet, err := h.bets.GetByID(c.Request.Context(), id)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "bet not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch bet")
		return
	}
	respondSuccess(c, http.StatusOK, bet.ToResponse())
}

// parsePagination reads page/limit query params, defaulting to page 1, limit
// 20, capped at 100 per page.
func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	limit, _ = strconv.Atoi(c.Query("limit"))
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
