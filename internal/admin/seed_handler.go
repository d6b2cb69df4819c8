package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/evetabi/prediction/internal/domain"
)

// SeedRegistry is the subset of seedregistry.Service the admin surface needs.
type SeedRegistry interface {
	AdminListAll(ctx context.Context) ([]domain.SeedPublicView, error)
	AdminCreate(ctx context.Context, seedDate string) (*domain.ServerSeed, error)
	AdminDelete(ctx context.Context, id uuid.UUID, seedDate string) error
}

// SeedHandler serves /admin/seeds — the future-dated ServerSeed calendar.
type SeedHandler struct {
	registry SeedRegistry
}

// NewSeedHandler creates a SeedHandler.
func NewSeedHandler(registry SeedRegistry) *SeedHandler {
	return &SeedHandler{registry: registry}
}

// List godoc
// GET /admin/seeds
func (h *SeedHandler) List(c *gin.Context) {
	views, err := h.registry.AdminListAll(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, views, len(views), 1, len(views))
}

// createSeedRequest is the body for scheduling a future-dated ServerSeed.
type createSeedRequest struct {
	SeedDate string `json:"seed_date" binding:"required"` // YYYY-MM-DD, strictly future
}

// Create godoc
// POST /admin/seeds
func (h *SeedHandler) Create(c *gin.Context) {
	var req createSeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_BODY", err.Error())
		return
	}
	seed, err := h.registry.AdminCreate(c.Request.Context(), req.SeedDate)
	if err != nil {
		if errors.Is(err, domain.ErrSeedDateNotFuture) || errors.Is(err, domain.ErrSeedAlreadyExists) {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_SEED_DATE", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusCreated, seed.ToPublicView(false))
}

// Delete godoc
// DELETE /admin/seeds/:id?seed_date=YYYY-MM-DD
func (h *SeedHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid seed id")
		return
	}
	seedDate := c.Query("seed_date")
	if seedDate == "" {
		respondError(c, http.StatusBadRequest, "ERR_MISSING_SEED_DATE", "seed_date query parameter is required")
		return
	}
	if err := h.registry.AdminDelete(c.Request.Context(), id, seedDate); err != nil {
		if err == domain.ErrSeedDateNotFuture {
			respondError(c, http.StatusBadRequest, "ERR_INVALID_SEED_DATE", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"id": id, "deleted": true})
}
