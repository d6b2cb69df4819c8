package admin

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evetabi/prediction/internal/repository"
)

// StatsSource is the bet-stats persistence surface the admin surface needs.
type StatsSource interface {
	Stats(ctx context.Context) (*repository.BetStats, error)
}

// StatsHandler serves /admin/stats — summary statistics over bets and
// payouts, per spec.md §4.10.
type StatsHandler struct {
	bets StatsSource
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(bets StatsSource) *StatsHandler {
	return &StatsHandler{bets: bets}
}

// Summary godoc
// GET /admin/stats
func (h *StatsHandler) Summary(c *gin.Context) {
	stats, err := h.bets.Stats(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondSuccess(c, http.StatusOK, stats)
}
