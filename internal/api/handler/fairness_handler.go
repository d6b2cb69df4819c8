package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/evetabi/prediction/internal/domain"
	"github.com/evetabi/prediction/internal/fairness"
)

// SeedCalendar is the subset of seedregistry.Service the public fairness
// surface needs — today's and past days' server seed hashes/reveals.
type SeedCalendar interface {
	PublicView(ctx context.Context, window int) (domain.SeedCalendarView, error)
}

// defaultCalendarWindow is how many days of past seeds GetCalendar reveals
// when the caller doesn't specify one: [today-30, today+3].
const defaultCalendarWindow = 30

// FairnessHandler serves the provably-fair transparency endpoints: the seed
// calendar and independent roll verification.
type FairnessHandler struct {
	seeds SeedCalendar
}

// NewFairnessHandler creates a FairnessHandler.
func NewFairnessHandler(seeds SeedCalendar) *FairnessHandler {
	return &FairnessHandler{seeds: seeds}
}

// GetCalendar godoc
// GET /api/fairness/seeds?window=30
// Lists server seed days in [today-window, today+3]: today's and future
// days' hashes only, past days with the raw seed revealed.
func (h *FairnessHandler) GetCalendar(c *gin.Context) {
	window := defaultCalendarWindow
	if raw := c.Query("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "window must be a non-negative integer")
			return
		}
		window = parsed
	}

	calendar, err := h.seeds.PublicView(c.Request.Context(), window)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch seed calendar")
		return
	}
	respondSuccess(c, http.StatusOK, calendar)
}

// VerifyRoll godoc
// GET /api/fairness/verify?server_seed=...&client_seed=...&nonce=...&roll=...
// Lets anyone independently recompute a roll from a revealed server seed and
// confirm it matches the roll the house claimed — no bet lookup required.
func (h *FairnessHandler) VerifyRoll(c *gin.Context) {
	serverSeed := c.Query("server_seed")
	clientSeed := c.Query("client_seed")
	if serverSeed == "" || clientSeed == "" {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "server_seed and client_seed are required")
		return
	}

	nonce, err := strconv.ParseInt(c.Query("nonce"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "nonce must be an integer")
		return
	}

	claimedRoll, err := strconv.ParseFloat(c.Query("roll"), 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "roll must be a number")
		return
	}

	data := fairness.GenerateVerificationData(serverSeed, fairness.HashSeed(serverSeed), clientSeed, nonce, claimedRoll)
	respondSuccess(c, http.StatusOK, data)
}
