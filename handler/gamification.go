package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/internal/gamification"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
)

// GamificationHandler exposes XP balances, ranks, and the reward catalog
// (spec §4.3).
type GamificationHandler struct {
	engine *gamification.Engine
	logger zerolog.Logger
}

// NewGamificationHandler creates a new gamification handler.
func NewGamificationHandler(engine *gamification.Engine, logger zerolog.Logger) *GamificationHandler {
	return &GamificationHandler{engine: engine, logger: logger}
}

// Balance returns a model's XP, rank, and fragility for the user_id in
// the query string.
func (h *GamificationHandler) Balance(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.ParseID(r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, invalidQueryParam("user_id"))
		return
	}
	bal, err := h.engine.Balance(userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{
		"balance": bal,
		"rank":    gamification.RankFor(bal.XP),
	})
}

// Catalog lists redeemable rewards and their XP cost.
func (h *GamificationHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{"rewards": gamification.Catalog()})
}

type redeemRequest struct {
	RewardID string `json:"reward_id"`
}

// Redeem spends the caller's XP on a catalog reward.
func (h *GamificationHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, err := actorIDFromContext(r)
	if err != nil {
		writeError(w, err)
		return
	}

	bal, err := h.engine.Redeem(userID, req.RewardID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, bal)
}
