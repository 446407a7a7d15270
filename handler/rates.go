package handler

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/SweetModels/sweet-models-enterprise/internal/ratebook"
)

// RatesHandler exposes the dual-rate currency book (spec §4.2).
type RatesHandler struct {
	rates  *ratebook.RateBook
	logger zerolog.Logger
}

// NewRatesHandler creates a new rates handler.
func NewRatesHandler(rb *ratebook.RateBook, logger zerolog.Logger) *RatesHandler {
	return &RatesHandler{rates: rb, logger: logger}
}

// GetRates returns the current studio_rate and derived model_rate.
func (h *RatesHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.rates.GetRates()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rates)
}

type setRatesRequest struct {
	StudioRateCOP string `json:"studio_rate_cop"`
}

// SetRates updates the studio rate (ADMIN only via middleware.RequireRole).
func (h *RatesHandler) SetRates(w http.ResponseWriter, r *http.Request) {
	var req setRatesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	studioRate, err := decimal.NewFromString(req.StudioRateCOP)
	if err != nil {
		writeError(w, invalidQueryParam("studio_rate_cop"))
		return
	}
	actorID, err := actorIDFromContext(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rates, err := h.rates.SetRates(studioRate, actorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, rates)
}
