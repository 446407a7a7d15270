package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/telemetry"
)

// TelemetryHandler exposes telemetry_ingest, the untrusted extension
// intake path (spec §6, §7).
type TelemetryHandler struct {
	ingestor *telemetry.Ingestor
	logger   zerolog.Logger
}

// NewTelemetryHandler creates a new telemetry handler.
func NewTelemetryHandler(ingestor *telemetry.Ingestor, logger zerolog.Logger) *TelemetryHandler {
	return &TelemetryHandler{ingestor: ingestor, logger: logger}
}

type telemetryIngestRequest struct {
	RoomID   string `json:"room_id"`
	Platform string `json:"platform"`
	Tokens   string `json:"tokens"`
	Tips     string `json:"tips"`
	Viewers  int    `json:"viewers"`
	Ts       int64  `json:"ts"`
}

// Ingest accepts an extension-sourced token/tip/viewer tick.
func (h *TelemetryHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req telemetryIngestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	roomID, err := identity.ParseID(req.RoomID)
	if err != nil {
		writeError(w, invalidQueryParam("room_id"))
		return
	}
	tokens, err := decimal.NewFromString(req.Tokens)
	if err != nil {
		writeError(w, invalidQueryParam("tokens"))
		return
	}
	tips := decimal.Zero
	if req.Tips != "" {
		tips, err = decimal.NewFromString(req.Tips)
		if err != nil {
			writeError(w, invalidQueryParam("tips"))
			return
		}
	}

	ts := time.Now().UTC()
	if req.Ts > 0 {
		ts = time.Unix(req.Ts, 0).UTC()
	}

	tick := telemetry.Tick{
		RoomID:   roomID,
		Platform: req.Platform,
		Tokens:   tokens,
		Tips:     tips,
		Viewers:  req.Viewers,
		Ts:       ts,
	}

	if err := h.ingestor.Ingest(r.Context(), tick); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"accepted": true})
}
