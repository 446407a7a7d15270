package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/internal/realtime"
)

// RealtimeHandler exposes the live dashboard feed and CEO pulse snapshot
// (spec §4.6).
type RealtimeHandler struct {
	hub    *realtime.Hub
	pulse  *realtime.Aggregator
	logger zerolog.Logger
}

// NewRealtimeHandler creates a new realtime handler.
func NewRealtimeHandler(hub *realtime.Hub, pulse *realtime.Aggregator, logger zerolog.Logger) *RealtimeHandler {
	return &RealtimeHandler{hub: hub, pulse: pulse, logger: logger}
}

// Subscribe upgrades the connection to a websocket feed of room and
// payroll events.
func (h *RealtimeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	realtime.ServeSubscriber(h.hub, h.logger, w, r)
}

// Pulse returns the aggregated CEO dashboard snapshot.
func (h *RealtimeHandler) Pulse(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.pulse.Pulse())
}
