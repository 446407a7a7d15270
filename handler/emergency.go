package handler

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/internal/emergency"
)

// EmergencyHandler exposes the platform-wide freeze control (spec §3
// EmergencyFlag, §6 emergency_freeze/emergency_status).
type EmergencyHandler struct {
	gate   *emergency.Gate
	logger zerolog.Logger
}

// NewEmergencyHandler creates a new emergency handler.
func NewEmergencyHandler(gate *emergency.Gate, logger zerolog.Logger) *EmergencyHandler {
	return &EmergencyHandler{gate: gate, logger: logger}
}

type emergencyFreezeRequest struct {
	Reason string `json:"reason"`
}

// Freeze activates the emergency stop.
func (h *EmergencyHandler) Freeze(w http.ResponseWriter, r *http.Request) {
	var req emergencyFreezeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	actorID, err := actorIDFromContext(r)
	if err != nil {
		writeError(w, err)
		return
	}

	status, err := h.gate.Freeze(actorID, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status)
}

// Clear lifts the emergency stop.
func (h *EmergencyHandler) Clear(w http.ResponseWriter, r *http.Request) {
	status, err := h.gate.Clear()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status)
}

// Status returns whether the emergency stop is active.
func (h *EmergencyHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.gate.Status()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status)
}
