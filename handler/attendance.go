package handler

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/internal/attendance"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
)

// AttendanceHandler exposes geofenced check-ins and strike status
// (spec §4.4).
type AttendanceHandler struct {
	engine *attendance.Engine
	logger zerolog.Logger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(engine *attendance.Engine, logger zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{engine: engine, logger: logger}
}

type checkInRequest struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	PhotoRef string  `json:"photo_ref"`
}

// CheckIn records a geofenced check-in for the caller's assigned shift.
func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req checkInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	userID, err := actorIDFromContext(r)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.engine.CheckIn(userID, req.Lat, req.Lon, req.PhotoRef, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}

// Status returns the caller's strike count and standing for the current
// ISO week.
func (h *AttendanceHandler) Status(w http.ResponseWriter, r *http.Request) {
	var userID identity.ID
	var err error
	if q := r.URL.Query().Get("user_id"); q != "" {
		userID, err = identity.ParseID(q)
		if err != nil {
			writeError(w, invalidQueryParam("user_id"))
			return
		}
	} else {
		userID, err = actorIDFromContext(r)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	status, err := h.engine.AttendanceStatus(userID, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, status)
}
