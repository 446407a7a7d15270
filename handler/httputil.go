package handler

import (
	"encoding/json"
	"net/http"

	"github.com/SweetModels/sweet-models-enterprise/internal/apperr"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/middleware"
)

// actorIDFromContext parses the authenticated user id asserted by
// middleware.AuthMiddleware into an identity.ID.
func actorIDFromContext(r *http.Request) (identity.ID, error) {
	id, err := identity.ParseID(middleware.GetUserID(r.Context()))
	if err != nil {
		return identity.ID{}, apperr.Wrap(apperr.KindAuthorizationFailed, "invalid authenticated user id", err)
	}
	return id, nil
}

// writeJSON encodes v as the response body with a 200 status.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes the request body into dst, returning a validation
// apperr.Error on malformed input.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperr.Wrap(apperr.KindValidationFailed, "malformed request body", err)
	}
	return nil
}

// invalidQueryParam builds a validation error for a missing or malformed
// query string parameter.
func invalidQueryParam(name string) error {
	return apperr.New(apperr.KindValidationFailed, "invalid or missing query parameter: "+name)
}

// writeError maps an apperr.Error (or any error) to the wire error shape
// and the HTTP status its Kind implies (spec §6's stable error codes).
func writeError(w http.ResponseWriter, err error) {
	appErr := &apperr.Error{}
	if !apperr.As(err, &appErr) {
		appErr = apperr.Wrap(apperr.KindInternal, err.Error(), err)
	}

	status := http.StatusInternalServerError
	switch appErr.Kind {
	case apperr.KindValidationFailed:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindStateConflict:
		status = http.StatusConflict
	case apperr.KindAuthorizationFailed:
		status = http.StatusForbidden
	case apperr.KindDownstreamUnavailable:
		status = http.StatusServiceUnavailable
	case apperr.KindInternal:
		status = http.StatusInternalServerError
	}

	code := string(appErr.Code)
	if code == "" {
		code = string(appErr.Kind)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": appErr.Error(),
	})
}
