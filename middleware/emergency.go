package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/SweetModels/sweet-models-enterprise/internal/apperr"
	"github.com/SweetModels/sweet-models-enterprise/internal/emergency"
)

// EmergencyGate returns middleware that rejects every non-exempt
// request with 503 while the emergency flag is active (spec §3
// EmergencyFlag, §6 emergency_freeze/emergency_status), grounded on
// original_source/.../emergency.rs's enforce_emergency_stop: health
// checks, CORS preflight, and the emergency control endpoints
// themselves stay reachable so the flag can be read and cleared while
// everything else is frozen.
func EmergencyGate(gate *emergency.Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if r.Method == http.MethodOptions || path == "/healthz" || path == "/ready" ||
				strings.HasPrefix(path, "/v1/emergency") {
				next.ServeHTTP(w, r)
				return
			}

			if err := gate.Check(); err != nil {
				appErr := &apperr.Error{}
				message := "emergency mode active — operations are temporarily frozen"
				if apperr.As(err, &appErr) && appErr.Message != "" {
					message = appErr.Message
				}

				body := map[string]interface{}{
					"error":   string(apperr.CodeEmergencyStop),
					"message": message,
				}
				if status, statusErr := gate.Status(); statusErr == nil {
					body["activated_at"] = status.ActivatedAt
					body["reason"] = status.Reason
				}

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(body)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
