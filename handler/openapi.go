package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// OpenAPISpec returns the OpenAPI 3.0 specification for the studio core API.
func OpenAPISpec() map[string]interface{} {
	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "Studio Core API",
			"description": "Webcam studio back-office core: ledger, rates, gamification, attendance, payout, realtime",
			"version":     "1.0.0",
			"contact": map[string]interface{}{
				"name": "Platform Engineering",
			},
			"license": map[string]interface{}{
				"name": "Proprietary",
			},
		},
		"servers": []map[string]interface{}{
			{"url": "http://localhost:8080", "description": "Local development"},
		},
		"paths": openAPIPaths(),
		"components": map[string]interface{}{
			"securitySchemes": map[string]interface{}{
				"BearerAuth": map[string]interface{}{
					"type":         "http",
					"scheme":       "bearer",
					"bearerFormat": "opaque",
					"description":  "Gateway-issued bearer token; X-User-Id/X-User-Role headers assert identity",
				},
			},
			"schemas": openAPISchemas(),
		},
		"security": []map[string]interface{}{
			{"BearerAuth": []string{}},
		},
		"tags": []map[string]interface{}{
			{"name": "Ledger", "description": "Hash-chained audit journal"},
			{"name": "Rates", "description": "Dual-rate currency book"},
			{"name": "Gamification", "description": "XP, ranks, reward catalog"},
			{"name": "Attendance", "description": "Shift check-in, strikes, geofencing"},
			{"name": "Payout", "description": "Production reports, payroll, withdrawals"},
			{"name": "Telemetry", "description": "Extension telemetry ingest"},
			{"name": "Realtime", "description": "Live dashboard feed and CEO pulse"},
			{"name": "Emergency", "description": "Platform-wide freeze control"},
		},
	}
}

func openAPIPaths() map[string]interface{} {
	return map[string]interface{}{
		"/v1/ledger/verify": map[string]interface{}{
			"get": endpoint("Ledger", "verifyChain", "Walk a hash chain and confirm every link matches its recomputed hash"),
		},
		"/v1/ledger/history": map[string]interface{}{
			"get": endpoint("Ledger", "ledgerHistory", "List sealed entries for a user, oldest first"),
		},
		"/v1/rates": map[string]interface{}{
			"get": endpoint("Rates", "getRates", "Return the current studio_rate and derived model_rate"),
		},
		"/v1/gamification/balance": map[string]interface{}{
			"get": endpoint("Gamification", "gamificationBalance", "Return a model's XP, rank, and fragility"),
		},
		"/v1/gamification/catalog": map[string]interface{}{
			"get": endpoint("Gamification", "rewardCatalog", "List redeemable rewards and their XP cost"),
		},
		"/v1/gamification/redeem": map[string]interface{}{
			"post": endpoint("Gamification", "redeemReward", "Spend XP on a catalog reward"),
		},
		"/v1/attendance/check-in": map[string]interface{}{
			"post": endpoint("Attendance", "checkIn", "Record a geofenced check-in against the model's assigned shift"),
		},
		"/v1/attendance/status": map[string]interface{}{
			"get": endpoint("Attendance", "attendanceStatus", "Return strike count and standing for the current ISO week"),
		},
		"/v1/payout/production-report": map[string]interface{}{
			"post": endpoint("Payout", "submitProductionReport", "Seal an open production report and compute splits"),
		},
		"/v1/payout/close-shift": map[string]interface{}{
			"post": endpoint("Payout", "closeShift", "Close out a shift and finalize room dirty totals"),
		},
		"/v1/payout/pending": map[string]interface{}{
			"get": endpoint("Payout", "pendingPayroll", "List payroll entries awaiting payment"),
		},
		"/v1/payout/mark-paid": map[string]interface{}{
			"post": endpoint("Payout", "markPaid", "Mark a payroll entry as paid"),
		},
		"/v1/payout/withdraw": map[string]interface{}{
			"post": endpoint("Payout", "requestWithdraw", "Submit a withdrawal intent against an available balance"),
		},
		"/v1/payout/balance": map[string]interface{}{
			"get": endpoint("Payout", "getBalance", "Return a model's available and pending balance"),
		},
		"/v1/telemetry/ingest": map[string]interface{}{
			"post": endpoint("Telemetry", "telemetryIngest", "Accept an extension-sourced token/tip/viewer tick"),
		},
		"/v1/realtime/subscribe": map[string]interface{}{
			"get": endpoint("Realtime", "subscribe", "Upgrade to a websocket feed of room and payroll events"),
		},
		"/v1/realtime/pulse": map[string]interface{}{
			"get": endpoint("Realtime", "pulse", "Return the aggregated CEO dashboard snapshot"),
		},
		"/v1/emergency/freeze": map[string]interface{}{
			"post": endpoint("Emergency", "emergencyFreeze", "Activate the platform-wide emergency stop"),
		},
		"/v1/emergency/status": map[string]interface{}{
			"get": endpoint("Emergency", "emergencyStatus", "Return whether the emergency stop is active"),
		},
	}
}

func endpoint(tag, operationID, summary string) map[string]interface{} {
	return map[string]interface{}{
		"tags":        []string{tag},
		"operationId": operationID,
		"summary":     summary,
		"responses": map[string]interface{}{
			"200": map[string]interface{}{
				"description": "success",
				"content": map[string]interface{}{
					"application/json": map[string]interface{}{
						"schema": map[string]interface{}{"type": "object"},
					},
				},
			},
			"400": errorResponse("invalid request"),
			"401": errorResponse("missing or invalid authentication"),
			"403": errorResponse("role does not permit this operation"),
			"429": errorResponse("rate limit exceeded"),
			"503": errorResponse("emergency stop active"),
		},
	}
}

func errorResponse(description string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{"$ref": "#/components/schemas/Error"},
			},
		},
	}
}

func openAPISchemas() map[string]interface{} {
	return map[string]interface{}{
		"Error": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"error":   map[string]interface{}{"type": "string"},
				"message": map[string]interface{}{"type": "string"},
			},
		},
	}
}

// OpenAPIHandler serves the OpenAPI spec at /openapi.json.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		spec := OpenAPISpec()
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		json.NewEncoder(w).Encode(spec)
	}
}

// SwaggerUIHandler serves a minimal Swagger UI page.
func SwaggerUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>Studio Core API</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
    SwaggerUI({
        url: '/openapi.json',
        dom_id: '#swagger-ui',
        deepLinking: true,
        presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
        layout: "BaseLayout"
    });
    </script>
</body>
</html>`
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, html)
	}
}
