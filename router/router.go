// Package router wires the studio core's HTTP surface: middleware chain,
// health/metrics endpoints, and every domain route against an
// internal/appctx.App.
package router

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/handler"
	"github.com/SweetModels/sweet-models-enterprise/internal/appctx"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	coremw "github.com/SweetModels/sweet-models-enterprise/middleware"
)

// NewRouter returns a configured chi Router with the full middleware
// chain and every domain route mounted against app.
func NewRouter(app *appctx.App, appLogger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	cfg := app.Config

	// --- Middleware chain (order matters) ---
	// 1. CORS — must be first so preflight responses succeed.
	r.Use(coremw.CORSMiddleware([]string{"*"}))
	// 2. Security headers.
	r.Use(coremw.SecurityHeadersMiddleware)
	// 3. Request ID injection.
	r.Use(chimw.RequestID)
	// 4. Panic recovery.
	r.Use(chimw.Recoverer)
	// 5. Request logger.
	r.Use(mwRequestLogger(appLogger))
	// 6. Body size limit.
	r.Use(mwMaxBodySize(cfg.MaxBodyBytes))
	// 7. Emergency stop gate — everything past health/emergency control
	// freezes while the flag is active (spec §3 EmergencyFlag).
	r.Use(coremw.EmergencyGate(app.Emergency))

	// --- Health endpoints (no auth required) ---
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok","service":"studio-core"}`))
	})
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready","service":"studio-core"}`))
	})

	// Prometheus metrics — no auth required.
	r.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))

	// OpenAPI spec + Swagger UI — no auth required.
	r.Get("/openapi.json", handler.OpenAPIHandler())
	r.Get("/docs", handler.SwaggerUIHandler())

	// --- Handlers ---
	ledgerHandler := handler.NewLedgerHandler(app.Ledger, appLogger)
	ratesHandler := handler.NewRatesHandler(app.Rates, appLogger)
	gamifyHandler := handler.NewGamificationHandler(app.Gamify, appLogger)
	attendHandler := handler.NewAttendanceHandler(app.Attend, appLogger)
	payoutHandler := handler.NewPayoutHandler(app.Payout, appLogger)
	telemetryHandler := handler.NewTelemetryHandler(app.Telemetry, appLogger)
	realtimeHandler := handler.NewRealtimeHandler(app.Hub, app.Pulse, appLogger)
	emergencyHandler := handler.NewEmergencyHandler(app.Emergency, appLogger)

	authMW := coremw.NewAuthMiddleware(appLogger, cfg.APIKeyHeader)
	rateLimiter := coremw.NewRateLimiter(appLogger, app.Cache, cfg.RateLimitEnabled, cfg.RateLimitRPM)
	timeoutMW := coremw.NewTimeoutMiddleware(appLogger, 10*time.Second)

	adminOnly := coremw.RequireRole(identity.RoleAdmin, identity.RoleSuperAdmin)
	moderatorUp := coremw.RequireRole(identity.RoleModerator, identity.RoleAdmin, identity.RoleSuperAdmin)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authMW.Handler)
		r.Use(rateLimiter.Handler)
		r.Use(timeoutMW.Handler)

		r.Get("/ledger/verify", ledgerHandler.VerifyChain)
		r.Get("/ledger/history", ledgerHandler.History)

		r.Get("/rates", ratesHandler.GetRates)
		r.With(adminOnly).Post("/rates", ratesHandler.SetRates)

		r.Get("/gamification/balance", gamifyHandler.Balance)
		r.Get("/gamification/catalog", gamifyHandler.Catalog)
		r.Post("/gamification/redeem", gamifyHandler.Redeem)

		r.Post("/attendance/check-in", attendHandler.CheckIn)
		r.Get("/attendance/status", attendHandler.Status)

		r.With(moderatorUp).Post("/payout/production-report", payoutHandler.SubmitProductionReport)
		r.With(moderatorUp).Post("/payout/close-shift", payoutHandler.CloseShift)
		r.With(adminOnly).Get("/payout/pending", payoutHandler.PendingPayroll)
		r.With(adminOnly).Post("/payout/mark-paid", payoutHandler.MarkPaid)
		r.With(adminOnly).Post("/payout/weekly-payout", payoutHandler.WeeklyPayout)
		r.Get("/payout/balance", payoutHandler.GetBalance)
		r.Post("/payout/withdraw", payoutHandler.RequestWithdraw)

		r.Post("/telemetry/ingest", telemetryHandler.Ingest)

		r.Get("/realtime/subscribe", realtimeHandler.Subscribe)
		r.With(moderatorUp).Get("/realtime/pulse", realtimeHandler.Pulse)

		r.With(adminOnly).Post("/emergency/freeze", emergencyHandler.Freeze)
		r.With(adminOnly).Post("/emergency/clear", emergencyHandler.Clear)
		r.Get("/emergency/status", emergencyHandler.Status)
	})

	return r
}

// mwMaxBodySize returns middleware that limits the request body size.
func mwMaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = 1 * 1024 * 1024
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			max := maxBytes
			if v := os.Getenv("CORE_MAX_BODY_BYTES"); v != "" {
				if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
					max = parsed
				}
			}

			if r.ContentLength > 0 && r.ContentLength > max {
				http.Error(w, `{"error":"request_too_large","message":"request body too large"}`, http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}

func mwRequestLogger(appLogger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(rw, r)
			dur := time.Since(start)
			reqID := chimw.GetReqID(r.Context())
			appLogger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("req_id", reqID).
				Int("status", rw.Status()).
				Dur("duration", dur).
				Msg("request completed")
		})
	}
}
