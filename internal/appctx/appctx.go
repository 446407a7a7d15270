// Package appctx wires every component of the core into a single
// explicit context struct, replacing the teacher's (and original
// Rust's) pattern of package-level global state — spec §9's first
// redesign note calls for "explicit state threading (a context struct
// passed to handlers) instead of statics/singletons, to make the
// system testable and to avoid hidden cross-request coupling."
package appctx

import (
	"context"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/internal/alerting"
	"github.com/SweetModels/sweet-models-enterprise/internal/attendance"
	"github.com/SweetModels/sweet-models-enterprise/internal/cache"
	"github.com/SweetModels/sweet-models-enterprise/internal/config"
	"github.com/SweetModels/sweet-models-enterprise/internal/emergency"
	"github.com/SweetModels/sweet-models-enterprise/internal/escalation"
	"github.com/SweetModels/sweet-models-enterprise/internal/gamification"
	"github.com/SweetModels/sweet-models-enterprise/internal/ledger"
	"github.com/SweetModels/sweet-models-enterprise/internal/payout"
	"github.com/SweetModels/sweet-models-enterprise/internal/ratebook"
	"github.com/SweetModels/sweet-models-enterprise/internal/realtime"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
	"github.com/SweetModels/sweet-models-enterprise/internal/telemetry"
)

// App holds every wired component handle a handler might need. A
// pointer to App is threaded through the router/handler layer instead
// of any package reaching for global state.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	DB    *store.DB
	Cache *cache.Client

	Ledger    *ledger.Ledger
	Rates     *ratebook.RateBook
	Gamify    *gamification.Engine
	Attend    *attendance.Engine
	Payout    *payout.Engine
	Escalator *escalation.Pipeline
	Alerts    *alerting.Client
	Emergency *emergency.Gate
	Telemetry *telemetry.Ingestor

	Hub       *realtime.Hub
	Pulse     *realtime.Aggregator
	Registry  *prometheus.Registry
}

// New wires every component from cfg, db, and cache in dependency
// order: ledger has no dependencies among these components; ratebook,
// gamification, and emergency depend only on ledger/db/cache; payout
// depends on ratebook+gamification; escalation depends on gamification
// +payout (as its narrow PayrollSink)+alerting; attendance depends on
// escalation; realtime and telemetry depend on the hub and metrics
// registry. This ordering mirrors spec §2's dependency diagram
// (telemetry → C5 → ledger/C3/ratebook; C4 → escalation → C5/C3).
func New(cfg *config.Config, logger zerolog.Logger, db *store.DB, cacheClient *cache.Client) *App {
	registry := prometheus.NewRegistry()

	led := ledger.New(db)
	rates := ratebook.New(db, led, cfg.SpreadCOP)
	gamify := gamification.New(db, led, gamification.Config{
		BurnRateStrike1:       cfg.BurnRateStrike1,
		BurnRateStrike2:       cfg.BurnRateStrike2,
		BurnRateStrike3:       cfg.BurnRateStrike3,
		BurnRateDirtyRoom:     cfg.BurnRateDirtyRoom,
		BurnRateLowProduction: cfg.BurnRateLowProduction,
	})
	emergencyGate := emergency.New(db, cacheClient)

	payoutEngine := payout.New(db, led, rates, gamify, payout.Config{
		LowProductionThreshold:   cfg.LowProductionThreshold,
		LowProductionPenaltyCOP:  cfg.LowProductionPenaltyCOP,
		DirtyRoomPenaltyCOP:      cfg.DirtyRoomPenaltyCOP,
		GroupQuotaTokens:         cfg.GroupQuotaTokens,
		GroupShortfallPenaltyCOP: cfg.GroupShortfallPenaltyCOP,
		ModelShare:               cfg.ModelShare,
		DefaultTokenUSD:          cfg.DefaultTokenUSD,
		GroupGoalBonusTokens:     cfg.GroupGoalBonusTokens,
		GroupGoalBonusCOP:        cfg.GroupGoalBonusCOP,
	})

	alertClient := alerting.New(alerting.Config{
		RoutingKey:  cfgEnvRoutingKey(),
		Enabled:     cfgEnvRoutingKey() != "",
		SourceName:  "sweet-models-core",
		HTTPTimeout: 10 * time.Second,
	}, logger)

	escalator := escalation.New(logger, gamify, payoutEngine, cacheClient, alertClient, escalation.Config{
		BufferSize:        cfg.EscalationQueueSize,
		MaxRetries:        cfg.EscalationRetries,
		RetryDelay:        500 * time.Millisecond,
		Workers:           2,
		Strike3PenaltyCOP: cfg.Strike3PenaltyCOP.Neg().String(),
	})

	attend := attendance.New(db, cacheClient, attendance.GeoConfig{
		Lat:          cfg.StudioLat,
		Lon:          cfg.StudioLon,
		RadiusMeters: cfg.StudioRadiusMeters,
		GraceMinutes: cfg.GraceMinutes,
	}, escalator)

	realtimeMetrics := realtime.NewMetrics(registry)
	hub := realtime.New(logger, realtimeMetrics)
	pulse := realtime.NewAggregator(db, hub, logger, realtimeMetrics)

	ingestor := telemetry.New(db, cacheClient, hub, logger, telemetry.Config{
		AllowedPlatforms: cfg.TelemetryAllowedPlatforms,
		DedupeWindow:     cfg.TelemetryDedupeWindow,
		RateLimitPerMin:  cfg.TelemetryRateLimitPerMin,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Cache:     cacheClient,
		Ledger:    led,
		Rates:     rates,
		Gamify:    gamify,
		Attend:    attend,
		Payout:    payoutEngine,
		Escalator: escalator,
		Alerts:    alertClient,
		Emergency: emergencyGate,
		Telemetry: ingestor,
		Hub:       hub,
		Pulse:     pulse,
		Registry:  registry,
	}
}

// Start launches every background task the app owns (spec §4.4's
// decoupled escalation pipeline). Callers must call Stop on shutdown.
func (a *App) Start(ctx context.Context) {
	a.Escalator.Start(ctx)
}

// Stop drains and stops every background task.
func (a *App) Stop() {
	a.Escalator.Stop()
}

func cfgEnvRoutingKey() string {
	return os.Getenv("PAGERDUTY_ROUTING_KEY")
}
