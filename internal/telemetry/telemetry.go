// Package telemetry implements telemetry_ingest (spec §6, §7): the
// untrusted intake path for per-room production ticks pushed by the
// browser extension. Every tick is rate-limited, platform-allowlisted,
// checked for a monotonic per-stream timestamp, and deduplicated within
// a short window before it is allowed to accumulate into an open
// ProductionReport or reach the realtime hub — grounded on spec §7's
// "Telemetry trust boundary" redesign note, which requires that a
// malicious extension can never mint XP or move money through this
// path alone (the actual split/XP math only runs at submit_production_
// report / close_shift, driven by an operator, not by telemetry ticks).
package telemetry

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/SweetModels/sweet-models-enterprise/internal/apperr"
	"github.com/SweetModels/sweet-models-enterprise/internal/cache"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/realtime"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

// Tick is one telemetry_ingest payload (spec §6).
type Tick struct {
	RoomID   identity.ID
	Platform string
	Tokens   decimal.Decimal
	Tips     decimal.Decimal
	Viewers  int
	Ts       time.Time
}

// Config holds the trust-boundary tunables (spec §7), sourced from
// internal/config rather than imported directly so this package stays
// independently testable.
type Config struct {
	AllowedPlatforms []string
	DedupeWindow     time.Duration
	RateLimitPerMin  int
}

// Ingestor processes telemetry ticks (spec §6 telemetry_ingest()).
type Ingestor struct {
	db     *store.DB
	cache  *cache.Client
	hub    *realtime.Hub
	logger zerolog.Logger
	cfg    Config

	allowed map[string]bool
}

// New constructs an Ingestor.
func New(db *store.DB, c *cache.Client, hub *realtime.Hub, logger zerolog.Logger, cfg Config) *Ingestor {
	allowed := make(map[string]bool, len(cfg.AllowedPlatforms))
	for _, p := range cfg.AllowedPlatforms {
		allowed[p] = true
	}
	return &Ingestor{
		db:      db,
		cache:   c,
		hub:     hub,
		logger:  logger.With().Str("component", "telemetry").Logger(),
		cfg:     cfg,
		allowed: allowed,
	}
}

// Ingest validates, dedupes, and applies one telemetry tick (spec §6).
// A duplicate tick (same room/platform/ts replayed inside the dedupe
// window) is accepted idempotently and returns nil without mutating
// state again.
func (in *Ingestor) Ingest(ctx context.Context, tick Tick) error {
	if !in.allowed[tick.Platform] {
		return apperr.New(apperr.KindValidationFailed, fmt.Sprintf("telemetry: platform %q is not allowlisted", tick.Platform))
	}
	if tick.RoomID == (identity.ID{}) {
		return apperr.New(apperr.KindValidationFailed, "telemetry: room_id is required")
	}

	rateKey := fmt.Sprintf("telemetry:rate:%s", tick.RoomID.String())
	if in.cfg.RateLimitPerMin > 0 {
		n, err := in.cache.Incr(ctx, rateKey, time.Minute)
		if err != nil {
			return apperr.Wrap(apperr.KindDownstreamUnavailable, "telemetry: rate counter", err)
		}
		if n > int64(in.cfg.RateLimitPerMin) {
			return apperr.New(apperr.KindValidationFailed, "telemetry: rate limit exceeded for room")
		}
	}

	monotonicKey := fmt.Sprintf("telemetry:last_ts:%s:%s", tick.RoomID.String(), tick.Platform)
	if lastStr, ok, err := in.cache.Get(ctx, monotonicKey); err == nil && ok {
		if lastUnix, perr := strconv.ParseInt(lastStr, 10, 64); perr == nil {
			if tick.Ts.Unix() < lastUnix {
				return apperr.New(apperr.KindValidationFailed, "telemetry: timestamp is not monotonic for this stream")
			}
		}
	}

	dedupeKey := fmt.Sprintf("telemetry:dedupe:%s:%s:%d", tick.RoomID.String(), tick.Platform, tick.Ts.Unix())
	isNew, err := in.cache.SetNX(ctx, dedupeKey, "1", in.cfg.DedupeWindow)
	if err != nil {
		return apperr.Wrap(apperr.KindDownstreamUnavailable, "telemetry: dedupe check", err)
	}
	if !isNew {
		in.logger.Debug().Str("room_id", tick.RoomID.String()).Str("platform", tick.Platform).Msg("duplicate telemetry tick dropped")
		return nil
	}

	_ = in.cache.Set(ctx, monotonicKey, strconv.FormatInt(tick.Ts.Unix(), 10), 24*time.Hour)

	newTotal, err := in.accumulate(tick)
	if err != nil {
		return err
	}

	if in.hub != nil {
		in.hub.TelemetryUpdate(tick.RoomID.String(), map[string]interface{}{
			"platform": tick.Platform,
			"tokens":   tick.Tokens.String(),
			"tips":     tick.Tips.String(),
			"viewers":  tick.Viewers,
			"ts":       tick.Ts.Unix(),
		})
		in.hub.RoomUpdate(tick.RoomID.String(), newTotal, nil)
	}
	return nil
}

// accumulate folds a tick into the room's currently open ProductionReport,
// creating one if none exists yet for the resolved (shift, week) — spec
// §3's "ProductionReport: created open at shift start, mutated only by
// telemetry appends until close_shift" lifecycle.
func (in *Ingestor) accumulate(tick Tick) (float64, error) {
	shiftID := shiftForTime(tick.Ts)
	weekID := isoWeekID(tick.Ts)

	var report store.ProductionReport
	err := in.db.GORM().Where("room_id = ? AND shift_id = ? AND week_id = ? AND closed = ?", tick.RoomID, shiftID, weekID, false).
		First(&report).Error
	if err != nil {
		report = store.ProductionReport{
			RoomID:      tick.RoomID,
			ShiftID:     string(shiftID),
			WeekID:      weekID,
			GrossTokens: "0",
			TipsTotal:   "0",
			Closed:      false,
		}
		if cerr := in.db.GORM().Create(&report).Error; cerr != nil {
			return 0, apperr.Wrap(apperr.KindDownstreamUnavailable, "telemetry: open production report", cerr)
		}
	}

	gross, _ := decimal.NewFromString(report.GrossTokens)
	tips, _ := decimal.NewFromString(report.TipsTotal)
	gross = gross.Add(tick.Tokens)
	tips = tips.Add(tick.Tips)

	report.GrossTokens = gross.String()
	report.TipsTotal = tips.String()
	report.LastViewerCount = tick.Viewers
	if err := in.db.GORM().Save(&report).Error; err != nil {
		return 0, apperr.Wrap(apperr.KindDownstreamUnavailable, "telemetry: accumulate production report", err)
	}

	total, _ := gross.Float64()
	return total, nil
}

// shiftForTime buckets a UTC instant into the studio's four fixed shift
// windows (identity.Shift1..4's hour ranges), independent of any single
// user's weekly assignment — telemetry arrives per room, not per user.
func shiftForTime(t time.Time) identity.Shift {
	h := t.UTC().Hour()
	switch {
	case h >= 2 && h < 8:
		return identity.Shift1
	case h >= 8 && h < 14:
		return identity.Shift2
	case h >= 14 && h < 20:
		return identity.Shift3
	default:
		return identity.Shift4
	}
}

// isoWeekID formats an ISO year-week identifier, matching
// internal/attendance's own helper of the same shape.
func isoWeekID(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
