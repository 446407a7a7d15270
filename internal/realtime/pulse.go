package realtime

import (
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

// RoomShiftSnapshot is one room/shift line in a pulse snapshot (spec
// §4.6).
type RoomShiftSnapshot struct {
	RoomID           string
	ShiftID          string
	CurrentTokens    float64
	TargetTokens     float64
	Dirty            bool
	ActiveModels     int
	TimeRemainingSec int64
}

// FinancialHealth is the finance sub-section of a pulse snapshot (spec
// §4.6).
type FinancialHealth struct {
	DayRevenueCOP        float64
	ProjectedWeekPayout  float64
	PenaltiesTodayCOP    float64
	TotalXPBalance       int64
	RewardsRedeemedCount int64
	RewardsRedeemedValue int64
}

// Snapshot is the CEO-facing point-in-time aggregation (spec §4.6).
type Snapshot struct {
	OnlineUsers          int64
	RoomShifts           []RoomShiftSnapshot
	Finance              FinancialHealth
	SecurityAlertsToday  int64
	PendingRedemptions   int64
	ComputedAt           time.Time
	ComputeDurationMs    float64
}

// Aggregator runs the pulse sub-queries in parallel with graceful
// degradation (spec §4.6: "any single sub-query that errors returns
// its zero value; the overall response always succeeds").
type Aggregator struct {
	db      *store.DB
	hub     *Hub
	logger  zerolog.Logger
	metrics *Metrics
}

// NewAggregator constructs a pulse Aggregator. metrics may be nil.
func NewAggregator(db *store.DB, hub *Hub, logger zerolog.Logger, metrics *Metrics) *Aggregator {
	return &Aggregator{db: db, hub: hub, logger: logger.With().Str("component", "pulse").Logger(), metrics: metrics}
}

// Pulse computes the snapshot (spec §6 pulse()).
func (a *Aggregator) Pulse() Snapshot {
	start := time.Now()
	var (
		onlineUsers        int64
		roomShifts         []RoomShiftSnapshot
		finance            FinancialHealth
		securityAlerts     int64
		pendingRedemptions int64
	)

	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		defer a.recoverSubquery("online_users")
		onlineUsers = a.onlineUsers()
	}()
	go func() {
		defer wg.Done()
		defer a.recoverSubquery("room_shifts")
		roomShifts = a.roomShifts()
	}()
	go func() {
		defer wg.Done()
		defer a.recoverSubquery("financial_health")
		finance = a.financialHealth()
	}()
	go func() {
		defer wg.Done()
		defer a.recoverSubquery("security_alerts")
		securityAlerts = a.securityAlertsToday()
	}()
	go func() {
		defer wg.Done()
		defer a.recoverSubquery("pending_redemptions")
		pendingRedemptions = a.pendingRedemptionsCount()
	}()

	wg.Wait()

	duration := float64(time.Since(start).Microseconds()) / 1000.0
	if a.metrics != nil {
		a.metrics.PulseDuration.Observe(duration)
	}

	return Snapshot{
		OnlineUsers:         onlineUsers,
		RoomShifts:          roomShifts,
		Finance:             finance,
		SecurityAlertsToday: securityAlerts,
		PendingRedemptions:  pendingRedemptions,
		ComputedAt:          time.Now().UTC(),
		ComputeDurationMs:   duration,
	}
}

// recoverSubquery swallows a panic from a sub-query goroutine so one
// failing query never takes down the whole pulse response.
func (a *Aggregator) recoverSubquery(name string) {
	if r := recover(); r != nil {
		a.logger.Warn().Interface("panic", r).Str("subquery", name).Msg("pulse sub-query failed — degraded to zero value")
		if a.metrics != nil {
			a.metrics.PulseDegradations.WithLabelValues(name).Inc()
		}
	}
}

// onlineUsers counts active check-ins with no matching check-out
// (spec §4.6's "online users" sub-query — this core's AttendanceEvent
// model has no explicit check-out row, so "active" is approximated as
// the distinct users with a check-in in the last 8 hours).
func (a *Aggregator) onlineUsers() int64 {
	var count int64
	cutoff := time.Now().UTC().Add(-8 * time.Hour)
	err := a.db.GORM().Model(&store.AttendanceEvent{}).
		Where("check_in_at > ?", cutoff).
		Distinct("user_id").
		Count(&count).Error
	if err != nil {
		return 0
	}
	return count
}

// roomShifts aggregates current tokens per open ProductionReport.
func (a *Aggregator) roomShifts() []RoomShiftSnapshot {
	var reports []store.ProductionReport
	if err := a.db.GORM().Where("closed = ?", false).Find(&reports).Error; err != nil {
		return nil
	}
	out := make([]RoomShiftSnapshot, 0, len(reports))
	for _, r := range reports {
		var memberCount int64
		a.db.GORM().Model(&store.ProductionReportMember{}).
			Where("production_report_id = ?", r.ID).Count(&memberCount)

		tokens := 0.0
		if r.GrossTokens != "" {
			if v, err := parseFloat(r.GrossTokens); err == nil {
				tokens = v
			}
		}
		out = append(out, RoomShiftSnapshot{
			RoomID:        r.RoomID.String(),
			ShiftID:       r.ShiftID,
			CurrentTokens: tokens,
			Dirty:         r.RoomDirty,
			ActiveModels: int(memberCount),
		})
	}
	return out
}

// financialHealth aggregates today's revenue, penalties, XP, and
// reward redemption value.
func (a *Aggregator) financialHealth() FinancialHealth {
	today := time.Now().UTC().Truncate(24 * time.Hour)

	var penalties []store.PayrollEntry
	a.db.GORM().Where("status = ? AND created_at >= ?", "PENALTY", today).Find(&penalties)
	var penaltyTotal float64
	for _, p := range penalties {
		if v, err := parseFloat(p.AmountCOP); err == nil {
			penaltyTotal += -v
		}
	}

	var dayEntries []store.PayrollEntry
	a.db.GORM().Where("created_at >= ? AND status != ?", today, "PENALTY").Find(&dayEntries)
	var dayRevenue float64
	for _, e := range dayEntries {
		if v, err := parseFloat(e.AmountCOP); err == nil {
			dayRevenue += v
		}
	}

	var totalXP int64
	a.db.GORM().Model(&store.XPBalance{}).Select("COALESCE(SUM(xp), 0)").Scan(&totalXP)

	var redemptions []store.RewardRedemption
	a.db.GORM().Find(&redemptions)
	var redeemedValue int64
	for _, r := range redemptions {
		redeemedValue += r.XPCost
	}

	return FinancialHealth{
		DayRevenueCOP:        dayRevenue,
		ProjectedWeekPayout:  dayRevenue * 7,
		PenaltiesTodayCOP:    penaltyTotal,
		TotalXPBalance:       totalXP,
		RewardsRedeemedCount: int64(len(redemptions)),
		RewardsRedeemedValue: redeemedValue,
	}
}

// securityAlertsToday counts today's late check-in attendance events.
// This core has no alerts table, and OUT_OF_STUDIO geofence rejections
// are returned to the caller without appending an attendance event, so
// they are not part of this count.
func (a *Aggregator) securityAlertsToday() int64 {
	var count int64
	today := time.Now().UTC().Truncate(24 * time.Hour)
	a.db.GORM().Model(&store.AttendanceEvent{}).
		Where("is_late = ? AND check_in_at >= ?", true, today).Count(&count)
	return count
}

func (a *Aggregator) pendingRedemptionsCount() int64 {
	// Redemptions are applied synchronously in this core (spec §6
	// redeem()), so there is no separate pending queue; reported as 0
	// unless a future approval workflow is added.
	return 0
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
