// Package attendance implements C4: the disciplinary state machine —
// geofenced check-in, ISO-week strike tallying, and strike escalation
// (spec §4.4). Grounded on
// original_source/sweet_models_enterprise/backend_api/src/operations/
// attendance.rs's haversine/shift/apply_strike algorithm.
package attendance

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/SweetModels/sweet-models-enterprise/internal/apperr"
	"github.com/SweetModels/sweet-models-enterprise/internal/cache"
	"github.com/SweetModels/sweet-models-enterprise/internal/escalation"
	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
	"github.com/SweetModels/sweet-models-enterprise/internal/store"
)

// earthRadiusMeters is the sphere radius used by the haversine formula
// (spec §4.4).
const earthRadiusMeters = 6_371_000.0

// GeoConfig is the studio geofence configuration.
type GeoConfig struct {
	Lat          float64
	Lon          float64
	RadiusMeters float64
	GraceMinutes int
}

// StrikeHalfPayTTL is how long the "pay today at 50%" ephemeral flag
// lives (spec §9 open question: cache-only, does not survive restart).
const StrikeHalfPayTTL = 24 * time.Hour

// CheckInResult is the external response shape (spec §6 check_in).
type CheckInResult struct {
	ID      uint
	IsLate  bool
	Message string
}

// StatusResult is the external response shape (spec §6 attendance_status).
type StatusResult struct {
	Strikes  int64
	LastLate *time.Time
	Note     string
}

// Engine drives attendance check-ins and strike escalation.
type Engine struct {
	db         *store.DB
	cache      *cache.Client
	geo        GeoConfig
	escalation *escalation.Pipeline
}

// New constructs an attendance Engine.
func New(db *store.DB, c *cache.Client, geo GeoConfig, pipeline *escalation.Pipeline) *Engine {
	return &Engine{db: db, cache: c, geo: geo, escalation: pipeline}
}

// haversineMeters computes the great-circle distance between two
// lat/lon points in meters (spec §4.4).
func haversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Pow(math.Sin(dLon/2), 2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// shiftStartHour returns the scheduled local start hour for a shift
// (spec §3, §4.4).
func shiftStartHour(s identity.Shift) (int, error) {
	return s.StartHour()
}

// resolveShiftStart computes the UTC instant the assigned shift starts
// for a given check-in instant, handling S4's midnight crossing (spec
// §4.4 step 3).
func resolveShiftStart(shift identity.Shift, checkInAt time.Time) (time.Time, error) {
	hour, err := shiftStartHour(shift)
	if err != nil {
		return time.Time{}, err
	}

	checkDate := checkInAt.UTC()
	effectiveDay := time.Date(checkDate.Year(), checkDate.Month(), checkDate.Day(), 0, 0, 0, 0, time.UTC)

	if shift == identity.Shift4 && checkDate.Hour() < 6 {
		effectiveDay = effectiveDay.AddDate(0, 0, -1)
	}

	return time.Date(effectiveDay.Year(), effectiveDay.Month(), effectiveDay.Day(), hour, 0, 0, 0, time.UTC), nil
}

// isoWeekID formats an ISO year-week identifier (e.g. "2025-W07"),
// spec's GLOSSARY "ISO week".
func isoWeekID(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// CheckIn validates geofence, resolves the assigned shift, computes
// lateness, appends the AttendanceEvent, and — if late — enqueues an
// escalation task. The attendance append always succeeds independent of
// escalation outcome (spec §4.4, §9 decoupling note).
func (e *Engine) CheckIn(userID identity.ID, lat, lon float64, photoRef string, now time.Time) (CheckInResult, error) {
	dist := haversineMeters(lat, lon, e.geo.Lat, e.geo.Lon)
	if dist > e.geo.RadiusMeters {
		return CheckInResult{}, apperr.WithCode(apperr.KindValidationFailed, apperr.CodeOutOfStudio, "check-in location is outside the studio geofence")
	}

	weekID := isoWeekID(now)

	var assignment store.WeeklyShiftAssignment
	err := e.db.GORM().Where("user_id = ? AND week_id = ?", userID, weekID).First(&assignment).Error
	if err == gorm.ErrRecordNotFound {
		return CheckInResult{}, apperr.WithCode(apperr.KindValidationFailed, apperr.CodeNoShift, "no shift assigned for this week")
	}
	if err != nil {
		return CheckInResult{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "attendance: load shift assignment", err)
	}

	shiftStart, err := resolveShiftStart(identity.Shift(assignment.Shift), now)
	if err != nil {
		return CheckInResult{}, apperr.Wrap(apperr.KindValidationFailed, "attendance: resolve shift start", err)
	}
	startWithGrace := shiftStart.Add(time.Duration(e.geo.GraceMinutes) * time.Minute)
	isLate := now.After(startWithGrace)

	event := store.AttendanceEvent{
		UserID:    userID,
		CheckInAt: now.UTC(),
		IsLate:    isLate,
		PhotoRef:  photoRef,
		Lat:       lat,
		Lon:       lon,
		WeekID:    weekID,
	}
	if err := e.db.GORM().Create(&event).Error; err != nil {
		return CheckInResult{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "attendance: append check-in", err)
	}

	message := "check-in recorded"
	if isLate {
		message = "late check-in recorded"
		strikes, cerr := e.strikeCount(userID, weekID)
		if cerr == nil {
			e.escalation.Enqueue(escalation.Task{
				UserID:  userID,
				WeekID:  weekID,
				Strikes: strikes,
				At:      now.UTC(),
			})
		}
	}

	return CheckInResult{ID: event.ID, IsLate: isLate, Message: message}, nil
}

// strikeCount returns the number of late check-ins for a user within
// the given ISO week (the derived StrikeTally view, spec §3).
func (e *Engine) strikeCount(userID identity.ID, weekID string) (int64, error) {
	var count int64
	err := e.db.GORM().Model(&store.AttendanceEvent{}).
		Where("user_id = ? AND week_id = ? AND is_late = ?", userID, weekID, true).
		Count(&count).Error
	if err != nil {
		return 0, apperr.Wrap(apperr.KindDownstreamUnavailable, "attendance: count strikes", err)
	}
	return count, nil
}

// AttendanceStatus returns the current week's strike count and the most
// recent late check-in (spec §6 attendance_status).
func (e *Engine) AttendanceStatus(userID identity.ID, now time.Time) (StatusResult, error) {
	weekID := isoWeekID(now)
	strikes, err := e.strikeCount(userID, weekID)
	if err != nil {
		return StatusResult{}, err
	}

	var lastEvent store.AttendanceEvent
	err = e.db.GORM().Where("user_id = ? AND is_late = ?", userID, true).
		Order("check_in_at DESC").First(&lastEvent).Error
	var lastLate *time.Time
	if err == nil {
		t := lastEvent.CheckInAt
		lastLate = &t
	} else if err != gorm.ErrRecordNotFound {
		return StatusResult{}, apperr.Wrap(apperr.KindDownstreamUnavailable, "attendance: load last late event", err)
	}

	note := "in good standing"
	switch {
	case strikes >= 3:
		note = "strike 3 penalty applied"
	case strikes == 2:
		note = "week payroll downgraded 50%"
	case strikes == 1:
		note = "today's pay flagged at 50%"
	}

	return StatusResult{Strikes: strikes, LastLate: lastLate, Note: note}, nil
}
