package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
)

func TestHaversineMeters_SamePointIsZero(t *testing.T) {
	assert.InDelta(t, 0.0, haversineMeters(4.7010, -74.0420, 4.7010, -74.0420), 1e-6)
}

func TestHaversineMeters_KnownDistance(t *testing.T) {
	// Bogota (4.7110, -74.0721) to its own geofence anchor roughly 3.5km
	// away — a loose sanity bound, not an exact fixture.
	d := haversineMeters(4.7010, -74.0420, 4.7110, -74.0721)
	assert.Greater(t, d, 1000.0)
	assert.Less(t, d, 5000.0)
}

func TestShiftStartHour_AllShifts(t *testing.T) {
	cases := []struct {
		shift identity.Shift
		hour  int
	}{
		{identity.Shift1, 2},
		{identity.Shift2, 8},
		{identity.Shift3, 14},
		{identity.Shift4, 20},
	}
	for _, tc := range cases {
		hour, err := shiftStartHour(tc.shift)
		require.NoError(t, err)
		assert.Equal(t, tc.hour, hour)
	}
}

func TestShiftStartHour_UnknownShiftErrors(t *testing.T) {
	_, err := shiftStartHour(identity.Shift("BOGUS"))
	assert.Error(t, err)
}

func TestResolveShiftStart_SameDayShift(t *testing.T) {
	checkIn := time.Date(2025, 3, 10, 8, 5, 0, 0, time.UTC)
	start, err := resolveShiftStart(identity.Shift2, checkIn)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), start)
}

func TestResolveShiftStart_Shift4CrossesMidnightBackward(t *testing.T) {
	// A 01:30 check-in against S4 (20:00-02:00) belongs to the shift
	// that started at 20:00 the previous day.
	checkIn := time.Date(2025, 3, 10, 1, 30, 0, 0, time.UTC)
	start, err := resolveShiftStart(identity.Shift4, checkIn)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 9, 20, 0, 0, 0, time.UTC), start)
}

func TestResolveShiftStart_Shift4SameDayAfterStart(t *testing.T) {
	checkIn := time.Date(2025, 3, 10, 21, 0, 0, 0, time.UTC)
	start, err := resolveShiftStart(identity.Shift4, checkIn)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC), start)
}

func TestIsoWeekID_Format(t *testing.T) {
	ts := time.Date(2025, 2, 17, 10, 0, 0, 0, time.UTC)
	assert.Regexp(t, `^\d{4}-W\d{2}$`, isoWeekID(ts))
}
