package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
)

func TestShiftForTime_BucketsHourRanges(t *testing.T) {
	cases := []struct {
		hour int
		want identity.Shift
	}{
		{2, identity.Shift1},
		{7, identity.Shift1},
		{8, identity.Shift2},
		{13, identity.Shift2},
		{14, identity.Shift3},
		{19, identity.Shift3},
		{20, identity.Shift4},
		{1, identity.Shift4},
	}
	for _, tc := range cases {
		ts := time.Date(2025, 2, 3, tc.hour, 0, 0, 0, time.UTC)
		assert.Equal(t, tc.want, shiftForTime(ts), "hour=%d", tc.hour)
	}
}

func TestIsoWeekID_Format(t *testing.T) {
	ts := time.Date(2025, 2, 17, 10, 0, 0, 0, time.UTC)
	year, week := ts.ISOWeek()
	assert.Equal(t, year, 2025)
	assert.Regexp(t, `^\d{4}-W\d{2}$`, isoWeekID(ts))
	_ = week
}

func TestIngest_RejectsUnallowlistedPlatform(t *testing.T) {
	in := New(nil, nil, nil, zerolog.Nop(), Config{
		AllowedPlatforms: []string{"CAM4"},
		DedupeWindow:     30 * time.Second,
		RateLimitPerMin:  120,
	})

	err := in.Ingest(context.Background(), Tick{
		RoomID:   identity.NewID(),
		Platform: "UNKNOWN_PLATFORM",
		Tokens:   decimal.NewFromInt(100),
		Ts:       time.Now(),
	})
	assert.Error(t, err)
}

func TestIngest_RejectsZeroRoomID(t *testing.T) {
	in := New(nil, nil, nil, zerolog.Nop(), Config{
		AllowedPlatforms: []string{"CAM4"},
	})

	err := in.Ingest(context.Background(), Tick{
		Platform: "CAM4",
		Tokens:   decimal.NewFromInt(100),
		Ts:       time.Now(),
	})
	assert.Error(t, err)
}
