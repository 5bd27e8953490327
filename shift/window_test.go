package shift_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/workforce-engine/generic"
	"github.com/warp/workforce-engine/shift"
)

func TestIsWithinClockInWindow_Boundaries(t *testing.T) {
	start := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"1h1s early", start.Add(-time.Hour - time.Second), false},
		{"1h early", start.Add(-time.Hour), true},
		{"at start", start, true},
		{"2h late", start.Add(2 * time.Hour), true},
		{"2h1s late", start.Add(2*time.Hour + time.Second), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shift.IsWithinClockInWindow(tt.now, start))
		})
	}
}

func TestClockOutRemaining(t *testing.T) {
	in := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, 15*time.Minute, shift.ClockOutRemaining(in, in))
	assert.Equal(t, time.Second, shift.ClockOutRemaining(in.Add(14*time.Minute+59*time.Second), in))
	assert.Zero(t, shift.ClockOutRemaining(in.Add(15*time.Minute), in))
	assert.Zero(t, shift.ClockOutRemaining(in.Add(8*time.Hour), in))
}

func TestWorkedHours_RoundsToTwoPlaces(t *testing.T) {
	in := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		worked time.Duration
		want   string
	}{
		{15 * time.Minute, "0.25"},
		{20 * time.Minute, "0.33"},
		{40 * time.Minute, "0.67"},
		{8 * time.Hour, "8"},
		{8*time.Hour + 1*time.Second, "8"},
	}
	for _, tt := range tests {
		t.Run(tt.worked.String(), func(t *testing.T) {
			got := shift.WorkedHours(in, in.Add(tt.worked))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestShiftStart_UsesLocation(t *testing.T) {
	nairobi, err := time.LoadLocation("Africa/Nairobi")
	require.NoError(t, err)

	start, err := shift.ShiftStart(generic.NewTimePoint(2025, time.June, 1), "09:30", nairobi)
	require.NoError(t, err)
	assert.True(t, start.Equal(time.Date(2025, time.June, 1, 6, 30, 0, 0, time.UTC)))

	_, err = shift.ShiftStart(generic.NewTimePoint(2025, time.June, 1), "9h30", nairobi)
	assert.Error(t, err)
}
