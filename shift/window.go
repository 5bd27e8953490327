package shift

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/workforce-engine/generic"
)

// =============================================================================
// TIME WINDOWS - Pure functions of (now, shift start)
// =============================================================================

const (
	// ClockInEarly is how long before the shift start clock-in opens.
	ClockInEarly = time.Hour
	// ClockInLate is how long after the shift start clock-in stays open.
	ClockInLate = 2 * time.Hour
	// MinimumWorked is the shortest time between clock-in and clock-out.
	MinimumWorked = 15 * time.Minute
)

var millisPerHour = decimal.NewFromInt(int64(time.Hour / time.Millisecond))

// ShiftStart combines a calendar day and an "HH:MM" start time in loc.
func ShiftStart(date generic.TimePoint, startTime string, loc *time.Location) (time.Time, error) {
	hour, minute, err := generic.ParseClock(startTime)
	if err != nil {
		return time.Time{}, err
	}
	return date.At(hour, minute, loc), nil
}

// ClockInWindow is [start-1h, start+2h].
func ClockInWindow(start time.Time) generic.Window {
	return generic.Window{Opens: start.Add(-ClockInEarly), Closes: start.Add(ClockInLate)}
}

// IsWithinClockInWindow reports whether now lies in the clock-in window,
// both boundaries inclusive.
func IsWithinClockInWindow(now, start time.Time) bool {
	return ClockInWindow(start).Contains(now)
}

// ClockOutRemaining is how long the staff member must still wait before
// clocking out. Zero means clock-out is allowed.
func ClockOutRemaining(now, clockIn time.Time) time.Duration {
	earliest := clockIn.Add(MinimumWorked)
	if !now.Before(earliest) {
		return 0
	}
	return earliest.Sub(now)
}

// WorkedHours is (out-in) in hours, rounded to 2 decimal places.
func WorkedHours(in, out time.Time) decimal.Decimal {
	ms := decimal.NewFromInt(out.Sub(in).Milliseconds())
	return ms.Div(millisPerHour).Round(2)
}

func minutesRemaining(d time.Duration) string {
	n := int(math.Ceil(d.Minutes()))
	if n == 1 {
		return "1 minute remaining"
	}
	return fmt.Sprintf("%d minutes remaining", n)
}
