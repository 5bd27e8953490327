package generic

// =============================================================================
// PERIOD - A closed range of calendar days
// =============================================================================

// Period is the inclusive day range [Start, End]. Leave requests are
// periods; a one-day request has Start == End.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Valid reports whether Start is not after End.
func (p Period) Valid() bool {
	return p.Start.BeforeOrEqual(p.End)
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps reports whether two periods share at least one day.
// Touching periods ([1,3] and [3,5]) overlap; adjacent ones ([1,3] and [4,5]) do not.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Days returns the number of calendar days in the period, both ends included.
func (p Period) Days() int {
	return InclusiveDays(p.Start, p.End)
}

// Year is the calendar year a period is charged against: the year of its first day.
func (p Period) Year() int {
	return p.Start.Year()
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
