// Package period resolves reporting windows from explicit dates or
// named calendar periods.
package period

import (
	"fmt"
	"time"
)

// DateFormat is the wire format for range boundaries.
const DateFormat = "2006-01-02"

// Named calendar periods accepted by Resolve.
const (
	Week    = "week"
	Month   = "month"
	Quarter = "quarter"
	Year    = "year"
)

// Range is an inclusive reporting window. Only the date parts matter;
// both bounds are UTC midnights.
type Range struct {
	Start time.Time
	End   time.Time
}

// Since is the inclusive lower bound in wire format.
func (r Range) Since() string { return r.Start.Format(DateFormat) }

// Until is the inclusive upper bound in wire format.
func (r Range) Until() string { return r.End.Format(DateFormat) }

// String renders the range the way reports label their period.
func (r Range) String() string { return r.Since() + " to " + r.Until() }

// Days is the number of calendar days the range covers.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Previous is the adjacent window of the same length, ending the day
// before this one starts.
func (r Range) Previous() Range {
	end := r.Start.AddDate(0, 0, -1)
	return Range{Start: end.AddDate(0, 0, -(r.Days() - 1)), End: end}
}

// Resolve picks the reporting window. Explicit dates win when both are
// given, a single one is rejected as a caller mistake, and otherwise the
// named period selects a calendar window around now. An empty name means
// the current month.
func Resolve(startDate, endDate, name string, now time.Time) (Range, error) {
	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return Range{}, fmt.Errorf("start_date and end_date must be given together")
		}
		start, err := time.Parse(DateFormat, startDate)
		if err != nil {
			return Range{}, fmt.Errorf("invalid start_date %q: %w", startDate, err)
		}
		end, err := time.Parse(DateFormat, endDate)
		if err != nil {
			return Range{}, fmt.Errorf("invalid end_date %q: %w", endDate, err)
		}
		if end.Before(start) {
			return Range{}, fmt.Errorf("end_date %s precedes start_date %s", endDate, startDate)
		}
		return Range{Start: start, End: end}, nil
	}

	y, m, d := now.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	switch name {
	case Week:
		// Monday through Sunday.
		offset := (int(today.Weekday()) + 6) % 7
		start := today.AddDate(0, 0, -offset)
		return Range{Start: start, End: start.AddDate(0, 0, 6)}, nil
	case Quarter:
		first := time.Month((int(m)-1)/3*3 + 1)
		start := time.Date(y, first, 1, 0, 0, 0, 0, time.UTC)
		return Range{Start: start, End: start.AddDate(0, 3, -1)}, nil
	case Year:
		return Range{
			Start: time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC),
		}, nil
	case Month, "":
		start := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
		return Range{Start: start, End: start.AddDate(0, 1, -1)}, nil
	default:
		return Range{}, fmt.Errorf("unknown period %q", name)
	}
}
