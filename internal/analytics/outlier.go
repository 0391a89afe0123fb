package analytics

// Hour totals above a plausibility threshold are treated as upstream
// data corruption (duplicated entries, runaway timers) and capped before
// any ratio is derived from them. Capping applies to aggregated totals
// per entity, never to individual raw entries.

const (
	// DefaultHourCapThreshold is one full week of wall-clock hours;
	// a single entity exceeding it within a report period is implausible.
	DefaultHourCapThreshold = 168.0
	// DefaultHourCapCeiling is the value totals are clamped to once the
	// threshold trips: two working weeks at full tilt.
	DefaultHourCapCeiling = 80.0
)

// HourCap clamps implausible hour totals.
type HourCap struct {
	Threshold float64
	Ceiling   float64
}

// DefaultHourCap returns the standard 168h threshold / 80h ceiling cap.
func DefaultHourCap() HourCap {
	return HourCap{Threshold: DefaultHourCapThreshold, Ceiling: DefaultHourCapCeiling}
}

// Apply returns capped totals along with whether the cap fired. Billable
// hours can never exceed total hours after capping, and non-billable
// hours are recomputed from the capped pair.
func (c HourCap) Apply(totalHours, billableHours float64) (total, billable, nonBillable float64, capped bool) {
	total, billable = totalHours, billableHours
	if total > c.Threshold {
		total = min(total, c.Ceiling)
		billable = min(billable, total)
		capped = true
	}
	return total, billable, total - billable, capped
}
