package analytics

import (
	"sort"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// DefaultExpectedHoursPerPerson is full-time monthly capacity.
const DefaultExpectedHoursPerPerson = 160.0

// underperformerUtilization is the billable-share floor below which an
// employee is flagged.
const underperformerUtilization = 60.0

// TeamMetricsCalculator derives workspace-wide productivity from
// per-employee profitability records.
type TeamMetricsCalculator struct {
	// ExpectedHoursPerPerson is each member's capacity for the period;
	// zero means DefaultExpectedHoursPerPerson.
	ExpectedHoursPerPerson float64
}

// Compute rolls employee records up to team metrics. Capacity ratios
// guard their denominators: an empty team reports zeros, never NaN.
func (c TeamMetricsCalculator) Compute(employees []ProfitabilityRecord, workspaceID int64) *TeamProductivityMetrics {
	expected := c.ExpectedHoursPerPerson
	if expected == 0 {
		expected = DefaultExpectedHoursPerPerson
	}

	teamSize := len(employees)
	capacity := float64(teamSize) * expected

	var actualHours, billableHours float64
	var revenue decimal.Decimal
	for _, e := range employees {
		actualHours += e.TotalHours
		billableHours += e.BillableHours
		revenue = revenue.Add(e.Revenue)
	}

	top := make([]ProfitabilityRecord, len(employees))
	copy(top, employees)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].UtilizationRate() > top[j].UtilizationRate()
	})
	if len(top) > 5 {
		top = top[:5]
	}

	under := lo.Filter(employees, func(e ProfitabilityRecord, _ int) bool {
		return e.UtilizationRate() < underperformerUtilization
	})

	return &TeamProductivityMetrics{
		WorkspaceID:         workspaceID,
		TeamSize:            teamSize,
		TotalCapacityHours:  capacity,
		ActualHours:         actualHours,
		BillableHours:       billableHours,
		CapacityUtilization: Percent(actualHours, capacity),
		BillableUtilization: Percent(billableHours, actualHours),
		OverallEfficiency:   Percent(billableHours, capacity),
		TopPerformers:       top,
		Underperformers:     under,
		TeamAverageRate:     RatePerHour(revenue, billableHours),
	}
}
