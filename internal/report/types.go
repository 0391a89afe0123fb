package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/TracklensDev/tracklens/internal/analytics"
)

// ProjectOptions tunes the project profitability report.
type ProjectOptions struct {
	SortBy   analytics.SortKey
	MinHours float64
	// LaborCostPercentage overrides the configured labor share for this
	// request; nil keeps the deployment default.
	LaborCostPercentage *decimal.Decimal
}

// ClientOptions tunes the client profitability report.
type ClientOptions struct {
	MinRevenue decimal.Decimal
}

// TeamOptions tunes the team productivity report.
type TeamOptions struct {
	// IncludeIndividual adds the per-employee records alongside the
	// team-wide metrics.
	IncludeIndividual bool
}

// FinancialOptions tunes the financial summary.
type FinancialOptions struct {
	// ComparePrevious also fetches the immediately preceding period of
	// equal length and emits deltas against it.
	ComparePrevious bool
}

// InsightsOptions tunes the productivity insights report.
type InsightsOptions struct {
	// IncludePatterns adds temporal work-pattern analysis computed from
	// the detailed entries.
	IncludePatterns bool
}

// EmployeeOptions tunes the employee breakdown.
type EmployeeOptions struct {
	// IncludeEntries adds a digest of the employee's first reported
	// time entries for the period.
	IncludeEntries bool
}

// SummaryStats are the cross-record totals a profitability report
// leads with. AverageMargin is the mean of per-record margins, not
// profit over revenue.
type SummaryStats struct {
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	AverageMargin float64         `json:"average_margin"`
}

func summarize(records []analytics.ProfitabilityRecord) SummaryStats {
	var stats SummaryStats
	if len(records) == 0 {
		return stats
	}
	var margins float64
	for _, r := range records {
		stats.TotalRevenue = stats.TotalRevenue.Add(r.Revenue)
		stats.TotalProfit = stats.TotalProfit.Add(r.Profit)
		margins += r.ProfitMargin
	}
	stats.AverageMargin = margins / float64(len(records))
	return stats
}

// ProjectReport is the per-project profitability response.
type ProjectReport struct {
	Workspace   analytics.WorkspaceInfo         `json:"workspace"`
	Period      string                          `json:"period"`
	Projects    []analytics.ProfitabilityRecord `json:"projects"`
	Stats       SummaryStats                    `json:"stats"`
	GeneratedAt time.Time                       `json:"generated_at"`
}

// ClientReport is the per-client profitability response.
type ClientReport struct {
	Workspace   analytics.WorkspaceInfo         `json:"workspace"`
	Period      string                          `json:"period"`
	Clients     []analytics.ProfitabilityRecord `json:"clients"`
	Stats       SummaryStats                    `json:"stats"`
	GeneratedAt time.Time                       `json:"generated_at"`
}

// TeamReport carries the team-wide metrics, optionally with the
// individual employee records that fed them.
type TeamReport struct {
	Workspace   analytics.WorkspaceInfo            `json:"workspace"`
	Period      string                             `json:"period"`
	Metrics     *analytics.TeamProductivityMetrics `json:"metrics"`
	Individual  []analytics.ProfitabilityRecord    `json:"individual,omitempty"`
	GeneratedAt time.Time                          `json:"generated_at"`
}

// FinancialReport is the workspace financial summary, optionally with
// the preceding period and the deltas between the two.
type FinancialReport struct {
	Workspace      analytics.WorkspaceInfo     `json:"workspace"`
	Period         string                      `json:"period"`
	Current        *analytics.FinancialSummary `json:"current"`
	PreviousPeriod string                      `json:"previous_period,omitempty"`
	Previous       *analytics.FinancialSummary `json:"previous,omitempty"`
	Delta          *FinancialDelta             `json:"delta,omitempty"`
	GeneratedAt    time.Time                   `json:"generated_at"`
}

// FinancialDelta is current minus previous for the headline figures.
type FinancialDelta struct {
	Hours         float64         `json:"hours"`
	BillableHours float64         `json:"billable_hours"`
	Revenue       decimal.Decimal `json:"revenue"`
	Utilization   float64         `json:"utilization"`
}

// ProductivityReport combines the grouped-report snapshot with the
// detailed-entry profitability block and optional pattern analysis.
type ProductivityReport struct {
	Workspace   analytics.WorkspaceInfo          `json:"workspace"`
	Period      string                           `json:"period"`
	Snapshot    *analytics.ProductivitySnapshot  `json:"snapshot"`
	Detailed    *analytics.DetailedProfitability `json:"detailed"`
	Patterns    *analytics.TimeTrackingInsights  `json:"patterns,omitempty"`
	GeneratedAt time.Time                        `json:"generated_at"`
}

// BillingReport wraps the billing analysis with workspace context.
type BillingReport struct {
	Workspace   analytics.WorkspaceInfo    `json:"workspace"`
	Analysis    *analytics.BillingAnalysis `json:"analysis"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// EmployeeBreakdown is one employee's period rollup with per-project
// attribution. AverageRate is revenue over total hours, nil when no
// hours were tracked.
type EmployeeBreakdown struct {
	Workspace     analytics.WorkspaceInfo `json:"workspace"`
	EmployeeName  string                  `json:"employee_name"`
	Period        string                  `json:"period"`
	TotalHours    float64                 `json:"total_hours"`
	TotalRevenue  decimal.Decimal         `json:"total_revenue"`
	LaborCost     decimal.Decimal         `json:"labor_cost"`
	Profit        decimal.Decimal         `json:"profit"`
	ProfitMargin  float64                 `json:"profit_margin"`
	AverageRate   *decimal.Decimal        `json:"average_rate"`
	Projects      []EmployeeProject       `json:"projects"`
	RecentEntries []EntryDigest           `json:"recent_entries,omitempty"`
	GeneratedAt   time.Time               `json:"generated_at"`
}

// EmployeeProject is one project an employee worked on, with the hours
// attributed from detailed entries.
type EmployeeProject struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
}

// EntryDigest is one time entry compressed to its reporting essentials.
type EntryDigest struct {
	Description string          `json:"description"`
	Hours       float64         `json:"hours"`
	Revenue     decimal.Decimal `json:"revenue"`
}
