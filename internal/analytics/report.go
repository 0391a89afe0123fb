package analytics

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// AdminReport is the full workspace report: one immutable composite
// built per query from already-computed components. Assembly never
// recomputes anything.
type AdminReport struct {
	ReportID               string                   `json:"report_id"`
	OrganizationSummary    *OrganizationSummary     `json:"organization_summary"`
	ProjectProfitability   []ProfitabilityRecord    `json:"project_profitability"`
	EmployeeProfitability  []ProfitabilityRecord    `json:"employee_profitability"`
	ClientProfitability    []ProfitabilityRecord    `json:"client_profitability"`
	TeamMetrics            *TeamProductivityMetrics `json:"team_metrics"`
	DetailedProfitability  *DetailedProfitability   `json:"detailed_profitability,omitempty"`
	GeneratedAt            time.Time                `json:"generated_at"`
	ReportPeriod           string                   `json:"report_period"`
}

// AssembleAdminReport stamps the composite with a fresh report id and
// generation time.
func AssembleAdminReport(
	org *OrganizationSummary,
	projects, employees, clients []ProfitabilityRecord,
	team *TeamProductivityMetrics,
	period string,
) *AdminReport {
	return &AdminReport{
		ReportID:              uuid.NewString(),
		OrganizationSummary:   org,
		ProjectProfitability:  projects,
		EmployeeProfitability: employees,
		ClientProfitability:   clients,
		TeamMetrics:           team,
		GeneratedAt:           time.Now().UTC(),
		ReportPeriod:          period,
	}
}

// TopByProfit returns the n most profitable projects, independent of
// the report's stored sort order.
func (r *AdminReport) TopByProfit(n int) []ProfitabilityRecord {
	ranked := make([]ProfitabilityRecord, len(r.ProjectProfitability))
	copy(ranked, r.ProjectProfitability)
	SortRecords(ranked, SortByProfit)
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// TopByUtilization returns the n employees with the highest billable
// share of their tracked hours.
func (r *AdminReport) TopByUtilization(n int) []ProfitabilityRecord {
	ranked := make([]ProfitabilityRecord, len(r.EmployeeProfitability))
	copy(ranked, r.EmployeeProfitability)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].UtilizationRate() > ranked[j].UtilizationRate()
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// BelowMargin returns projects whose profit margin is under threshold.
func (r *AdminReport) BelowMargin(threshold float64) []ProfitabilityRecord {
	return lo.Filter(r.ProjectProfitability, func(p ProfitabilityRecord, _ int) bool {
		return p.ProfitMargin < threshold
	})
}
