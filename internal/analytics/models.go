// Package analytics converts raw time-tracking report payloads into
// profitability and productivity metrics. All computation is pure: the
// package does no I/O and callers inject loggers for skip diagnostics.
package analytics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Schema identifies which upstream report shape a raw payload uses.
type Schema string

const (
	SchemaSummary    Schema = "summary"
	SchemaInsights   Schema = "insights"
	SchemaDetailedV3 Schema = "detailed_v3"
)

// ParseSchema validates a schema kind received from an API parameter.
func ParseSchema(s string) (Schema, error) {
	switch Schema(s) {
	case SchemaSummary, SchemaInsights, SchemaDetailedV3:
		return Schema(s), nil
	}
	return "", fmt.Errorf("unknown payload schema %q", s)
}

// Dimension is the grouping axis of a report payload.
type Dimension string

const (
	DimensionProject Dimension = "projects"
	DimensionClient  Dimension = "clients"
	DimensionUser    Dimension = "users"
)

// ParseDimension validates a grouping dimension received from an API parameter.
func ParseDimension(s string) (Dimension, error) {
	switch Dimension(s) {
	case DimensionProject, DimensionClient, DimensionUser:
		return Dimension(s), nil
	}
	return "", fmt.Errorf("unknown grouping dimension %q", s)
}

// RateBasis records what an entry's hourly rate means, decided once at
// normalization. Summary and insights payloads carry labor-cost rates;
// detailed v3 payloads carry billing rates, which contribute to labor
// cost only after the labor cost percentage is applied.
type RateBasis int

const (
	RateBasisLabor RateBasis = iota
	RateBasisBilling
)

// CanonicalEntry is the single normalized form every payload schema is
// reduced to. Produced once per raw sub-entry and immutable afterwards.
// Name fallbacks are resolved before construction; downstream code never
// inspects raw payload shapes.
type CanonicalEntry struct {
	EntityID   int64  // project, client, or user id depending on the dimension
	EntityName string // resolved display name for the entity
	ClientName string // client of the project, when the dimension is projects

	// Temporal fields are populated only by detailed v3 sources.
	Start       time.Time
	DurationMS  int64
	ProjectName string

	Hours         float64
	BillableHours float64
	Rate          decimal.Decimal
	RateBasis     RateBasis
	Revenue       decimal.Decimal

	// Entries counts the raw time entries this canonical entry stands
	// for: 1 for a real sub-entry, 0 for a group-level fallback row.
	Entries int
}

// ProfitabilityRecord is one aggregated entity (project, client, or
// employee) with its financial derivations. Profit is always
// revenue - labor cost; margin is zero when there is no revenue.
type ProfitabilityRecord struct {
	ID               int64            `json:"id"`
	Name             string           `json:"name"`
	ClientName       string           `json:"client_name,omitempty"`
	TotalHours       float64          `json:"total_hours"`
	BillableHours    float64          `json:"billable_hours"`
	NonBillableHours float64          `json:"non_billable_hours"`
	Revenue          decimal.Decimal  `json:"revenue"`
	LaborCost        decimal.Decimal  `json:"labor_cost"`
	Profit           decimal.Decimal  `json:"profit"`
	ProfitMargin     float64          `json:"profit_margin"`
	BillableRate     *decimal.Decimal `json:"billable_rate"` // nil when there are no billable hours
	ActiveUsers      int              `json:"active_users"`
	EntriesCount     int              `json:"entries_count"`
	Currency         string           `json:"currency"`
}

// UtilizationRate is the entity's billable share of total hours as a
// percentage, zero when no hours were tracked.
func (r ProfitabilityRecord) UtilizationRate() float64 {
	return Percent(r.BillableHours, r.TotalHours)
}

// WorkspaceInfo is the workspace context stamped onto reports.
type WorkspaceInfo struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// OrganizationSummary is the workspace-level rollup. Hours come from the
// summary payload totals, revenue from the insights currency totals, and
// labor cost from the per-entry rates, so the three sources reconcile the
// way the upstream APIs report them.
type OrganizationSummary struct {
	WorkspaceID       int64           `json:"workspace_id"`
	WorkspaceName     string          `json:"workspace_name"`
	DateRange         string          `json:"date_range"`
	Currency          string          `json:"currency"`
	TotalHours        float64         `json:"total_hours"`
	BillableHours     float64         `json:"billable_hours"`
	NonBillableHours  float64         `json:"non_billable_hours"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	TotalLaborCost    decimal.Decimal `json:"total_labor_cost"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
	AverageHourlyRate decimal.Decimal `json:"average_hourly_rate"`
	ActiveProjects    int             `json:"active_projects"`
	ActiveClients     int             `json:"active_clients"`
	ActiveUsers       int             `json:"active_users"`
	TotalTimeEntries  int             `json:"total_time_entries"`

	// Derived by FillActivity once the user and client dimensions have
	// been aggregated.
	AverageProjectSize float64 `json:"average_project_size"`
	AverageUserHours   float64 `json:"average_user_hours"`
}

// TeamProductivityMetrics describes workspace-wide utilization against a
// fixed monthly capacity per person.
type TeamProductivityMetrics struct {
	WorkspaceID         int64                 `json:"workspace_id"`
	TeamSize            int                   `json:"team_size"`
	TotalCapacityHours  float64               `json:"total_capacity_hours"`
	ActualHours         float64               `json:"actual_hours"`
	BillableHours       float64               `json:"billable_hours"`
	CapacityUtilization float64               `json:"capacity_utilization"`
	BillableUtilization float64               `json:"billable_utilization"`
	OverallEfficiency   float64               `json:"overall_efficiency"`
	TopPerformers       []ProfitabilityRecord `json:"top_performers"`
	Underperformers     []ProfitabilityRecord `json:"underperformers"`
	TeamAverageRate     *decimal.Decimal      `json:"team_average_rate"` // nil when no billable hours
}

// TimeTrackingInsights summarizes temporal work patterns from detailed
// entries. ContextSwitchingFrequency is entries per distinct day, a coarse
// approximation rather than true project-switch counting.
type TimeTrackingInsights struct {
	WorkspaceID               int64              `json:"workspace_id"`
	DateRange                 string             `json:"date_range"`
	PeakProductivityHours     []int              `json:"peak_productivity_hours"`
	PeakProductivityDays      []string           `json:"peak_productivity_days"`
	AverageSessionLength      float64            `json:"average_session_length"`
	ContextSwitchingFrequency float64            `json:"context_switching_frequency"`
	DeepWorkSessions          int                `json:"deep_work_sessions"`
	FragmentedTimePercentage  float64            `json:"fragmented_time_percentage"`
	ProjectTimeDistribution   map[string]float64 `json:"project_time_distribution"`
	MostProductiveProjects    []string           `json:"most_productive_projects"`
}

// BillingAnalysis flags rate problems and client risk across a workspace.
type BillingAnalysis struct {
	WorkspaceID              int64                      `json:"workspace_id"`
	Period                   string                     `json:"period"`
	TotalBillableAmount      decimal.Decimal            `json:"total_billable_amount"`
	RateUtilization          map[string]float64         `json:"rate_utilization"`
	RateGaps                 []string                   `json:"rate_gaps"`
	SuggestedRateAdjustments map[string]decimal.Decimal `json:"suggested_rate_adjustments"`
	HighValueClients         []string                   `json:"high_value_clients"`
	AtRiskClients            []string                   `json:"at_risk_clients"`
}

// FinancialSummary is the uncapped workspace financial rollup from a
// summary payload alone.
type FinancialSummary struct {
	TotalHours       float64         `json:"total_hours"`
	BillableHours    float64         `json:"billable_hours"`
	NonBillableHours float64         `json:"non_billable_hours"`
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	UtilizationRate  float64         `json:"utilization_rate"`
	Currency         string          `json:"currency"`
}

// ProductivitySnapshot compresses summary plus insights totals into
// utilization and rate figures.
type ProductivitySnapshot struct {
	TotalHours        float64         `json:"total_hours"`
	BillableHours     float64         `json:"billable_hours"`
	NonBillableHours  float64         `json:"non_billable_hours"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	UtilizationRate   float64         `json:"utilization_rate"`
	EfficiencyRate    float64         `json:"efficiency_rate"`
	AverageHourlyRate decimal.Decimal `json:"average_hourly_rate"`
	Currency          string          `json:"currency"`
}

// DetailedProfitability is the workspace rollup computed purely from
// detailed v3 entries: revenue from billable amounts, labor cost from
// billing rates scaled by the labor cost percentage.
type DetailedProfitability struct {
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	TotalLaborCost      decimal.Decimal `json:"total_labor_cost"`
	TotalProfit         decimal.Decimal `json:"total_profit"`
	ProfitMargin        float64         `json:"profit_margin"`
	TotalHours          float64         `json:"total_hours"`
	AverageHourlyRate   decimal.Decimal `json:"average_hourly_rate"`
	Currency            string          `json:"currency"`
	LaborCostPercentage float64         `json:"labor_cost_percentage"`
}
