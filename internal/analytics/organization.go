package analytics

import (
	"log/slog"
	"math"

	"github.com/shopspring/decimal"
)

// OrganizationOptions tunes the workspace-level rollup.
type OrganizationOptions struct {
	LaborCostPercentage decimal.Decimal
	Cap                 HourCap
	Log                 *slog.Logger
}

// DefaultOrganizationOptions mirrors DefaultAggregateOptions for the
// organization rollup.
func DefaultOrganizationOptions() OrganizationOptions {
	return OrganizationOptions{
		LaborCostPercentage: DefaultLaborCostPercentage,
		Cap:                 DefaultHourCap(),
	}
}

// BuildOrganizationSummary assembles the workspace rollup from its two
// authoritative sources: hour totals from the summary payload, revenue
// from the insights currency totals, and labor cost from the insights
// per-entry rates. ActiveUsers and ActiveClients stay zero here; callers
// that also aggregated those dimensions fill them via FillActivity.
func BuildOrganizationSummary(summary, insights *ReportPayload, ws WorkspaceInfo, dateRange string, opts OrganizationOptions) *OrganizationSummary {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	totalHours := MillisecondsToHours(summary.TotalGrand)
	billableHours := MillisecondsToHours(summary.TotalBillable)
	total, billable, nonBillable, capped := opts.Cap.Apply(totalHours, billableHours)
	if capped {
		log.Warn("implausible workspace hour total capped",
			"workspace_id", ws.ID, "raw_hours", totalHours, "capped_hours", total)
	}

	revenue := insights.CurrencyAmount(ws.Currency)

	var labor decimal.Decimal
	for _, g := range insights.Data {
		for _, item := range g.Items {
			hours := decimal.NewFromFloat(MillisecondsToHours(item.Time))
			labor = labor.Add(hours.Mul(SafeDecimal(item.Rate)))
		}
	}
	labor = labor.Round(2)
	profit := revenue.Sub(labor)

	avgRate := decimal.Zero
	if billable > 0 {
		avgRate = revenue.Div(decimal.NewFromFloat(billable)).Round(2)
	}

	activeProjects := 0
	totalEntries := 0
	for _, g := range summary.Data {
		if g.ID != nil && g.Title.Project != "" {
			activeProjects++
		}
		totalEntries += len(g.Items)
	}

	return &OrganizationSummary{
		WorkspaceID:       ws.ID,
		WorkspaceName:     ws.Name,
		DateRange:         dateRange,
		Currency:          ws.Currency,
		TotalHours:        total,
		BillableHours:     billable,
		NonBillableHours:  nonBillable,
		TotalRevenue:      revenue,
		TotalLaborCost:    labor,
		TotalProfit:       profit,
		AverageHourlyRate: avgRate,
		ActiveProjects:    activeProjects,
		TotalTimeEntries:  totalEntries,
	}
}

// FillActivity records the user and client counts aggregated from their
// own report dimensions and derives the per-project and per-user hour
// averages from them.
func (o *OrganizationSummary) FillActivity(users, clients int) {
	o.ActiveUsers = users
	o.ActiveClients = clients
	if o.ActiveProjects > 0 {
		o.AverageProjectSize = math.Round(o.TotalHours/float64(o.ActiveProjects)*100) / 100
	}
	if users > 0 {
		o.AverageUserHours = math.Round(o.TotalHours/float64(users)*100) / 100
	}
}

// BuildFinancialSummary extracts the uncapped financial totals of one
// summary payload in the given reporting currency.
func BuildFinancialSummary(summary *ReportPayload, currency string) *FinancialSummary {
	totalHours := MillisecondsToHours(summary.TotalGrand)
	billableHours := MillisecondsToHours(summary.TotalBillable)
	return &FinancialSummary{
		TotalHours:       totalHours,
		BillableHours:    billableHours,
		NonBillableHours: totalHours - billableHours,
		TotalRevenue:     summary.CurrencyAmount(currency),
		UtilizationRate:  Percent(billableHours, totalHours),
		Currency:         currency,
	}
}

// BuildProductivitySnapshot combines summary hour totals with insights
// revenue into utilization and rate figures.
func BuildProductivitySnapshot(summary, insights *ReportPayload, currency string) *ProductivitySnapshot {
	totalHours := MillisecondsToHours(summary.TotalGrand)
	billableHours := MillisecondsToHours(summary.TotalBillable)
	nonBillable := totalHours - billableHours
	revenue := insights.CurrencyAmount(currency)

	avgRate := decimal.Zero
	if billableHours > 0 {
		avgRate = revenue.Div(decimal.NewFromFloat(billableHours)).Round(2)
	}

	return &ProductivitySnapshot{
		TotalHours:        totalHours,
		BillableHours:     billableHours,
		NonBillableHours:  nonBillable,
		TotalRevenue:      revenue,
		UtilizationRate:   Percent(billableHours, totalHours),
		EfficiencyRate:    Percent(billableHours, totalHours+nonBillable),
		AverageHourlyRate: avgRate,
		Currency:          currency,
	}
}
