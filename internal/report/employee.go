package report

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/TracklensDev/tracklens/internal/analytics"
	"github.com/TracklensDev/tracklens/internal/period"
)

// ErrEmployeeNotFound means the named employee has no summary row for
// the period: either the name is wrong or they tracked nothing.
var ErrEmployeeNotFound = errors.New("employee not found or has no data for this period")

// EmployeeBreakdown reports one employee's hours, revenue, and
// per-project attribution for the period. Hours and revenue come from
// the employee's user-summary row; project attribution and labor cost
// come from the detailed entries matching the employee's name. Labor
// cost is scaled by the summary/detailed hour ratio so partial detailed
// coverage still extrapolates to the full tracked time; with no
// detailed data at all it falls back to the labor share of revenue.
func (s *Service) EmployeeBreakdown(ctx context.Context, workspaceID int64, employeeName string, r period.Range, opts EmployeeOptions) (*EmployeeBreakdown, error) {
	ctx, span := tracer.Start(ctx, "report.employee_breakdown",
		trace.WithAttributes(
			attribute.Int64("workspace.id", workspaceID),
			attribute.String("period", r.String()),
		))
	defer span.End()
	start := time.Now()

	ws := s.workspaces.Get(ctx, workspaceID)

	var (
		users    *analytics.ReportPayload
		detailed []analytics.DetailedEntry
	)
	err := fetchGroup(
		func() (err error) {
			users, err = s.client.SummaryReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionUser)
			return err
		},
		func() (err error) {
			detailed, err = s.client.DetailedEntries(ctx, workspaceID, r.Since(), r.Until())
			return err
		},
	)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("employee breakdown: %w", err))
	}

	var row *analytics.ReportGroup
	for i := range users.Data {
		if users.Data[i].Title.User == employeeName {
			row = &users.Data[i]
			break
		}
	}
	if row == nil {
		return nil, s.fail(span, fmt.Errorf("%w: %q", ErrEmployeeNotFound, employeeName))
	}

	totalHours := analytics.MillisecondsToHours(row.Time)
	revenue := row.CurrencySum()

	laborPct := s.tunables.LaborPercentage()
	labor, detailedHours, projects := s.detailedAttribution(detailed, employeeName, laborPct)

	// Detailed entries may cover only part of the tracked time, so the
	// labor sum extrapolates by the hour ratio between the two sources.
	switch {
	case detailedHours > 0 && totalHours > 0:
		labor = labor.Mul(decimal.NewFromFloat(totalHours)).Div(decimal.NewFromFloat(detailedHours))
	case totalHours > 0:
		labor = revenue.Mul(laborPct)
	}
	labor = labor.Round(2)

	profit := revenue.Sub(labor)
	breakdown := &EmployeeBreakdown{
		Workspace:    ws,
		EmployeeName: employeeName,
		Period:       r.String(),
		TotalHours:   totalHours,
		TotalRevenue: revenue,
		LaborCost:    labor,
		Profit:       profit,
		ProfitMargin: analytics.MarginPercent(profit, revenue),
		AverageRate:  analytics.RatePerHour(revenue, totalHours),
		Projects:     projects,
		GeneratedAt:  time.Now().UTC(),
	}
	if opts.IncludeEntries {
		breakdown.RecentEntries = entryDigest(row.Items, 10)
	}

	span.SetAttributes(attribute.Int("projects.count", len(projects)))
	observe("employee", start)
	return breakdown, nil
}

// detailedAttribution walks the detailed entries matching one employee
// and returns the unscaled labor cost, the hours those entries cover,
// and the per-project hour attribution ordered by hours descending.
func (s *Service) detailedAttribution(detailed []analytics.DetailedEntry, employeeName string, laborPct decimal.Decimal) (decimal.Decimal, float64, []EmployeeProject) {
	labor := decimal.Zero
	var detailedHours float64

	var order []int64
	byProject := make(map[int64]*EmployeeProject)

	for _, de := range detailed {
		if de.Username != employeeName {
			continue
		}
		var seconds int64
		for _, te := range de.TimeEntries {
			seconds += te.Seconds
		}
		hours := analytics.SecondsToHours(seconds)
		rate := analytics.DecimalFromCents(de.HourlyRateCents)
		labor = labor.Add(rate.Mul(laborPct).Mul(decimal.NewFromFloat(hours)))
		detailedHours += hours

		if de.ProjectID == nil {
			continue
		}
		p, ok := byProject[*de.ProjectID]
		if !ok {
			p = &EmployeeProject{ID: *de.ProjectID, Name: de.ProjectName}
			byProject[*de.ProjectID] = p
			order = append(order, *de.ProjectID)
		}
		if p.Name == "" {
			p.Name = de.ProjectName
		}
		p.Hours += hours
	}

	projects := make([]EmployeeProject, 0, len(order))
	for _, id := range order {
		p := byProject[id]
		p.Hours = math.Round(p.Hours*100) / 100
		projects = append(projects, *p)
	}
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].Hours > projects[j].Hours
	})
	return labor, detailedHours, projects
}

// entryDigest compresses the first n report items to their essentials.
func entryDigest(items []analytics.ReportItem, n int) []EntryDigest {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]EntryDigest, 0, len(items))
	for _, item := range items {
		out = append(out, EntryDigest{
			Description: item.Title.TimeEntry,
			Hours:       analytics.MillisecondsToHours(item.Time),
			Revenue:     item.CurrencySum(),
		})
	}
	return out
}
