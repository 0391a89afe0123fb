// Package report orchestrates the reporting pipeline: it fetches the
// raw upstream payloads for one workspace and period, runs them through
// the aggregation engine, and assembles the response envelopes the API
// serves. Independent upstream reads for one report run concurrently;
// any fetch failure aborts the whole operation.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/TracklensDev/tracklens/internal/analytics"
	"github.com/TracklensDev/tracklens/internal/config"
	"github.com/TracklensDev/tracklens/internal/logger"
	"github.com/TracklensDev/tracklens/internal/metrics"
	"github.com/TracklensDev/tracklens/internal/period"
	"github.com/TracklensDev/tracklens/internal/toggl"
)

var tracer = otel.Tracer("tracklens/report")

// Service builds reports from upstream data. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	client     *toggl.Client
	workspaces *toggl.WorkspaceCache
	tunables   config.Tunables
}

// NewService wires the report pipeline. The tunables carry the labor
// cost percentage, hour caps, team capacity, and billing thresholds.
func NewService(client *toggl.Client, workspaces *toggl.WorkspaceCache, tunables config.Tunables) *Service {
	return &Service{
		client:     client,
		workspaces: workspaces,
		tunables:   tunables,
	}
}

// Workspaces lists every workspace visible to the configured token,
// refreshing the metadata cache as a side effect.
func (s *Service) Workspaces(ctx context.Context) ([]toggl.Workspace, error) {
	return s.workspaces.List(ctx)
}

// Dashboard builds the full admin report: organization rollup,
// profitability for all three dimensions, team metrics, and the
// detailed-entry profitability block.
func (s *Service) Dashboard(ctx context.Context, workspaceID int64, r period.Range) (*analytics.AdminReport, error) {
	ctx, span := tracer.Start(ctx, "report.dashboard",
		trace.WithAttributes(
			attribute.Int64("workspace.id", workspaceID),
			attribute.String("period", r.String()),
		))
	defer span.End()
	start := time.Now()

	log := logger.Ctx(ctx)
	ws := s.workspaces.Get(ctx, workspaceID)

	var (
		summaryProjects *analytics.ReportPayload
		insightProjects *analytics.ReportPayload
		insightUsers    *analytics.ReportPayload
		insightClients  *analytics.ReportPayload
		detailed        []analytics.DetailedEntry
	)
	err := fetchGroup(
		func() (err error) {
			summaryProjects, err = s.client.SummaryReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionProject)
			return err
		},
		func() (err error) {
			insightProjects, err = s.client.InsightsReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionProject)
			return err
		},
		func() (err error) {
			insightUsers, err = s.client.InsightsReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionUser)
			return err
		},
		func() (err error) {
			insightClients, err = s.client.InsightsReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionClient)
			return err
		},
		func() (err error) {
			detailed, err = s.client.DetailedEntries(ctx, workspaceID, r.Since(), r.Until())
			return err
		},
	)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("dashboard: %w", err))
	}

	n := &analytics.Normalizer{Currency: ws.Currency, Log: log}
	aggOpts := s.aggregateOptions(ws.Currency, log)

	projects := analytics.Aggregate(n.NormalizeReport(insightProjects, analytics.SchemaInsights, analytics.DimensionProject), aggOpts)
	employees := analytics.Aggregate(n.NormalizeReport(insightUsers, analytics.SchemaInsights, analytics.DimensionUser), aggOpts)
	sortByUtilization(employees)
	clients := analytics.Aggregate(n.NormalizeReport(insightClients, analytics.SchemaInsights, analytics.DimensionClient), aggOpts)

	org := analytics.BuildOrganizationSummary(summaryProjects, insightProjects, ws, r.String(), s.organizationOptions(log))
	org.FillActivity(len(employees), len(clients))

	team := analytics.TeamMetricsCalculator{
		ExpectedHoursPerPerson: s.tunables.ExpectedHoursPerPerson,
	}.Compute(employees, workspaceID)

	block := analytics.ComputeDetailedProfitability(
		n.NormalizeDetailed(detailed, analytics.DimensionUser), aggOpts)
	countDropped(n)

	rep := analytics.AssembleAdminReport(org, projects, employees, clients, team, r.String())
	rep.DetailedProfitability = block

	span.SetAttributes(
		attribute.Int("projects.count", len(projects)),
		attribute.Int("employees.count", len(employees)),
		attribute.Int("clients.count", len(clients)),
	)
	observe("dashboard", start)
	return rep, nil
}

// aggregateOptions builds the per-entity aggregation knobs from the
// configured tunables.
func (s *Service) aggregateOptions(currency string, log *slog.Logger) analytics.AggregateOptions {
	return analytics.AggregateOptions{
		LaborCostPercentage: s.tunables.LaborPercentage(),
		Cap:                 s.tunables.HourCap(),
		SortBy:              analytics.SortByProfit,
		Currency:            currency,
		Log:                 log,
	}
}

func (s *Service) organizationOptions(log *slog.Logger) analytics.OrganizationOptions {
	return analytics.OrganizationOptions{
		LaborCostPercentage: s.tunables.LaborPercentage(),
		Cap:                 s.tunables.HourCap(),
		Log:                 log,
	}
}

// fail marks the span failed and passes the error through.
func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// fetchGroup runs independent upstream fetches concurrently and waits
// for all of them, returning the first error. Each fn must write its
// result to a variable only it touches; the channel receives are the
// synchronization point before results are read.
func fetchGroup(fns ...func() error) error {
	results := make(chan error, len(fns))
	for _, fn := range fns {
		go func(fn func() error) {
			results <- fn()
		}(fn)
	}
	var firstErr error
	for range fns {
		if err := <-results; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sortByUtilization orders employee records by billable share of
// tracked hours, descending, the order team views present them in.
func sortByUtilization(records []analytics.ProfitabilityRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].UtilizationRate() > records[j].UtilizationRate()
	})
}

// observe records one successfully computed report and its build time.
func observe(kind string, start time.Time) {
	metrics.ReportsComputed.WithLabelValues(kind).Inc()
	metrics.ReportDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func countDropped(n *analytics.Normalizer) {
	if n.Dropped > 0 {
		metrics.EntriesDropped.Add(float64(n.Dropped))
	}
}
