package report

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/TracklensDev/tracklens/internal/analytics"
	"github.com/TracklensDev/tracklens/internal/logger"
	"github.com/TracklensDev/tracklens/internal/period"
)

// TeamProductivity rolls the period's per-employee records up to
// team-wide capacity and utilization metrics.
func (s *Service) TeamProductivity(ctx context.Context, workspaceID int64, r period.Range, opts TeamOptions) (*TeamReport, error) {
	ctx, span := tracer.Start(ctx, "report.team",
		trace.WithAttributes(
			attribute.Int64("workspace.id", workspaceID),
			attribute.String("period", r.String()),
		))
	defer span.End()
	start := time.Now()

	log := logger.Ctx(ctx)
	ws := s.workspaces.Get(ctx, workspaceID)

	insights, err := s.client.InsightsReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionUser)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("team productivity: %w", err))
	}

	n := &analytics.Normalizer{Currency: ws.Currency, Log: log}
	employees := analytics.Aggregate(
		n.NormalizeReport(insights, analytics.SchemaInsights, analytics.DimensionUser),
		s.aggregateOptions(ws.Currency, log))
	countDropped(n)

	team := analytics.TeamMetricsCalculator{
		ExpectedHoursPerPerson: s.tunables.ExpectedHoursPerPerson,
	}.Compute(employees, workspaceID)

	rep := &TeamReport{
		Workspace:   ws,
		Period:      r.String(),
		Metrics:     team,
		GeneratedAt: time.Now().UTC(),
	}
	if opts.IncludeIndividual {
		sortByUtilization(employees)
		rep.Individual = employees
	}

	span.SetAttributes(attribute.Int("team.size", team.TeamSize))
	observe("team", start)
	return rep, nil
}
