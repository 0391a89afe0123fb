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

// ProductivityInsights combines the grouped-report utilization snapshot
// with profitability computed from detailed entries, plus optional
// temporal pattern analysis over the same entries.
func (s *Service) ProductivityInsights(ctx context.Context, workspaceID int64, r period.Range, opts InsightsOptions) (*ProductivityReport, error) {
	ctx, span := tracer.Start(ctx, "report.productivity",
		trace.WithAttributes(
			attribute.Int64("workspace.id", workspaceID),
			attribute.String("period", r.String()),
		))
	defer span.End()
	start := time.Now()

	log := logger.Ctx(ctx)
	ws := s.workspaces.Get(ctx, workspaceID)

	var (
		summary  *analytics.ReportPayload
		insights *analytics.ReportPayload
		detailed []analytics.DetailedEntry
	)
	err := fetchGroup(
		func() (err error) {
			summary, err = s.client.SummaryReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionProject)
			return err
		},
		func() (err error) {
			insights, err = s.client.InsightsReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionProject)
			return err
		},
		func() (err error) {
			detailed, err = s.client.DetailedEntries(ctx, workspaceID, r.Since(), r.Until())
			return err
		},
	)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("productivity insights: %w", err))
	}

	n := &analytics.Normalizer{Currency: ws.Currency, Log: log}
	entries := n.NormalizeDetailed(detailed, analytics.DimensionUser)
	countDropped(n)

	rep := &ProductivityReport{
		Workspace:   ws,
		Period:      r.String(),
		Snapshot:    analytics.BuildProductivitySnapshot(summary, insights, ws.Currency),
		Detailed:    analytics.ComputeDetailedProfitability(entries, s.aggregateOptions(ws.Currency, log)),
		GeneratedAt: time.Now().UTC(),
	}
	if opts.IncludePatterns {
		rep.Patterns = analytics.TimePatternAnalyzer{}.Analyze(entries, workspaceID, r.String())
	}

	span.SetAttributes(attribute.Int("detailed.count", len(detailed)))
	observe("productivity", start)
	return rep, nil
}
