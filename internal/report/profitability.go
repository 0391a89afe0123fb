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

// ProjectProfitability aggregates the period's insights payload into
// per-project records, filtered and ordered per opts.
func (s *Service) ProjectProfitability(ctx context.Context, workspaceID int64, r period.Range, opts ProjectOptions) (*ProjectReport, error) {
	ctx, span := tracer.Start(ctx, "report.projects",
		trace.WithAttributes(
			attribute.Int64("workspace.id", workspaceID),
			attribute.String("period", r.String()),
		))
	defer span.End()
	start := time.Now()

	log := logger.Ctx(ctx)
	ws := s.workspaces.Get(ctx, workspaceID)

	insights, err := s.client.InsightsReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionProject)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("project profitability: %w", err))
	}

	n := &analytics.Normalizer{Currency: ws.Currency, Log: log}
	aggOpts := s.aggregateOptions(ws.Currency, log)
	aggOpts.SortBy = opts.SortBy
	aggOpts.MinHours = opts.MinHours
	if opts.LaborCostPercentage != nil {
		aggOpts.LaborCostPercentage = *opts.LaborCostPercentage
	}

	records := analytics.Aggregate(
		n.NormalizeReport(insights, analytics.SchemaInsights, analytics.DimensionProject), aggOpts)
	countDropped(n)

	span.SetAttributes(attribute.Int("projects.count", len(records)))
	observe("projects", start)
	return &ProjectReport{
		Workspace:   ws,
		Period:      r.String(),
		Projects:    records,
		Stats:       summarize(records),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// ClientProfitability aggregates the period's insights payload into
// per-client records, dropping clients below the revenue floor.
func (s *Service) ClientProfitability(ctx context.Context, workspaceID int64, r period.Range, opts ClientOptions) (*ClientReport, error) {
	ctx, span := tracer.Start(ctx, "report.clients",
		trace.WithAttributes(
			attribute.Int64("workspace.id", workspaceID),
			attribute.String("period", r.String()),
		))
	defer span.End()
	start := time.Now()

	log := logger.Ctx(ctx)
	ws := s.workspaces.Get(ctx, workspaceID)

	insights, err := s.client.InsightsReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionClient)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("client profitability: %w", err))
	}

	n := &analytics.Normalizer{Currency: ws.Currency, Log: log}
	aggOpts := s.aggregateOptions(ws.Currency, log)
	aggOpts.MinRevenue = opts.MinRevenue

	records := analytics.Aggregate(
		n.NormalizeReport(insights, analytics.SchemaInsights, analytics.DimensionClient), aggOpts)
	countDropped(n)

	span.SetAttributes(attribute.Int("clients.count", len(records)))
	observe("clients", start)
	return &ClientReport{
		Workspace:   ws,
		Period:      r.String(),
		Clients:     records,
		Stats:       summarize(records),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// BillingAnalysis classifies project rates and client risk across the
// workspace for the period.
func (s *Service) BillingAnalysis(ctx context.Context, workspaceID int64, r period.Range) (*BillingReport, error) {
	ctx, span := tracer.Start(ctx, "report.billing",
		trace.WithAttributes(
			attribute.Int64("workspace.id", workspaceID),
			attribute.String("period", r.String()),
		))
	defer span.End()
	start := time.Now()

	log := logger.Ctx(ctx)
	ws := s.workspaces.Get(ctx, workspaceID)

	var insightProjects, insightClients *analytics.ReportPayload
	err := fetchGroup(
		func() (err error) {
			insightProjects, err = s.client.InsightsReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionProject)
			return err
		},
		func() (err error) {
			insightClients, err = s.client.InsightsReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionClient)
			return err
		},
	)
	if err != nil {
		return nil, s.fail(span, fmt.Errorf("billing analysis: %w", err))
	}

	n := &analytics.Normalizer{Currency: ws.Currency, Log: log}
	aggOpts := s.aggregateOptions(ws.Currency, log)

	projects := analytics.Aggregate(
		n.NormalizeReport(insightProjects, analytics.SchemaInsights, analytics.DimensionProject), aggOpts)
	clients := analytics.Aggregate(
		n.NormalizeReport(insightClients, analytics.SchemaInsights, analytics.DimensionClient), aggOpts)
	countDropped(n)

	analyzer := analytics.BillingAnalyzer{Thresholds: s.tunables.BillingThresholds()}
	analysis := analyzer.Analyze(projects, clients, workspaceID, r.String())

	observe("billing", start)
	return &BillingReport{
		Workspace:   ws,
		Analysis:    analysis,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
