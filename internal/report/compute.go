package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/TracklensDev/tracklens/internal/analytics"
	"github.com/TracklensDev/tracklens/internal/logger"
)

// ComputeRequest carries raw report payloads for an offline
// computation. Nothing is fetched: the engine runs on exactly what the
// caller supplies. At least one payload must be present.
type ComputeRequest struct {
	Workspace analytics.WorkspaceInfo `json:"workspace"`
	Period    string                  `json:"period"`
	// Dimension is the grouping the summary and insights payloads were
	// requested with; empty means projects.
	Dimension string          `json:"dimension,omitempty"`
	Summary   json.RawMessage `json:"summary,omitempty"`
	Insights  json.RawMessage `json:"insights,omitempty"`
	Detailed  json.RawMessage `json:"detailed,omitempty"`
}

// ComputeResult is the offline computation output. Records require an
// insights payload; the organization rollup requires both grouped
// payloads; the detailed block requires detailed entries.
type ComputeResult struct {
	Workspace      analytics.WorkspaceInfo          `json:"workspace"`
	Period         string                           `json:"period"`
	Records        []analytics.ProfitabilityRecord  `json:"records"`
	Organization   *analytics.OrganizationSummary   `json:"organization,omitempty"`
	Detailed       *analytics.DetailedProfitability `json:"detailed,omitempty"`
	DroppedEntries int                              `json:"dropped_entries"`
	GeneratedAt    time.Time                        `json:"generated_at"`
}

// ErrEmptyCompute means a compute request carried no payloads at all.
var ErrEmptyCompute = errors.New("compute request carries no payloads")

// Compute runs the aggregation engine over caller-supplied payloads
// without touching the upstream API.
func (s *Service) Compute(ctx context.Context, req ComputeRequest) (*ComputeResult, error) {
	ctx, span := tracer.Start(ctx, "report.compute")
	defer span.End()
	start := time.Now()

	if len(req.Summary) == 0 && len(req.Insights) == 0 && len(req.Detailed) == 0 {
		return nil, s.fail(span, ErrEmptyCompute)
	}

	dim := analytics.DimensionProject
	if req.Dimension != "" {
		var err error
		dim, err = analytics.ParseDimension(req.Dimension)
		if err != nil {
			return nil, s.fail(span, err)
		}
	}
	ws := req.Workspace
	if ws.Currency == "" {
		ws.Currency = "USD"
	}

	log := logger.Ctx(ctx)
	n := &analytics.Normalizer{Currency: ws.Currency, Log: log}
	aggOpts := s.aggregateOptions(ws.Currency, log)

	var summary, insights *analytics.ReportPayload
	if len(req.Summary) > 0 {
		var p analytics.ReportPayload
		if err := json.Unmarshal(req.Summary, &p); err != nil {
			return nil, s.fail(span, fmt.Errorf("decode summary payload: %w", err))
		}
		summary = &p
	}
	if len(req.Insights) > 0 {
		var p analytics.ReportPayload
		if err := json.Unmarshal(req.Insights, &p); err != nil {
			return nil, s.fail(span, fmt.Errorf("decode insights payload: %w", err))
		}
		insights = &p
	}

	result := &ComputeResult{
		Workspace:   ws,
		Period:      req.Period,
		Records:     []analytics.ProfitabilityRecord{},
		GeneratedAt: time.Now().UTC(),
	}
	if insights != nil {
		result.Records = analytics.Aggregate(n.NormalizeReport(insights, analytics.SchemaInsights, dim), aggOpts)
	}
	if summary != nil && insights != nil {
		result.Organization = analytics.BuildOrganizationSummary(summary, insights, ws, req.Period, s.organizationOptions(log))
	}
	if len(req.Detailed) > 0 {
		rows, err := analytics.DecodeDetailedPayload(req.Detailed)
		if err != nil {
			return nil, s.fail(span, err)
		}
		entries := n.NormalizeDetailed(rows, analytics.DimensionUser)
		result.Detailed = analytics.ComputeDetailedProfitability(entries, aggOpts)
	}

	result.DroppedEntries = n.Dropped
	countDropped(n)
	observe("compute", start)
	return result, nil
}
