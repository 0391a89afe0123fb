package report

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/TracklensDev/tracklens/internal/analytics"
	"github.com/TracklensDev/tracklens/internal/period"
)

// FinancialSummary reports the period's uncapped hour and revenue
// totals. With ComparePrevious set, the immediately preceding period of
// equal length is fetched concurrently and the deltas between the two
// are included.
func (s *Service) FinancialSummary(ctx context.Context, workspaceID int64, r period.Range, opts FinancialOptions) (*FinancialReport, error) {
	ctx, span := tracer.Start(ctx, "report.financial",
		trace.WithAttributes(
			attribute.Int64("workspace.id", workspaceID),
			attribute.String("period", r.String()),
			attribute.Bool("compare_previous", opts.ComparePrevious),
		))
	defer span.End()
	start := time.Now()

	ws := s.workspaces.Get(ctx, workspaceID)
	prev := r.Previous()

	var current, previous *analytics.ReportPayload
	fetches := []func() error{
		func() (err error) {
			current, err = s.client.SummaryReport(ctx, workspaceID, r.Since(), r.Until(), analytics.DimensionProject)
			return err
		},
	}
	if opts.ComparePrevious {
		fetches = append(fetches, func() (err error) {
			previous, err = s.client.SummaryReport(ctx, workspaceID, prev.Since(), prev.Until(), analytics.DimensionProject)
			return err
		})
	}
	if err := fetchGroup(fetches...); err != nil {
		return nil, s.fail(span, fmt.Errorf("financial summary: %w", err))
	}

	cur := analytics.BuildFinancialSummary(current, ws.Currency)
	rep := &FinancialReport{
		Workspace:   ws,
		Period:      r.String(),
		Current:     cur,
		GeneratedAt: time.Now().UTC(),
	}
	if opts.ComparePrevious {
		before := analytics.BuildFinancialSummary(previous, ws.Currency)
		rep.PreviousPeriod = prev.String()
		rep.Previous = before
		rep.Delta = &FinancialDelta{
			Hours:         cur.TotalHours - before.TotalHours,
			BillableHours: cur.BillableHours - before.BillableHours,
			Revenue:       cur.TotalRevenue.Sub(before.TotalRevenue),
			Utilization:   cur.UtilizationRate - before.UtilizationRate,
		}
	}

	observe("financial", start)
	return rep, nil
}
