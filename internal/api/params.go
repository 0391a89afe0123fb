package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/TracklensDev/tracklens/internal/period"
)

// workspaceIDParam extracts and validates the workspace route parameter.
func workspaceIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "workspaceID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid workspace ID %q", raw)
	}
	return id, nil
}

// workspaceRequest parses the parameters every workspace report takes.
func workspaceRequest(r *http.Request) (int64, period.Range, error) {
	id, err := workspaceIDParam(r)
	if err != nil {
		return 0, period.Range{}, err
	}
	rng, err := queryPeriod(r)
	if err != nil {
		return 0, period.Range{}, err
	}
	return id, rng, nil
}

// queryPeriod resolves the reporting window from query parameters.
// Explicit start_date/end_date win over a named period.
func queryPeriod(r *http.Request) (period.Range, error) {
	q := r.URL.Query()
	return period.Resolve(q.Get("start_date"), q.Get("end_date"), q.Get("period"), time.Now().UTC())
}

// queryBool reads a boolean flag; "true" and "1" count as set.
func queryBool(r *http.Request, name string) bool {
	v := r.URL.Query().Get(name)
	return v == "true" || v == "1"
}

// queryFloat reads an optional non-negative float parameter; zero when
// absent.
func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return f, nil
}

// queryDecimal reads an optional non-negative decimal parameter; nil
// when absent.
func queryDecimal(r *http.Request, name string) (*decimal.Decimal, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &d, nil
}

// queryLaborCostPct reads the per-request labor share override. The
// value is the fraction of the billable rate paid as labor and must be
// in (0, 1]; nil means the deployment default applies.
func queryLaborCostPct(r *http.Request) (*decimal.Decimal, error) {
	raw := r.URL.Query().Get("labor_cost_pct")
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid labor_cost_pct %q", raw)
	}
	if d.Sign() <= 0 || d.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("labor_cost_pct must be in (0, 1], got %s", raw)
	}
	return &d, nil
}
