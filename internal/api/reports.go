package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/TracklensDev/tracklens/internal/analytics"
	"github.com/TracklensDev/tracklens/internal/logger"
	"github.com/TracklensDev/tracklens/internal/report"
	"github.com/TracklensDev/tracklens/internal/toggl"
)

// handleListWorkspaces lists the workspaces the configured API token can
// report on.
func (s *Server) handleListWorkspaces(w http.ResponseWriter, r *http.Request) {
	workspaces, err := s.reports.Workspaces(r.Context())
	if err != nil {
		respondReportError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"workspaces": workspaces,
	})
}

// handleDashboard serves the full admin dashboard report.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	id, rng, err := workspaceRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.reports.Dashboard(r.Context(), id, rng)
	if err != nil {
		respondReportError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// handleProjectReport serves per-project profitability.
func (s *Server) handleProjectReport(w http.ResponseWriter, r *http.Request) {
	id, rng, err := workspaceRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sortBy, err := analytics.ParseSortKey(r.URL.Query().Get("sort_by"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	minHours, err := queryFloat(r, "min_hours")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	laborPct, err := queryLaborCostPct(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	rep, err := s.reports.ProjectProfitability(r.Context(), id, rng, report.ProjectOptions{
		SortBy:              sortBy,
		MinHours:            minHours,
		LaborCostPercentage: laborPct,
	})
	if err != nil {
		respondReportError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// handleClientReport serves per-client profitability.
func (s *Server) handleClientReport(w http.ResponseWriter, r *http.Request) {
	id, rng, err := workspaceRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	minRevenue, err := queryDecimal(r, "min_revenue")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var opts report.ClientOptions
	if minRevenue != nil {
		opts.MinRevenue = *minRevenue
	}
	rep, err := s.reports.ClientProfitability(r.Context(), id, rng, opts)
	if err != nil {
		respondReportError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// handleTeamReport serves team-wide productivity metrics.
func (s *Server) handleTeamReport(w http.ResponseWriter, r *http.Request) {
	id, rng, err := workspaceRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.reports.TeamProductivity(r.Context(), id, rng, report.TeamOptions{
		IncludeIndividual: queryBool(r, "include_individual"),
	})
	if err != nil {
		respondReportError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// handleFinancialReport serves the workspace financial summary.
func (s *Server) handleFinancialReport(w http.ResponseWriter, r *http.Request) {
	id, rng, err := workspaceRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.reports.FinancialSummary(r.Context(), id, rng, report.FinancialOptions{
		ComparePrevious: queryBool(r, "compare_previous"),
	})
	if err != nil {
		respondReportError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// handleProductivityReport serves the productivity snapshot, optionally
// with temporal work-pattern analysis.
func (s *Server) handleProductivityReport(w http.ResponseWriter, r *http.Request) {
	id, rng, err := workspaceRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.reports.ProductivityInsights(r.Context(), id, rng, report.InsightsOptions{
		IncludePatterns: queryBool(r, "include_patterns"),
	})
	if err != nil {
		respondReportError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// handleBillingReport serves the billing rate analysis.
func (s *Server) handleBillingReport(w http.ResponseWriter, r *http.Request) {
	id, rng, err := workspaceRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep, err := s.reports.BillingAnalysis(r.Context(), id, rng)
	if err != nil {
		respondReportError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// handleEmployeeBreakdown serves one employee's period rollup. The name
// arrives URL-decoded from the route parameter.
func (s *Server) handleEmployeeBreakdown(w http.ResponseWriter, r *http.Request) {
	id, rng, err := workspaceRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := chi.URLParam(r, "employeeName")
	rep, err := s.reports.EmployeeBreakdown(r.Context(), id, name, rng, report.EmployeeOptions{
		IncludeEntries: queryBool(r, "include_entries"),
	})
	if err != nil {
		respondReportError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// handleCompute runs the aggregation engine over payloads supplied in
// the request body. Nothing is fetched upstream, so every failure past
// the size limit is a problem with the submitted payloads.
func (s *Server) handleCompute(w http.ResponseWriter, r *http.Request) {
	var req report.ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	result, err := s.reports.Compute(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// respondReportError maps report service failures onto HTTP statuses.
// Upstream plan and permission errors keep their original messages so
// callers can see what the time tracking API objected to.
func respondReportError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.Ctx(r.Context())

	var apiErr *toggl.APIError
	switch {
	case errors.Is(err, report.ErrEmployeeNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, toggl.ErrPremiumRequired):
		respondError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, toggl.ErrForbidden):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &apiErr):
		log.Error("Upstream time tracking API failed", "error", err, "upstream_status", apiErr.StatusCode)
		respondError(w, http.StatusBadGateway, "Upstream time tracking API failed")
	default:
		log.Error("Failed to build report", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to build report")
	}
}
