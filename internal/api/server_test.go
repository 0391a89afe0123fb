package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/TracklensDev/tracklens/internal/analytics"
	"github.com/TracklensDev/tracklens/internal/config"
	"github.com/TracklensDev/tracklens/internal/ratelimit"
	"github.com/TracklensDev/tracklens/internal/report"
	"github.com/TracklensDev/tracklens/internal/toggl"
)

// fakeUpstream serves canned Toggl payloads. Workspace endpoints always
// succeed; failStatus makes the report endpoints fail with that status.
type fakeUpstream struct {
	mu         sync.Mutex
	failStatus int
}

func (f *fakeUpstream) setFailStatus(status int) {
	f.mu.Lock()
	f.failStatus = status
	f.mu.Unlock()
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	failStatus := f.failStatus
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/v9/workspaces":
		io.WriteString(w, `[{"id":42,"name":"Acme","premium":true,"admin":true,"default_currency":"USD"}]`)
	case strings.HasPrefix(r.URL.Path, "/api/v9/workspaces/"):
		io.WriteString(w, `{"id":42,"name":"Acme","premium":true,"admin":true,"default_currency":"USD"}`)
	case failStatus != 0:
		w.WriteHeader(failStatus)
		io.WriteString(w, `{"message":"upstream unhappy"}`)
	case r.URL.Path == "/reports/api/v2/summary":
		io.WriteString(w, groupedFixture(r.URL.Query().Get("grouping")))
	case strings.Contains(r.URL.Path, "/search/time_entries"):
		io.WriteString(w, detailedFixture)
	default:
		http.NotFound(w, r)
	}
}

// groupedFixture is one group per dimension: project Atlas, user Ada,
// client Globex. 30h tracked, all billable, $4500 revenue each.
func groupedFixture(grouping string) string {
	var title string
	var id int
	switch grouping {
	case "users":
		title = `{"user": "Ada Lovelace"}`
		id = 7
	case "clients":
		title = `{"client": "Globex"}`
		id = 201
	default:
		title = `{"project": "Atlas", "client": "Globex"}`
		id = 101
	}
	return `{
		"total_grand": 108000000,
		"total_billable": 108000000,
		"total_currencies": [{"currency": "USD", "amount": 4500}],
		"data": [{
			"id": ` + strconv.Itoa(id) + `,
			"title": ` + title + `,
			"time": 108000000,
			"total_currencies": [{"currency": "USD", "amount": 4500}],
			"items": [
				{"title": {"time_entry": "Build"}, "time": 108000000, "rate": 50, "currencies": [{"currency": "USD", "amount": 4500}]}
			]
		}]
	}`
}

const detailedFixture = `[
	{
		"user_id": 7, "username": "Ada Lovelace",
		"project_id": 101, "project_name": "Atlas",
		"client_id": 201, "client_name": "Globex",
		"description": "Build pipeline", "billable": true,
		"billable_amount_in_cents": 320000,
		"hourly_rate_in_cents": 16000,
		"currency": "USD",
		"time_entries": [
			{"id": 1, "start": "2026-03-02T09:00:00Z", "stop": "2026-03-02T17:00:00Z", "seconds": 28800},
			{"id": 2, "start": "2026-03-03T09:00:00Z", "stop": "2026-03-03T13:00:00Z", "seconds": 14400}
		]
	}
]`

// newTestHandler wires a real report service against the fake upstream
// and returns the fully assembled router.
func newTestHandler(t *testing.T, f *fakeUpstream, limiter ratelimit.RateLimiter, origins []string) http.Handler {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	client := toggl.NewClient("token",
		toggl.WithBaseURL(srv.URL),
		toggl.WithRateLimit(1000, 100),
	)
	svc := report.NewService(client, toggl.NewWorkspaceCache(client), config.Defaults())
	return NewServer(svc, limiter, origins, "test").SetupRoutes()
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func decodeInto(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, w.Body.String())
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decodeInto(t, w, &body)
	return body.Error
}

func TestServerEndpoints(t *testing.T) {
	handler := newTestHandler(t, &fakeUpstream{}, nil, nil)

	t.Run("health", func(t *testing.T) {
		w := get(t, handler, "/health")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var body map[string]string
		decodeInto(t, w, &body)
		if body["status"] != "ok" {
			t.Errorf("status field = %q", body["status"])
		}
	})

	t.Run("root reports service and version", func(t *testing.T) {
		w := get(t, handler, "/")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var body map[string]string
		decodeInto(t, w, &body)
		if body["service"] != "tracklens" || body["version"] != "test" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("metrics endpoint is exposed", func(t *testing.T) {
		w := get(t, handler, "/metrics")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(w.Body.String(), "go_goroutines") {
			t.Error("expected Prometheus metrics output")
		}
	})

	t.Run("workspaces list", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var body struct {
			Workspaces []toggl.Workspace `json:"workspaces"`
		}
		decodeInto(t, w, &body)
		if len(body.Workspaces) != 1 || body.Workspaces[0].ID != 42 {
			t.Errorf("workspaces = %+v", body.Workspaces)
		}
	})

	t.Run("dashboard", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/dashboard?start_date=2026-03-01&end_date=2026-03-31")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var rep analytics.AdminReport
		decodeInto(t, w, &rep)
		if rep.ReportID == "" {
			t.Error("ReportID is empty")
		}
		if rep.OrganizationSummary == nil || rep.OrganizationSummary.WorkspaceID != 42 {
			t.Errorf("organization summary = %+v", rep.OrganizationSummary)
		}
		if len(rep.ProjectProfitability) != 1 || rep.ProjectProfitability[0].Name != "Atlas" {
			t.Errorf("projects = %+v", rep.ProjectProfitability)
		}
	})

	t.Run("project report with sort and filters", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/reports/projects?period=month&sort_by=margin&min_hours=10&labor_cost_pct=0.5")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var rep report.ProjectReport
		decodeInto(t, w, &rep)
		if len(rep.Projects) != 1 || rep.Projects[0].Name != "Atlas" {
			t.Errorf("projects = %+v", rep.Projects)
		}
	})

	t.Run("project report rejects unknown sort key", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/reports/projects?sort_by=alphabetical")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(errorMessage(t, w), "unknown sort key") {
			t.Errorf("error = %q", w.Body.String())
		}
	})

	t.Run("project report rejects out of range labor pct", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/reports/projects?labor_cost_pct=1.5")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(errorMessage(t, w), "labor_cost_pct") {
			t.Errorf("error = %q", w.Body.String())
		}
	})

	t.Run("client report filters by revenue", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/reports/clients?min_revenue=10000")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var rep report.ClientReport
		decodeInto(t, w, &rep)
		if len(rep.Clients) != 0 {
			t.Errorf("expected all clients filtered out, got %+v", rep.Clients)
		}
	})

	t.Run("client report rejects negative revenue floor", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/reports/clients?min_revenue=-5")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
	})

	t.Run("team report with individuals", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/reports/team?include_individual=true")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var rep report.TeamReport
		decodeInto(t, w, &rep)
		if rep.Metrics == nil || rep.Metrics.TeamSize != 1 {
			t.Errorf("metrics = %+v", rep.Metrics)
		}
		if len(rep.Individual) != 1 {
			t.Errorf("individual = %+v", rep.Individual)
		}
	})

	t.Run("financial summary", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/reports/financial-summary?period=week")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var rep report.FinancialReport
		decodeInto(t, w, &rep)
		if rep.Current == nil {
			t.Fatal("Current is nil")
		}
		if rep.Current.TotalHours != 30 {
			t.Errorf("TotalHours = %v", rep.Current.TotalHours)
		}
	})

	t.Run("productivity with patterns", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/reports/productivity?include_patterns=1")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var rep report.ProductivityReport
		decodeInto(t, w, &rep)
		if rep.Snapshot == nil || rep.Detailed == nil {
			t.Fatalf("snapshot/detailed missing: %+v", rep)
		}
		if rep.Patterns == nil {
			t.Error("Patterns is nil with include_patterns set")
		}
	})

	t.Run("billing analysis", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/reports/billing")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var rep report.BillingReport
		decodeInto(t, w, &rep)
		if rep.Analysis == nil || rep.Analysis.WorkspaceID != 42 {
			t.Errorf("analysis = %+v", rep.Analysis)
		}
	})

	t.Run("employee breakdown decodes the route name", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/employees/Ada%20Lovelace/breakdown")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var rep report.EmployeeBreakdown
		decodeInto(t, w, &rep)
		if rep.EmployeeName != "Ada Lovelace" {
			t.Errorf("EmployeeName = %q", rep.EmployeeName)
		}
		if rep.TotalHours != 30 {
			t.Errorf("TotalHours = %v", rep.TotalHours)
		}
	})

	t.Run("employee not found maps to 404", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/employees/Nobody/breakdown")
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
	})

	t.Run("invalid workspace IDs map to 400", func(t *testing.T) {
		for _, path := range []string{
			"/api/v1/workspaces/0/dashboard",
			"/api/v1/workspaces/abc/dashboard",
			"/api/v1/workspaces/-3/dashboard",
		} {
			if w := get(t, handler, path); w.Code != http.StatusBadRequest {
				t.Errorf("%s: status = %d", path, w.Code)
			}
		}
	})

	t.Run("one sided date range maps to 400", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/dashboard?start_date=2026-03-01")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
		if !strings.Contains(errorMessage(t, w), "start_date and end_date") {
			t.Errorf("error = %q", w.Body.String())
		}
	})

	t.Run("unknown period maps to 400", func(t *testing.T) {
		w := get(t, handler, "/api/v1/workspaces/42/dashboard?period=fortnight")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
	})
}

func TestServerUpstreamErrorMapping(t *testing.T) {
	f := &fakeUpstream{}
	handler := newTestHandler(t, f, nil, nil)

	t.Run("premium requirement maps to 402", func(t *testing.T) {
		f.setFailStatus(http.StatusPaymentRequired)
		w := get(t, handler, "/api/v1/workspaces/42/dashboard")
		if w.Code != http.StatusPaymentRequired {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if !strings.Contains(errorMessage(t, w), "premium") {
			t.Errorf("error = %q", w.Body.String())
		}
	})

	t.Run("permission failure maps to 403", func(t *testing.T) {
		f.setFailStatus(http.StatusForbidden)
		w := get(t, handler, "/api/v1/workspaces/42/reports/team")
		if w.Code != http.StatusForbidden {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
	})

	t.Run("upstream server error maps to 502", func(t *testing.T) {
		f.setFailStatus(http.StatusInternalServerError)
		w := get(t, handler, "/api/v1/workspaces/42/reports/projects")
		if w.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if errorMessage(t, w) != "Upstream time tracking API failed" {
			t.Errorf("error = %q", w.Body.String())
		}
	})
}

func TestServerCompute(t *testing.T) {
	handler := newTestHandler(t, &fakeUpstream{}, nil, nil)

	post := func(t *testing.T, body []byte, header map[string]string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest("POST", "/api/v1/reports/compute", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		for k, v := range header {
			req.Header.Set(k, v)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	t.Run("computes from supplied payloads", func(t *testing.T) {
		body, err := json.Marshal(report.ComputeRequest{
			Workspace: analytics.WorkspaceInfo{ID: 42, Name: "Acme", Currency: "USD"},
			Period:    "2026-03-01 to 2026-03-31",
			Dimension: "projects",
			Insights:  json.RawMessage(groupedFixture("projects")),
		})
		if err != nil {
			t.Fatal(err)
		}

		w := post(t, body, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var result report.ComputeResult
		decodeInto(t, w, &result)
		if len(result.Records) != 1 || result.Records[0].Name != "Atlas" {
			t.Errorf("records = %+v", result.Records)
		}
		if result.DroppedEntries != 0 {
			t.Errorf("DroppedEntries = %d", result.DroppedEntries)
		}
	})

	t.Run("accepts zstd compressed bodies", func(t *testing.T) {
		body, err := json.Marshal(report.ComputeRequest{
			Workspace: analytics.WorkspaceInfo{ID: 42, Name: "Acme", Currency: "USD"},
			Insights:  json.RawMessage(groupedFixture("projects")),
		})
		if err != nil {
			t.Fatal(err)
		}
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			t.Fatal(err)
		}
		compressed := encoder.EncodeAll(body, nil)

		w := post(t, compressed, map[string]string{"Content-Encoding": "zstd"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		var result report.ComputeResult
		decodeInto(t, w, &result)
		if len(result.Records) != 1 {
			t.Errorf("records = %+v", result.Records)
		}
	})

	t.Run("empty request maps to 400", func(t *testing.T) {
		w := post(t, []byte(`{}`), nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if !strings.Contains(errorMessage(t, w), "no payloads") {
			t.Errorf("error = %q", w.Body.String())
		}
	})

	t.Run("unknown dimension maps to 400", func(t *testing.T) {
		body := []byte(`{"dimension": "teams", "insights": {"data": []}}`)
		w := post(t, body, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
		}
		if !strings.Contains(errorMessage(t, w), "unknown grouping dimension") {
			t.Errorf("error = %q", w.Body.String())
		}
	})

	t.Run("malformed JSON maps to 400", func(t *testing.T) {
		w := post(t, []byte(`{"insights": `), nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d", w.Code)
		}
		if errorMessage(t, w) != "Invalid JSON payload" {
			t.Errorf("error = %q", w.Body.String())
		}
	})

	t.Run("missing content type maps to 415", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/reports/compute", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnsupportedMediaType {
			t.Fatalf("status = %d", w.Code)
		}
	})

	t.Run("non JSON content type maps to 415", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/v1/reports/compute", strings.NewReader("period,hours"))
		req.Header.Set("Content-Type", "text/csv")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusUnsupportedMediaType {
			t.Fatalf("status = %d", w.Code)
		}
	})
}

func TestServerRateLimit(t *testing.T) {
	limiter := ratelimit.NewInMemoryRateLimiter(0.01, 1)
	defer limiter.Stop()
	handler := newTestHandler(t, &fakeUpstream{}, limiter, nil)

	first := get(t, handler, "/health")
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := get(t, handler, "/health")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}
}

func TestServerCORS(t *testing.T) {
	handler := newTestHandler(t, &fakeUpstream{}, nil, []string{"https://app.example.com"})

	req := httptest.NewRequest("OPTIONS", "/api/v1/workspaces", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
