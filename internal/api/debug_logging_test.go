package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TracklensDev/tracklens/internal/logger"
)

// debugLines runs one request through the debug middleware and returns
// the parsed log lines alongside what the downstream handler received.
func debugLines(t *testing.T, body []byte) (lines []map[string]any, received []byte) {
	t.Helper()

	var buf bytes.Buffer
	restore := logger.SetOutputForTest(&buf)
	defer restore()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"status":"ok"}`))
	})
	handler := debugLoggingMiddleware()(inner)

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req := httptest.NewRequest("POST", "/api/v1/reports/compute", rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		entry := map[string]any{}
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			t.Fatalf("debug line is not JSON: %v\n%s", err, raw)
		}
		lines = append(lines, entry)
	}
	return lines, received
}

func TestDebugLogging_PreservesOversizedBody(t *testing.T) {
	cleanup := logger.SetDebugForTest(true)
	defer cleanup()

	// Bigger than debugBodyCap. Clipping must only affect the logged
	// copy; the handler has to parse the whole payload.
	payload, err := json.Marshal(map[string]any{
		"dimension": "projects",
		"blob":      strings.Repeat("x", 2*debugBodyCap),
	})
	if err != nil {
		t.Fatal(err)
	}

	lines, received := debugLines(t, payload)

	if !bytes.Equal(received, payload) {
		t.Fatalf("downstream handler received %d bytes, sent %d", len(received), len(payload))
	}
	if !json.Valid(received) {
		t.Fatal("downstream body no longer parses as JSON")
	}

	if len(lines) != 2 {
		t.Fatalf("expected request and response lines, got %d", len(lines))
	}
	reqLine := lines[0]
	if got := reqLine["msg"]; got != "request payload" {
		t.Errorf("first line msg = %v", got)
	}
	if got := reqLine["size"]; got != float64(len(payload)) {
		t.Errorf("size = %v, want %d", got, len(payload))
	}
	if got := reqLine["clipped"]; got != true {
		t.Error("oversized request should be marked clipped")
	}
	if body, _ := reqLine["body"].(string); len(body) != debugBodyCap {
		t.Errorf("logged body = %d bytes, want the %d byte cap", len(body), debugBodyCap)
	}

	respLine := lines[1]
	if got := respLine["msg"]; got != "response payload" {
		t.Errorf("second line msg = %v", got)
	}
	if got := respLine["status"]; got != float64(200) {
		t.Errorf("status = %v", got)
	}
	if got := respLine["clipped"]; got != false {
		t.Error("small response should not be marked clipped")
	}
}

func TestDebugLogging_SmallBodyRoundTrips(t *testing.T) {
	cleanup := logger.SetDebugForTest(true)
	defer cleanup()

	payload := []byte(`{"dimension":"clients"}`)
	lines, received := debugLines(t, payload)

	if !bytes.Equal(received, payload) {
		t.Errorf("received %q, sent %q", received, payload)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if got := lines[0]["body"]; got != string(payload) {
		t.Errorf("logged body = %v", got)
	}
	if got := lines[0]["clipped"]; got != false {
		t.Error("small request should not be marked clipped")
	}
}

func TestDebugLogging_EmptyBodyLogsResponseOnly(t *testing.T) {
	cleanup := logger.SetDebugForTest(true)
	defer cleanup()

	lines, received := debugLines(t, nil)

	if len(received) != 0 {
		t.Errorf("expected empty downstream body, got %d bytes", len(received))
	}
	if len(lines) != 1 {
		t.Fatalf("expected only the response line, got %d", len(lines))
	}
	if got := lines[0]["msg"]; got != "response payload" {
		t.Errorf("msg = %v", got)
	}
}

func TestDebugLogging_DisabledIsPassthrough(t *testing.T) {
	cleanup := logger.SetDebugForTest(false)
	defer cleanup()

	payload := []byte(`{"dimension":"users"}`)
	lines, received := debugLines(t, payload)

	if len(lines) != 0 {
		t.Fatalf("expected no debug lines at info level, got %d", len(lines))
	}
	if !bytes.Equal(received, payload) {
		t.Errorf("received %q, sent %q", received, payload)
	}
}

func TestDebugTap(t *testing.T) {
	t.Run("mirrors up to the limit", func(t *testing.T) {
		rr := httptest.NewRecorder()
		tap := &debugTap{ResponseWriter: rr, status: http.StatusOK, limit: 100}

		data := bytes.Repeat([]byte("y"), 250)
		n, err := tap.Write(data)
		if err != nil || n != 250 {
			t.Fatalf("Write = (%d, %v)", n, err)
		}

		if tap.body.Len() != 100 {
			t.Errorf("mirrored %d bytes, want 100", tap.body.Len())
		}
		if tap.total != 250 {
			t.Errorf("total = %d, want 250", tap.total)
		}
		if rr.Body.Len() != 250 {
			t.Errorf("real writer got %d bytes, want all 250", rr.Body.Len())
		}
	})

	t.Run("records explicit status", func(t *testing.T) {
		rr := httptest.NewRecorder()
		tap := &debugTap{ResponseWriter: rr, status: http.StatusOK, limit: 100}
		tap.WriteHeader(http.StatusCreated)
		if tap.status != http.StatusCreated || rr.Code != http.StatusCreated {
			t.Errorf("status = %d, recorder = %d", tap.status, rr.Code)
		}
	})

	t.Run("defaults to 200 without WriteHeader", func(t *testing.T) {
		rr := httptest.NewRecorder()
		tap := &debugTap{ResponseWriter: rr, status: http.StatusOK, limit: 100}
		tap.Write([]byte("ok"))
		if tap.status != http.StatusOK {
			t.Errorf("status = %d", tap.status)
		}
	})
}
