package toggl

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for upstream responses that callers branch on.
var (
	// ErrPremiumRequired means the workspace plan does not include the
	// requested report.
	ErrPremiumRequired = errors.New("feature requires a premium or enterprise plan")

	// ErrForbidden means the API token lacks admin access to the
	// workspace.
	ErrForbidden = errors.New("insufficient permissions, admin access required")
)

// APIError is any other non-success response from the Toggl API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("toggl API error (status %d): %s", e.StatusCode, e.Message)
}

// newAPIError extracts a human-readable message from an error body.
// Toggl serves {"message": ...} objects, bare JSON strings, and plain
// text depending on the endpoint.
func newAPIError(status int, body []byte) *APIError {
	msg := strings.TrimSpace(string(body))

	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		msg = envelope.Message
	} else {
		var s string
		if err := json.Unmarshal(body, &s); err == nil && s != "" {
			msg = s
		}
	}

	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}
