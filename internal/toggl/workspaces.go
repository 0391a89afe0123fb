package toggl

import (
	"context"
	"fmt"
	"net/http"
)

// Workspace is the v9 workspace resource, reduced to the fields the
// reporting flows read.
type Workspace struct {
	ID                int64    `json:"id"`
	Name              string   `json:"name"`
	Premium           bool     `json:"premium"`
	Admin             bool     `json:"admin"`
	DefaultHourlyRate *float64 `json:"default_hourly_rate"`
	DefaultCurrency   string   `json:"default_currency"`
}

// Workspaces lists every workspace the API token can see.
func (c *Client) Workspaces(ctx context.Context) ([]Workspace, error) {
	var workspaces []Workspace
	if err := c.doJSON(ctx, http.MethodGet, "/api/v9/workspaces", nil, nil, &workspaces); err != nil {
		return nil, fmt.Errorf("list workspaces: %w", err)
	}
	return workspaces, nil
}

// Workspace fetches one workspace by id.
func (c *Client) Workspace(ctx context.Context, id int64) (*Workspace, error) {
	var ws Workspace
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/v9/workspaces/%d", id), nil, nil, &ws); err != nil {
		return nil, fmt.Errorf("get workspace %d: %w", id, err)
	}
	return &ws, nil
}
