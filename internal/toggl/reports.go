package toggl

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/TracklensDev/tracklens/internal/analytics"
)

// SummaryReport fetches the v2 grouped summary for a workspace: hour
// totals per project, client, or user for the inclusive date range.
func (c *Client) SummaryReport(ctx context.Context, workspaceID int64, since, until string, grouping analytics.Dimension) (*analytics.ReportPayload, error) {
	payload, err := c.groupedReport(ctx, workspaceID, since, until, grouping)
	if err != nil {
		return nil, fmt.Errorf("summary report: %w", err)
	}
	return payload, nil
}

// InsightsReport fetches the revenue-bearing report for a workspace.
// The v2 API serves these numbers from the summary endpoint; keeping a
// separate method keeps call sites honest about which figures they
// consume.
func (c *Client) InsightsReport(ctx context.Context, workspaceID int64, since, until string, grouping analytics.Dimension) (*analytics.ReportPayload, error) {
	payload, err := c.groupedReport(ctx, workspaceID, since, until, grouping)
	if err != nil {
		return nil, fmt.Errorf("insights report: %w", err)
	}
	return payload, nil
}

func (c *Client) groupedReport(ctx context.Context, workspaceID int64, since, until string, grouping analytics.Dimension) (*analytics.ReportPayload, error) {
	q := url.Values{}
	q.Set("workspace_id", strconv.FormatInt(workspaceID, 10))
	q.Set("since", since)
	q.Set("until", until)
	q.Set("grouping", string(grouping))

	var payload analytics.ReportPayload
	if err := c.doJSON(ctx, http.MethodGet, "/reports/api/v2/summary", q, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

type detailedSearchRequest struct {
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	HideAmounts    bool   `json:"hide_amounts"`
	FirstRowNumber int64  `json:"first_row_number,omitempty"`
}

// DetailedEntries fetches every detailed v3 entry for the range,
// following next_row_number pagination until the last page.
func (c *Client) DetailedEntries(ctx context.Context, workspaceID int64, since, until string) ([]analytics.DetailedEntry, error) {
	path := fmt.Sprintf("/reports/api/v3/workspace/%d/search/time_entries", workspaceID)
	req := detailedSearchRequest{StartDate: since, EndDate: until}

	var all []analytics.DetailedEntry
	for {
		reqBody, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("marshal search request: %w", err)
		}
		body, err := c.send(ctx, http.MethodPost, path, nil, reqBody)
		if err != nil {
			return nil, fmt.Errorf("detailed report: %w", err)
		}
		page, next, err := decodeDetailedPage(body)
		if err != nil {
			return nil, fmt.Errorf("detailed report: %w", err)
		}
		all = append(all, page...)
		if next == 0 {
			return all, nil
		}
		req.FirstRowNumber = next
	}
}

// decodeDetailedPage handles both response shapes of the v3 search
// endpoint: a bare entry array, or an envelope with a pagination cursor.
func decodeDetailedPage(raw []byte) ([]analytics.DetailedEntry, int64, error) {
	var entries []analytics.DetailedEntry
	if err := json.Unmarshal(raw, &entries); err == nil {
		return entries, 0, nil
	}

	var envelope struct {
		Data          []analytics.DetailedEntry `json:"data"`
		NextRowNumber int64                     `json:"next_row_number"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, 0, fmt.Errorf("decode page: %w", err)
	}
	return envelope.Data, envelope.NextRowNumber, nil
}
