package toggl

import (
	"context"
	"fmt"
	"sync"

	"github.com/TracklensDev/tracklens/internal/analytics"
	"github.com/TracklensDev/tracklens/internal/logger"
)

// WorkspaceCache memoizes workspace metadata so report flows do not
// re-fetch the currency and name on every query. Lookups that fail
// upstream fall back to a placeholder instead of failing the report.
type WorkspaceCache struct {
	client *Client

	mu   sync.RWMutex
	byID map[int64]analytics.WorkspaceInfo
}

// NewWorkspaceCache wraps a client with an empty cache.
func NewWorkspaceCache(client *Client) *WorkspaceCache {
	return &WorkspaceCache{
		client: client,
		byID:   make(map[int64]analytics.WorkspaceInfo),
	}
}

// Warm fills the cache with every workspace the token can see.
func (w *WorkspaceCache) Warm(ctx context.Context) error {
	if _, err := w.List(ctx); err != nil {
		return fmt.Errorf("warm workspace cache: %w", err)
	}
	return nil
}

// List fetches every workspace the token can see and refreshes the
// cached metadata as a side effect.
func (w *WorkspaceCache) List(ctx context.Context) ([]Workspace, error) {
	workspaces, err := w.client.Workspaces(ctx)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	for _, ws := range workspaces {
		w.byID[ws.ID] = workspaceInfo(ws)
	}
	w.mu.Unlock()
	return workspaces, nil
}

// Get returns workspace metadata, fetching and caching it on a miss.
// When the fetch fails the placeholder is returned uncached, so a later
// call can still recover the real metadata.
func (w *WorkspaceCache) Get(ctx context.Context, id int64) analytics.WorkspaceInfo {
	w.mu.RLock()
	info, ok := w.byID[id]
	w.mu.RUnlock()
	if ok {
		return info
	}

	ws, err := w.client.Workspace(ctx, id)
	if err != nil {
		logger.Warn("workspace lookup failed, using placeholder",
			"workspace_id", id, "error", err.Error())
		return analytics.WorkspaceInfo{ID: id, Name: "Unknown", Currency: "USD"}
	}

	info = workspaceInfo(*ws)
	w.mu.Lock()
	w.byID[id] = info
	w.mu.Unlock()
	return info
}

func workspaceInfo(ws Workspace) analytics.WorkspaceInfo {
	currency := ws.DefaultCurrency
	if currency == "" {
		currency = "USD"
	}
	return analytics.WorkspaceInfo{ID: ws.ID, Name: ws.Name, Currency: currency}
}
