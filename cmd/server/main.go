package main

import (
	"context"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/TracklensDev/tracklens/internal/api"
	"github.com/TracklensDev/tracklens/internal/config"
	"github.com/TracklensDev/tracklens/internal/logger"
	"github.com/TracklensDev/tracklens/internal/ratelimit"
	"github.com/TracklensDev/tracklens/internal/report"
	"github.com/TracklensDev/tracklens/internal/toggl"
)

// version is stamped at build time via -ldflags.
var version string

func main() {
	// Profiling stays off unless asked for; reach it over a tunnel:
	// fly proxy 6060:6060 -a tracklens-backend
	if os.Getenv("ENABLE_PPROF") == "true" {
		go startPprofServer()
	}

	// Honeycomb tracing, configured entirely through OTEL_* env vars.
	// Missing exporter config is not fatal, the service just runs
	// untraced.
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		logger.Warn("failed to configure OpenTelemetry", "error", err)
	} else {
		defer otelShutdown()
	}

	cfg := loadConfig()

	tunables, err := config.Load(cfg.TunablesPath)
	if err != nil {
		logger.Fatal("failed to load tunables", "error", err)
	}
	if cfg.TunablesPath != "" {
		logger.Info("tunables loaded", "path", cfg.TunablesPath)
	}

	var clientOpts []toggl.ClientOption
	if cfg.TogglBaseURL != "" {
		clientOpts = append(clientOpts, toggl.WithBaseURL(cfg.TogglBaseURL))
	}
	client := toggl.NewClient(cfg.TogglAPIToken, clientOpts...)

	// Warm the workspace cache so the first reports carry real names
	// and currencies. A cold start is fine: Get falls back per lookup.
	workspaces := toggl.NewWorkspaceCache(client)
	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 30*time.Second)
	if err := workspaces.Warm(warmCtx); err != nil {
		logger.Warn("workspace cache warmup failed, starting cold", "error", err)
	}
	cancelWarm()

	reports := report.NewService(client, workspaces, tunables)

	var limiter ratelimit.RateLimiter
	if cfg.RateLimitRPS > 0 {
		memLimiter := ratelimit.NewInMemoryRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer memLimiter.Stop()
		limiter = memLimiter
		logger.Info("rate limiting enabled", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	}

	server := api.NewServer(reports, limiter, cfg.AllowedOrigins, version)

	// otelhttp wraps the whole router so every request carries a
	// server span.
	handler := otelhttp.NewHandler(server.SetupRoutes(), "tracklens-backend")

	// Workspace names, currencies and plans change rarely, but every
	// report labels its figures with them, so re-warm in the background.
	refreshCtx, stopRefresh := context.WithCancel(context.Background())
	defer stopRefresh()
	if cfg.WorkspaceRefresh > 0 {
		go refreshWorkspaces(refreshCtx, workspaces, cfg.WorkspaceRefresh)
	}

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "error", err)
		}
	}()

	// Fly sends SIGINT on deploys; drain in-flight reports before exit.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down server")
	stopRefresh()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// refreshWorkspaces re-warms the workspace cache on an interval so
// upstream renames and currency changes eventually reach report labels.
func refreshWorkspaces(ctx context.Context, cache *toggl.WorkspaceCache, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := cache.Warm(ctx); err != nil {
				logger.Warn("workspace cache refresh failed", "error", err)
			}
		}
	}
}

type Config struct {
	Port             int
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	TogglAPIToken    string
	TogglBaseURL     string
	TunablesPath     string
	AllowedOrigins   []string
	RateLimitRPS     float64
	RateLimitBurst   int
	WorkspaceRefresh time.Duration
}

func loadConfig() Config {
	// The upstream API token is the only hard requirement; every
	// report flow authenticates with it.
	apiToken := os.Getenv("TOGGL_API_TOKEN")
	if apiToken == "" {
		logger.Fatal("missing required env var", "var", "TOGGL_API_TOKEN")
	}

	return Config{
		Port:          envInt("PORT", 8080),
		ReadTimeout:   envDuration("HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:  envDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		TogglAPIToken: apiToken,

		// Optional override pointing the client at a proxy or test
		// double.
		TogglBaseURL: os.Getenv("TOGGL_BASE_URL"),

		// Optional TOML file adjusting report tunables (labor cost
		// share, capacity assumptions, billing thresholds). A broken
		// file is fatal rather than silently defaulted.
		TunablesPath: os.Getenv("TRACKLENS_TUNABLES"),

		// Comma-separated browser origins. Empty disables CORS, which
		// is correct for same-origin or server-to-server deployments.
		AllowedOrigins: splitOrigins(os.Getenv("ALLOWED_ORIGINS")),

		// Per-client limits. RATE_LIMIT_RPS=0 disables limiting.
		RateLimitRPS:   envFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 30),

		// WORKSPACE_REFRESH_INTERVAL=0 disables the background re-warm.
		WorkspaceRefresh: envDuration("WORKSPACE_REFRESH_INTERVAL", 15*time.Minute),
	}
}

// splitOrigins parses a comma-separated origin list, dropping blanks.
func splitOrigins(raw string) []string {
	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// The env helpers fall back to the default when a variable is unset or
// does not parse. envInt wants positive values, envFloat and
// envDuration accept zero since zero means "off" for their callers.

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	if v, err := strconv.Atoi(raw); err == nil && v > 0 {
		return v
	}
	return def
}

func envFloat(name string, def float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 {
		return v
	}
	return def
}

func envDuration(name string, def time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	if v, err := time.ParseDuration(raw); err == nil && v >= 0 {
		return v
	}
	return def
}

// startPprofServer serves the pprof index on localhost only. pprof.Index
// dispatches to the named profiles, so heap, goroutine and friends need
// no extra routes.
func startPprofServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	addr := "127.0.0.1:6060"
	logger.Info("pprof debug server starting", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("pprof server failed", "error", err)
	}
}
