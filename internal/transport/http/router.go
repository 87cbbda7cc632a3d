// Package httptransport assembles the full HTTP surface: the authenticated
// v1 API, the health endpoint, and the Prometheus scrape endpoint. It owns
// the middleware chain; feature handlers only register routes.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	connectionhandler "proconnect/internal/connection/handler"
	"proconnect/internal/platform/metrics"
	"proconnect/internal/platform/middleware"
	"proconnect/pkg/platform/httputil"
)

const defaultRequestTimeout = 30 * time.Second

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Options carries what the router mounts beyond the feature handlers.
type Options struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Validator      middleware.TokenValidator
	RequestTimeout time.Duration

	// Health maps a dependency name ("postgres", "redis") to its check.
	// /healthz reports per-dependency state and degrades to 503 when any
	// check fails.
	Health map[string]HealthChecker
}

// New wires the router. The correlation middleware (request id, request time,
// client metadata) runs for every route; the timeout, content type, and auth
// middleware only guard the API, so health and metrics stay reachable when
// auth or a dependency is down.
func New(connections *connectionhandler.Handler, opts Options) http.Handler {
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(opts.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(opts.Logger))
	r.Use(middleware.Latency(opts.Metrics))

	r.Get("/healthz", handleHealth(opts.Health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(timeout))
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.RequireAuth(opts.Validator, opts.Logger))
		connections.Register(api)
	})

	return r
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks)+1)
		result["status"] = "ok"
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = "unavailable"
				result["status"] = "degraded"
				continue
			}
			result[name] = "ok"
		}
		httputil.WriteJSON(w, status, result)
	}
}
