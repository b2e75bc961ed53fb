// Package httptransport assembles the HTTP surface: middleware chain,
// admin routes, health and metrics endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"archivist/internal/archival/handler"
	platformmetrics "archivist/internal/platform/metrics"
	"archivist/pkg/platform/httputil"
	adminmw "archivist/pkg/platform/middleware/admin"
	operatormw "archivist/pkg/platform/middleware/operator"
	"archivist/pkg/platform/middleware/requestid"
	"archivist/pkg/platform/middleware/requesttime"
)

// HealthCheck reports the readiness of one backing dependency.
type HealthCheck func(ctx context.Context) error

// Deps carries everything the router needs. Health checks are keyed by
// dependency name and may be empty in memory-backed deployments.
type Deps struct {
	Handler      *handler.Handler
	AdminToken   string
	Logger       *slog.Logger
	HTTPMetrics  *platformmetrics.HTTP
	HealthChecks map[string]HealthCheck

	// RateLimit wraps the admin routes when set.
	RateLimit func(http.Handler) http.Handler
}

// NewRouter wires all endpoints. Admin routes sit behind the token and
// operator-identity middleware; health and metrics stay open for probes
// and scrapers.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", healthHandler(deps))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit)
		}
		r.Use(adminmw.RequireAdminToken(deps.AdminToken, deps.Logger))
		r.Use(operatormw.Middleware(deps.Logger))
		deps.Handler.Register(r)
	})

	return r
}

func healthHandler(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := make(map[string]string, len(deps.HealthChecks))
		for name, check := range deps.HealthChecks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				checks[name] = err.Error()
				deps.Logger.WarnContext(ctx, "health check failed",
					"dependency", name,
					"error", err,
				)
				continue
			}
			checks[name] = "ok"
		}

		body := map[string]any{"status": "ok", "checks": checks}
		if status != http.StatusOK {
			body["status"] = "degraded"
		}
		httputil.WriteJSON(w, status, body)
	}
}
