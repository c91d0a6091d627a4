// Package httptransport assembles the process router: the shared middleware
// chain, the authenticated public surface, the admin surface and the
// operational endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"derisk/internal/platform/idempotency"
	"derisk/internal/platform/metrics"
	"derisk/internal/platform/telemetry"
	"derisk/pkg/domain"
	"derisk/pkg/platform/audit"
	"derisk/pkg/platform/httputil"
	"derisk/pkg/platform/middleware/admin"
	"derisk/pkg/platform/middleware/auth"
	"derisk/pkg/platform/middleware/observe"
	request "derisk/pkg/platform/middleware/request"
	"derisk/pkg/platform/middleware/requesttime"
)

// PublicRoutes is implemented by every domain handler.
type PublicRoutes interface {
	Register(r chi.Router)
}

// AdminRoutes is implemented by handlers that expose operator endpoints.
type AdminRoutes interface {
	RegisterAdmin(r chi.Router)
}

// HealthCheck reports whether one backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

const healthTimeout = 2 * time.Second

// Config carries everything the router mounts. Handlers that also implement
// AdminRoutes are mounted on both surfaces.
type Config struct {
	ServiceName    string
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	JWT            auth.JWTValidator
	AdminTokenHash string
	AdminAccount   domain.AccountID
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
	Handlers       []PublicRoutes
	Health         map[string]HealthCheck
	// Events, when set, is served read-only to operators at /admin/events.
	Events audit.Store
	// Clock pins each request's time; nil is the wall clock.
	Clock func() time.Time
}

// NewRouter builds the chi router for the settlement API.
func NewRouter(cfg Config) http.Handler {
	r := chi.NewRouter()
	r.Use(telemetry.Middleware(cfg.ServiceName))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware(cfg.Clock))
	r.Use(observe.Middleware(cfg.Logger, cfg.Metrics))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", healthHandler(cfg.Health))
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(cfg.JWT, cfg.Logger))
		if cfg.Idempotency != nil {
			r.Use(idempotency.Middleware(cfg.Idempotency, cfg.IdempotencyTTL, cfg.Logger))
		}
		for _, h := range cfg.Handlers {
			h.Register(r)
		}
	})

	r.Group(func(r chi.Router) {
		r.Use(admin.RequireAdminToken(cfg.AdminTokenHash, cfg.AdminAccount, cfg.Logger))
		if cfg.Events != nil {
			r.Get("/admin/events", eventsHandler(cfg.Events))
		}
		for _, h := range cfg.Handlers {
			if a, ok := h.(AdminRoutes); ok {
				a.RegisterAdmin(r)
			}
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// healthHandler runs every check concurrently and answers 503 if any fails.
func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		results := make([]string, len(names))
		var g errgroup.Group
		for i, name := range names {
			g.Go(func() error {
				if err := checks[name](ctx); err != nil {
					results[i] = err.Error()
					return err
				}
				results[i] = "ok"
				return nil
			})
		}
		failed := g.Wait() != nil

		resp := healthResponse{Status: "ok", Checks: make(map[string]string, len(names))}
		for i, name := range names {
			resp.Checks[name] = results[i]
		}
		status := http.StatusOK
		if failed {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
