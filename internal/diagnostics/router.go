// SPDX-License-Identifier: AGPL-3.0-or-later

package diagnostics

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watchlaterhq/autowl/internal/middleware"
)

// NewRouter builds the operator-facing surface: /healthz, /metrics, and
// the /diagnostics/* read-model endpoints. Grounded on the teacher's
// internal/api/chi_router.go route-grouping-with-per-group-middleware
// pattern. CORS is permissive-read-only since these are GET-only,
// operator-tooling endpoints, not authenticated user-facing APIs.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.ChiAdapt(middleware.RequestID))
	r.Use(middleware.ChiAdapt(middleware.PrometheusMetrics))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(10 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", h.HandleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/diagnostics", func(r chi.Router) {
		r.Get("/summary", h.HandleSummary)
		r.Get("/failed-jobs", h.HandleFailedJobs)
		r.Get("/unprocessed-events", h.HandleUnprocessedEvents)
		r.Get("/quota-usage", h.HandleQuotaUsage)
	})

	return r
}
