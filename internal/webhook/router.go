// SPDX-License-Identifier: AGPL-3.0-or-later

package webhook

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/watchlaterhq/autowl/internal/middleware"
)

// NewRouter builds the webhook receiver's routes, grounded on the
// teacher's internal/api/chi_router.go conventions (RequestIDWithLogging,
// RealIP, Recoverer, Timeout middleware), rate-limited against an
// abusive or misconfigured hub per SPEC_FULL.md's domain-stack wiring for
// github.com/go-chi/httprate. The caller mounts the returned handler at
// the "/webhook" prefix (see cmd/server/main.go); routes here are
// relative to that mount point.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.ChiAdapt(middleware.RequestID))
	r.Use(middleware.ChiAdapt(middleware.PrometheusMetrics))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Get("/", h.HandleVerify)
	r.Post("/", h.HandleNotify)

	return r
}
