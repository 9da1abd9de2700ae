// SPDX-License-Identifier: AGPL-3.0-or-later

package bootstrap

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/watchlaterhq/autowl/internal/middleware"
)

// NewRouter builds the bootstrap RPC's routes, grounded on the same
// chi middleware stack (RequestID, RealIP, Recoverer, Timeout) the
// webhook and diagnostics routers use. A sync pass makes one or two
// outbound Platform API calls plus a WebSub tick, so its timeout is
// generous relative to the other HTTP surfaces.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.ChiAdapt(middleware.RequestID))
	r.Use(middleware.ChiAdapt(middleware.PrometheusMetrics))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Post("/{userID}", h.HandleSync)

	return r
}
