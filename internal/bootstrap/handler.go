// SPDX-License-Identifier: AGPL-3.0-or-later

package bootstrap

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/watchlaterhq/autowl/internal/logging"
	"github.com/watchlaterhq/autowl/internal/store"
)

// Handler serves the user-facing bootstrap RPC spec.md §9 describes.
type Handler struct {
	Syncer *Syncer
}

// NewHandler builds a Handler around a Syncer.
func NewHandler(s *Syncer) *Handler {
	return &Handler{Syncer: s}
}

// HandleSync serves POST /bootstrap/{userID}: runs one subscription-sync
// pass and returns a summary of what changed.
func (h *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "missing user id")
		return
	}

	result, err := h.Syncer.Sync(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "user not found")
			return
		}
		logging.Error().Err(err).Str("user_id", userID).Msg("bootstrap: sync failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "bootstrap sync failed")
		return
	}

	writeSuccess(w, result)
}
