// SPDX-License-Identifier: AGPL-3.0-or-later

package bootstrap

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/watchlaterhq/autowl/internal/logging"
)

// apiResponse mirrors internal/diagnostics's response envelope, adapted
// from the teacher's internal/api/response.go. Kept as its own small
// copy rather than exported from internal/diagnostics since the two
// packages have no other reason to depend on each other.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiResponse{Success: false, Error: &apiError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("bootstrap: failed to encode JSON response")
	}
}
