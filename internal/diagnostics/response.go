// SPDX-License-Identifier: AGPL-3.0-or-later

package diagnostics

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/watchlaterhq/autowl/internal/logging"
)

// apiResponse is the standard envelope every diagnostics endpoint returns,
// adapted from the teacher's internal/api/response.go APIResponse.
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
	Meta    *apiMeta    `json:"meta,omitempty"`
}

type apiError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

type apiMeta struct {
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

const (
	errCodeBadRequest    = "BAD_REQUEST"
	errCodeNotFound      = "NOT_FOUND"
	errCodeInternalError = "INTERNAL_ERROR"
	errCodeDatabaseError = "DATABASE_ERROR"
)

// responseWriter mirrors the teacher's ResponseWriter: one instance per
// request, closing over the start time so DurationMs is meaningful.
type responseWriter struct {
	w         http.ResponseWriter
	r         *http.Request
	startTime time.Time
}

func newResponseWriter(w http.ResponseWriter, r *http.Request) *responseWriter {
	return &responseWriter{w: w, r: r, startTime: time.Now()}
}

func (rw *responseWriter) success(data interface{}) {
	resp := apiResponse{
		Success: true,
		Data:    data,
		Meta: &apiMeta{
			RequestID:  logging.RequestIDFromContext(rw.r.Context()),
			Timestamp:  time.Now(),
			DurationMs: time.Since(rw.startTime).Milliseconds(),
		},
	}
	rw.writeJSON(http.StatusOK, resp)
}

func (rw *responseWriter) errorResponse(status int, code, message string) {
	requestID := logging.RequestIDFromContext(rw.r.Context())
	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
		Meta: &apiMeta{
			RequestID:  requestID,
			Timestamp:  time.Now(),
			DurationMs: time.Since(rw.startTime).Milliseconds(),
		},
	}
	rw.writeJSON(status, resp)
}

func (rw *responseWriter) badRequest(message string) {
	rw.errorResponse(http.StatusBadRequest, errCodeBadRequest, message)
}

func (rw *responseWriter) notFound(message string) {
	rw.errorResponse(http.StatusNotFound, errCodeNotFound, message)
}

func (rw *responseWriter) databaseError(err error) {
	logging.Error().Err(err).Msg("diagnostics: database error")
	rw.errorResponse(http.StatusInternalServerError, errCodeDatabaseError, "a database error occurred")
}

func (rw *responseWriter) writeJSON(status int, data interface{}) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(status)
	if err := json.NewEncoder(rw.w).Encode(data); err != nil {
		logging.Error().Err(err).Msg("diagnostics: failed to encode JSON response")
	}
}
