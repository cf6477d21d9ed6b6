package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/locks"
	"github.com/dmitrijs2005/wopihost/internal/server/services"
)

// loolStatusDocChanged tells the editor that the document changed in
// storage and offers the user to overwrite or reload.
const loolStatusDocChanged = 1010

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to its WOPI response.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	fileID := r.PathValue("file_id")

	var lme *locks.LockMismatchError
	switch {
	case errors.As(err, &lme):
		w.Header().Set(common.HeaderWopiLock, lme.CurrentLockID)
		w.Header().Set(common.HeaderWopiLockFailureReason, lme.Reason)
		w.WriteHeader(http.StatusConflict)
	case errors.Is(err, common.ErrConflictDetected):
		writeJSON(w, http.StatusConflict, map[string]int{"LOOLStatusCode": loolStatusDocChanged})
	case errors.Is(err, common.ErrTokenInvalid), errors.Is(err, common.ErrorUnauthorized):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, common.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, common.ErrorNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, services.ErrEditorUnavailable):
		http.Error(w, "editor unavailable", http.StatusServiceUnavailable)
	default:
		h.logger.Error(ctx, "request failed", "method", r.Method, "path", r.URL.Path, "file_id", fileID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.logger.Debug(ctx, "request rejected", "method", r.Method, "path", r.URL.Path, "file_id", fileID, "error", err)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				h.logger.Error(r.Context(), "panic serving request", "path", r.URL.Path, "panic", v, "stack", string(debug.Stack()))
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
