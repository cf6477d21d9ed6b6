package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/services"
)

func (h *Handler) token(w http.ResponseWriter, r *http.Request) {
	identity := h.identity(r)
	if identity == "" {
		h.writeError(w, r, common.ErrorUnauthorized)
		return
	}

	q := r.URL.Query()
	grant, err := h.svc.GetToken(r.Context(), services.TokenRequest{
		FileID:   q.Get("file_id"),
		Identity: identity,
		Action:   q.Get("action"),
	})
	switch {
	case errors.Is(err, services.ErrEditorUnavailable) && grant != nil:
		writeJSON(w, http.StatusServiceUnavailable, grant)
	case err != nil:
		h.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, grant)
	}
}

type cleanResponse struct {
	Success  bool     `json:"success"`
	Deleted  []string `json:"deleted"`
	Retained []string `json:"retained"`
	Skipped  []string `json:"skipped"`
}

func (h *Handler) clean(w http.ResponseWriter, r *http.Request) {
	identity := h.identity(r)
	if identity == "" {
		h.writeError(w, r, common.ErrorUnauthorized)
		return
	}
	if !h.isAdmin(identity) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	req := services.CleanRequest{FileID: r.PathValue("file_id")}
	var err error
	if req.KeepAuto, err = optionalInt(r, "keep_auto"); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.KeepExplicit, err = optionalInt(r, "keep_exp"); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.CleanVersions(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanResponse{
		Success:  true,
		Deleted:  nonNil(res.Deleted),
		Retained: nonNil(res.Retained),
		Skipped:  nonNil(res.Skipped),
	})
}

func (h *Handler) locked(w http.ResponseWriter, r *http.Request) {
	if h.identity(r) == "" {
		h.writeError(w, r, common.ErrorUnauthorized)
		return
	}
	st, err := h.svc.LockStatus(r.Context(), r.PathValue("file_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func optionalInt(r *http.Request, name string) (*int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, common.NewValidationError(name, "must be an integer")
	}
	return &n, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
