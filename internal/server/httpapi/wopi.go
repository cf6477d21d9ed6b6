package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/services"
)

// X-WOPI-Override values handled on POST /wopi/files/{file_id}.
const (
	overrideLock        = "LOCK"
	overrideGetLock     = "GET_LOCK"
	overrideRefreshLock = "REFRESH_LOCK"
	overrideUnlock      = "UNLOCK"
)

func (h *Handler) checkFileInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.CheckFileInfo(r.Context(), fileRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	rc, fc, err := h.svc.GetFile(r.Context(), fileRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer rc.Close()

	ct := fc.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.FormatInt(fc.Size, 10))
	if fc.Version != "" {
		w.Header().Set(common.HeaderWopiItemVersion, fc.Version)
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn(r.Context(), "file download interrupted", "file_id", r.PathValue("file_id"), "error", err)
	}
}

func (h *Handler) putFile(w http.ResponseWriter, r *http.Request) {
	fr := fileRequest(r)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.writeError(w, r, common.NewValidationError("body", err.Error()))
		return
	}

	res, err := h.svc.PutFile(r.Context(), services.PutFileRequest{
		FileID:      fr.FileID,
		AccessToken: fr.AccessToken,
		LockID:      r.Header.Get(common.HeaderWopiLock),
		Timestamp:   firstHeader(r, common.HeaderLoolTimestamp, common.HeaderCoolTimestamp),
		Autosave:    parseBool(firstHeader(r, common.HeaderLoolIsAutosave, common.HeaderCoolIsAutosave)),
		Data:        data,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set(common.HeaderWopiItemVersion, res.Version)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) override(w http.ResponseWriter, r *http.Request) {
	fr := fileRequest(r)
	lr := services.LockRequest{
		FileID:      fr.FileID,
		AccessToken: fr.AccessToken,
		LockID:      r.Header.Get(common.HeaderWopiLock),
		OldLockID:   r.Header.Get(common.HeaderWopiOldLock),
	}

	var err error
	switch op := strings.ToUpper(r.Header.Get(common.HeaderWopiOverride)); op {
	case overrideLock:
		err = h.svc.Lock(r.Context(), lr)
	case overrideRefreshLock:
		err = h.svc.RefreshLock(r.Context(), lr)
	case overrideUnlock:
		err = h.svc.Unlock(r.Context(), lr)
	case overrideGetLock:
		var lockID string
		lockID, err = h.svc.GetLock(r.Context(), fr)
		if err == nil {
			w.Header().Set(common.HeaderWopiLock, lockID)
		}
	default:
		h.logger.Debug(r.Context(), "unsupported override", "override", op)
		http.Error(w, "unsupported "+common.HeaderWopiOverride, http.StatusNotImplemented)
		return
	}

	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func firstHeader(r *http.Request, names ...string) string {
	for _, n := range names {
		if v := r.Header.Get(n); v != "" {
			return v
		}
	}
	return ""
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}
