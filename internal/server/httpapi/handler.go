// Package httpapi exposes the WOPI REST endpoints consumed by the editor and
// the small /collabora API used by the embedding application.
package httpapi

import (
	"context"
	"io"
	"net/http"
	"slices"

	"github.com/dmitrijs2005/wopihost/internal/logging"
	"github.com/dmitrijs2005/wopihost/internal/server/retention"
	"github.com/dmitrijs2005/wopihost/internal/server/services"
)

// Service is the WOPI orchestration layer. *services.WopiService satisfies it.
type Service interface {
	CheckFileInfo(ctx context.Context, req services.FileRequest) (services.FileInfo, error)
	GetFile(ctx context.Context, req services.FileRequest) (io.ReadCloser, *services.FileContent, error)
	PutFile(ctx context.Context, req services.PutFileRequest) (*services.PutFileResult, error)
	Lock(ctx context.Context, req services.LockRequest) error
	GetLock(ctx context.Context, req services.FileRequest) (string, error)
	RefreshLock(ctx context.Context, req services.LockRequest) error
	Unlock(ctx context.Context, req services.LockRequest) error
	GetToken(ctx context.Context, req services.TokenRequest) (*services.TokenGrant, error)
	CleanVersions(ctx context.Context, req services.CleanRequest) (*retention.Result, error)
	LockStatus(ctx context.Context, fileID string) (*services.LockStatus, error)
}

// Options configures the adapter.
type Options struct {
	// IdentityHeader names the header set by the trusted upstream proxy
	// with the authenticated user of /collabora requests.
	IdentityHeader string
	// Admins may call the clean endpoint. Empty allows every identity.
	Admins []string
	// MaxUploadBytes bounds PutFile bodies.
	MaxUploadBytes int64
}

// DefaultMaxUploadBytes is used when Options.MaxUploadBytes is not set.
const DefaultMaxUploadBytes = 512 << 20

type Handler struct {
	svc    Service
	opts   Options
	logger logging.Logger
}

func NewHandler(svc Service, opts Options, logger logging.Logger) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.IdentityHeader == "" {
		opts.IdentityHeader = "X-Remote-User"
	}
	return &Handler{svc: svc, opts: opts, logger: logger.With("module", "http")}
}

// Routes returns the full route table wrapped in the logging and recovery
// middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /wopi/files/{file_id}", h.checkFileInfo)
	mux.HandleFunc("POST /wopi/files/{file_id}", h.override)
	mux.HandleFunc("GET /wopi/files/{file_id}/contents", h.getFile)
	mux.HandleFunc("POST /wopi/files/{file_id}/contents", h.putFile)

	mux.HandleFunc("GET /collabora/token", h.token)
	mux.HandleFunc("POST /collabora/clean/{file_id}", h.clean)
	mux.HandleFunc("GET /collabora/locked/{file_id}", h.locked)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return h.recoverer(h.logRequests(mux))
}

func (h *Handler) identity(r *http.Request) string {
	return r.Header.Get(h.opts.IdentityHeader)
}

func (h *Handler) isAdmin(identity string) bool {
	return len(h.opts.Admins) == 0 || slices.Contains(h.opts.Admins, identity)
}

func fileRequest(r *http.Request) services.FileRequest {
	return services.FileRequest{
		FileID:      r.PathValue("file_id"),
		AccessToken: r.URL.Query().Get("access_token"),
	}
}
