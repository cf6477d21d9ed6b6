// Package services contains server-side business logic. WopiService
// orchestrates the access token, lock, conflict and retention components
// behind each WOPI operation, so adapters only translate transport details.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/keymutex"
	"github.com/dmitrijs2005/wopihost/internal/logging"
	"github.com/dmitrijs2005/wopihost/internal/server/conflict"
	"github.com/dmitrijs2005/wopihost/internal/server/content"
	"github.com/dmitrijs2005/wopihost/internal/server/locks"
	"github.com/dmitrijs2005/wopihost/internal/server/retention"
	"github.com/dmitrijs2005/wopihost/internal/server/tokens"
	"github.com/go-playground/validator/v10"
)

// Discovery resolves editor URLs. *discovery.Client satisfies it.
type Discovery interface {
	Lookup(ctx context.Context, ext, action string) (string, error)
	LookupMime(ctx context.Context, mime, action string) (string, error)
	Online() bool
}

// Options holds the host settings surfaced to WOPI clients.
type Options struct {
	// PublicURL is the base URL the editor uses to reach this host; WOPISrc
	// values are built from it.
	PublicURL string
	// FileInfoFlags are merged into every CheckFileInfo response
	// (HidePrintOption, DisableCopy, PostMessageOrigin, ...).
	FileInfoFlags map[string]any
	// DefaultKeepAuto and DefaultKeepExplicit apply when a clean request
	// does not name its own limits. Nil or negative disables pruning.
	DefaultKeepAuto     *int
	DefaultKeepExplicit *int
	// Admins are reported with IsAdminUser in CheckFileInfo.
	Admins []string
}

type WopiService struct {
	content   content.Repository
	tokens    *tokens.Manager
	locks     *locks.Manager
	conflict  *conflict.Detector
	retention *retention.Policy
	discovery Discovery

	// writes serializes PutFile and retention per file.
	writes   keymutex.Map
	validate *validator.Validate
	opts     Options
	logger   logging.Logger
}

func NewWopiService(
	repo content.Repository,
	tm *tokens.Manager,
	lm *locks.Manager,
	disc Discovery,
	opts Options,
	logger logging.Logger,
) *WopiService {
	return &WopiService{
		content:   repo,
		tokens:    tm,
		locks:     lm,
		conflict:  conflict.NewDetector(repo, logger),
		retention: retention.NewPolicy(repo, logger),
		discovery: disc,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		opts:      opts,
		logger:    logger.With("module", "wopi"),
	}
}

// CheckFileInfo describes fileID as seen by the token's identity.
func (s *WopiService) CheckFileInfo(ctx context.Context, req FileRequest) (FileInfo, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	tok, err := s.tokens.Authorize(ctx, req.AccessToken, req.FileID)
	if err != nil {
		return nil, err
	}

	meta, err := s.content.Stat(ctx, req.FileID)
	if err != nil {
		return nil, err
	}

	info := FileInfo{}
	for k, v := range s.opts.FileInfoFlags {
		info[k] = v
	}
	info["BaseFileName"] = meta.Name
	info["Size"] = meta.Size
	info["OwnerId"] = meta.Owner
	info["UserId"] = tok.Identity
	info["UserFriendlyName"] = tok.Identity
	info["UserCanWrite"] = true
	info["IsAdminUser"] = s.isAdmin(tok.Identity)
	info["SupportsLocks"] = true
	info["SupportsUpdate"] = true
	info["SupportsGetLock"] = true
	info["UserCanNotWriteRelative"] = true
	if meta.HeadLabel != "" {
		info["Version"] = meta.HeadLabel
		info["LastModifiedTime"] = formatModified(meta.ModifiedAt)
	}
	return info, nil
}

// GetFile opens the head content of a file. The caller closes the reader.
func (s *WopiService) GetFile(ctx context.Context, req FileRequest) (io.ReadCloser, *FileContent, error) {
	if err := s.check(req); err != nil {
		return nil, nil, err
	}
	if _, err := s.tokens.Authorize(ctx, req.AccessToken, req.FileID); err != nil {
		return nil, nil, err
	}

	rc, meta, err := s.content.Read(ctx, req.FileID)
	if err != nil {
		return nil, nil, err
	}
	return rc, &FileContent{Name: meta.Name, MimeType: meta.MimeType, Size: meta.Size, Version: meta.HeadLabel}, nil
}

// PutFile stores a new revision. Under the file's write lock it checks the
// caller's timestamp, takes over the lock if one is presented, and then
// writes content and version together. A rejected check leaves content,
// versions and lock untouched.
func (s *WopiService) PutFile(ctx context.Context, req PutFileRequest) (*PutFileResult, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	tok, err := s.tokens.Authorize(ctx, req.AccessToken, req.FileID)
	if err != nil {
		return nil, err
	}

	unlock := s.writes.Lock(req.FileID)
	defer unlock()

	if _, err := s.content.Stat(ctx, req.FileID); err != nil {
		return nil, err
	}

	if err := s.conflict.Check(ctx, req.FileID, req.Timestamp); err != nil {
		return nil, err
	}

	if err := s.claimLock(ctx, req.FileID, req.LockID, tok.Identity); err != nil {
		return nil, err
	}

	v, err := s.content.WriteVersion(ctx, req.FileID, req.Data, versionOptions(req.Autosave, tok.Identity))
	if err != nil {
		return nil, err
	}

	meta, err := s.content.Stat(ctx, req.FileID)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "file saved", "file_id", req.FileID, "user", tok.Identity,
		"version", v.Label, "autosave", req.Autosave, "size", len(req.Data))

	return &PutFileResult{LastModifiedTime: formatModified(meta.ModifiedAt), Version: v.Label}, nil
}

// claimLock makes sure the writer may write. With a lock id the lock is
// stolen (identity bound); without one, a live lock held by someone else
// blocks the write.
func (s *WopiService) claimLock(ctx context.Context, fileID, lockID, identity string) error {
	if lockID != "" {
		return s.locks.Steal(ctx, fileID, lockID, identity)
	}
	cur, err := s.locks.Current(ctx, fileID)
	if err != nil {
		return err
	}
	if cur != nil && cur.Owner != identity {
		return &locks.LockMismatchError{CurrentLockID: cur.LockID, Reason: locks.ReasonOwnedByOther}
	}
	return nil
}

// GetToken issues an access token for identity on fileID and resolves the
// editor URL for action. When the editor is unreachable the grant is still
// returned, with an empty WopiSrcURL, together with ErrEditorUnavailable.
func (s *WopiService) GetToken(ctx context.Context, req TokenRequest) (*TokenGrant, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}

	meta, err := s.content.Stat(ctx, req.FileID)
	if err != nil {
		return nil, err
	}

	tok, err := s.tokens.Issue(ctx, req.FileID, req.Identity)
	if err != nil {
		return nil, err
	}
	grant := &TokenGrant{AccessToken: tok.Token, AccessTokenTTL: tok.TTLMillis()}

	urlsrc, err := s.editorURL(ctx, meta.Extension(), meta.MimeType, req.Action)
	if err != nil {
		s.logger.Warn(ctx, "cannot resolve editor url", "file_id", req.FileID, "action", req.Action, "error", err)
		return grant, err
	}
	grant.WopiSrcURL = s.wopiSrcURL(urlsrc, req.FileID)

	s.logger.Debug(ctx, "token issued", "file_id", req.FileID, "user", req.Identity, "wopi_src_url", grant.WopiSrcURL)
	return grant, nil
}

func (s *WopiService) editorURL(ctx context.Context, ext, mime, action string) (string, error) {
	if s.discovery == nil {
		return "", ErrEditorUnavailable
	}
	u, err := s.discovery.Lookup(ctx, ext, action)
	if errors.Is(err, common.ErrorNotFound) && mime != "" {
		u, err = s.discovery.LookupMime(ctx, mime, action)
	}
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.NewValidationError("action", fmt.Sprintf("editor has no %q action for this file type", action))
		}
		return "", fmt.Errorf("%w: %v", ErrEditorUnavailable, err)
	}
	return u, nil
}

func (s *WopiService) wopiSrcURL(urlsrc, fileID string) string {
	src := strings.TrimRight(s.opts.PublicURL, "/") + "/wopi/files/" + url.PathEscape(fileID)
	switch {
	case !strings.Contains(urlsrc, "?"):
		urlsrc += "?"
	case !strings.HasSuffix(urlsrc, "?") && !strings.HasSuffix(urlsrc, "&"):
		urlsrc += "&"
	}
	return urlsrc + "WOPISrc=" + url.QueryEscape(src)
}

func (s *WopiService) check(req any) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return common.NewValidationError(verrs[0].Field(), verrs[0].Tag())
		}
		return common.NewValidationError("request", err.Error())
	}
	return nil
}

func (s *WopiService) isAdmin(identity string) bool {
	return slices.Contains(s.opts.Admins, identity)
}

// keepOrDisabled resolves an optional keep limit; nil disables pruning.
func keepOrDisabled(keep *int) int {
	if keep == nil {
		return -1
	}
	return *keep
}
