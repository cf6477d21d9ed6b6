package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
	"github.com/dmitrijs2005/wopihost/internal/server/retention"
	"github.com/gabriel-vasile/mimetype"
)

// CleanVersions prunes the protocol-created versions of a file. Missing
// limits fall back to the configured defaults, and to no pruning when
// those are unset too. It runs under the same
// per-file exclusion as PutFile.
func (s *WopiService) CleanVersions(ctx context.Context, req CleanRequest) (*retention.Result, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	keepAuto, keepExplicit := keepOrDisabled(s.opts.DefaultKeepAuto), keepOrDisabled(s.opts.DefaultKeepExplicit)
	if req.KeepAuto != nil {
		keepAuto = *req.KeepAuto
	}
	if req.KeepExplicit != nil {
		keepExplicit = *req.KeepExplicit
	}

	unlock := s.writes.Lock(req.FileID)
	defer unlock()

	if _, err := s.content.Stat(ctx, req.FileID); err != nil {
		return nil, err
	}

	res, err := s.retention.Prune(ctx, req.FileID, keepAuto, keepExplicit)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "versions cleaned", "file_id", req.FileID, "keep_auto", keepAuto,
		"keep_explicit", keepExplicit, "deleted", len(res.Deleted), "skipped", len(res.Skipped))
	return res, nil
}

// LockStatus reports whether fileID is currently locked and by whom.
func (s *WopiService) LockStatus(ctx context.Context, fileID string) (*LockStatus, error) {
	if fileID == "" {
		return nil, common.NewValidationError("file_id", "required")
	}
	locked, owner, err := s.locks.IsLocked(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return &LockStatus{Locked: locked, Owner: owner}, nil
}

// ForceUnlock clears any lock on fileID regardless of its holder.
func (s *WopiService) ForceUnlock(ctx context.Context, fileID, by string) error {
	if err := s.locks.ForceUnlock(ctx, fileID); err != nil {
		return err
	}
	s.logger.Warn(ctx, "lock force-cleared", "file_id", fileID, "by", by)
	return nil
}

// RevokeToken invalidates the access token identity holds for fileID, so
// an editor session can be cut off without waiting for expiry.
func (s *WopiService) RevokeToken(ctx context.Context, fileID, identity, by string) error {
	if err := s.tokens.Revoke(ctx, fileID, identity); err != nil {
		return err
	}
	s.logger.Warn(ctx, "access token revoked", "file_id", fileID, "user", identity, "by", by)
	return nil
}

// CurrentLock returns the live lock record of fileID, or nil when the file
// is unlocked.
func (s *WopiService) CurrentLock(ctx context.Context, fileID string) (*models.LockRecord, error) {
	return s.locks.Current(ctx, fileID)
}

// ImportFile adds a new file with its initial content. The content becomes
// version 1.0, which retention never prunes.
func (s *WopiService) ImportFile(ctx context.Context, req ImportRequest) (*models.FileMetadata, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	mimeType := req.MimeType
	if mimeType == "" {
		// drop parameters such as "; charset=utf-8"
		mimeType, _, _ = strings.Cut(mimetype.Detect(req.Data).String(), ";")
	}

	unlock := s.writes.Lock(req.FileID)
	defer unlock()

	meta, err := s.content.Create(ctx, models.FileMetadata{
		ID:       req.FileID,
		Name:     req.Name,
		Owner:    req.Owner,
		MimeType: mimeType,
	}, req.Data)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "file imported", "file_id", meta.ID, "name", meta.Name, "size", meta.Size, "mime", meta.MimeType)
	return meta, nil
}
