package services

import (
	"context"
)

// Lock handles the WOPI LOCK override. With OldLockID set it is an
// unlock-and-relock from OldLockID to LockID.
func (s *WopiService) Lock(ctx context.Context, req LockRequest) error {
	if err := s.check(req); err != nil {
		return err
	}
	tok, err := s.tokens.Authorize(ctx, req.AccessToken, req.FileID)
	if err != nil {
		return err
	}

	if req.OldLockID != "" {
		err = s.locks.UnlockAndRelock(ctx, req.FileID, req.OldLockID, req.LockID, tok.Identity)
	} else {
		err = s.locks.Lock(ctx, req.FileID, req.LockID, tok.Identity)
	}
	if err != nil {
		s.logger.Debug(ctx, "lock refused", "file_id", req.FileID, "user", tok.Identity, "error", err)
		return err
	}
	s.logger.Debug(ctx, "file locked", "file_id", req.FileID, "user", tok.Identity, "lock_id", req.LockID)
	return nil
}

// GetLock returns the current lock id, or "" when the file is unlocked.
func (s *WopiService) GetLock(ctx context.Context, req FileRequest) (string, error) {
	if err := s.check(req); err != nil {
		return "", err
	}
	if _, err := s.tokens.Authorize(ctx, req.AccessToken, req.FileID); err != nil {
		return "", err
	}
	return s.locks.Get(ctx, req.FileID)
}

func (s *WopiService) RefreshLock(ctx context.Context, req LockRequest) error {
	if err := s.check(req); err != nil {
		return err
	}
	if _, err := s.tokens.Authorize(ctx, req.AccessToken, req.FileID); err != nil {
		return err
	}
	return s.locks.Refresh(ctx, req.FileID, req.LockID)
}

func (s *WopiService) Unlock(ctx context.Context, req LockRequest) error {
	if err := s.check(req); err != nil {
		return err
	}
	tok, err := s.tokens.Authorize(ctx, req.AccessToken, req.FileID)
	if err != nil {
		return err
	}
	if err := s.locks.Unlock(ctx, req.FileID, req.LockID); err != nil {
		return err
	}
	s.logger.Debug(ctx, "file unlocked", "file_id", req.FileID, "user", tok.Identity)
	return nil
}
