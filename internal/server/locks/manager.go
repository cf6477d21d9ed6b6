// Package locks implements the per-file WOPI lock state machine.
//
// A file is either UNLOCKED or LOCKED(lockID, owner, expiresAt). An expired
// record behaves exactly like UNLOCKED. Every operation on one file runs
// under that file's exclusive region, so the observable history of a file's
// lock is always some serial ordering of the calls made against it.
package locks

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/keymutex"
	"github.com/dmitrijs2005/wopihost/internal/logging"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// DefaultTTL is the WOPI lock lifetime.
const DefaultTTL = 30 * time.Minute

type Manager struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	keys   keymutex.Map
	logger logging.Logger
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store Store, ttl time.Duration, logger logging.Logger, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		store:  store,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With("module", "locks"),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Lock acquires the lock on an unlocked file or refreshes it when lockID is
// already held. Any other live lock yields a *LockMismatchError.
func (m *Manager) Lock(ctx context.Context, fileID, lockID, owner string) error {
	if err := validate(fileID, lockID); err != nil {
		return err
	}

	unlock := m.keys.Lock(fileID)
	defer unlock()

	cur, err := m.current(ctx, fileID)
	if err != nil {
		return err
	}
	if cur != nil && cur.LockID != lockID {
		return mismatch(cur.LockID, ReasonLockedByOther)
	}
	if cur != nil {
		owner = cur.Owner
	}

	return m.put(ctx, fileID, lockID, owner, "lock")
}

// Refresh extends the expiry of the lock held under lockID.
func (m *Manager) Refresh(ctx context.Context, fileID, lockID string) error {
	if err := validate(fileID, lockID); err != nil {
		return err
	}

	unlock := m.keys.Lock(fileID)
	defer unlock()

	cur, err := m.requireHeld(ctx, fileID, lockID)
	if err != nil {
		return err
	}
	return m.put(ctx, fileID, lockID, cur.Owner, "refresh")
}

// Unlock releases the lock held under lockID.
func (m *Manager) Unlock(ctx context.Context, fileID, lockID string) error {
	if err := validate(fileID, lockID); err != nil {
		return err
	}

	unlock := m.keys.Lock(fileID)
	defer unlock()

	if _, err := m.requireHeld(ctx, fileID, lockID); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, fileID); err != nil {
		return common.NewStorageError("delete lock", err)
	}
	m.logger.Debug(ctx, "lock released", "file_id", fileID, "lock_id", lockID)
	return nil
}

// UnlockAndRelock atomically swaps oldLockID for newLockID. It requires the
// file to be locked under oldLockID.
func (m *Manager) UnlockAndRelock(ctx context.Context, fileID, oldLockID, newLockID, owner string) error {
	if err := validate(fileID, newLockID); err != nil {
		return err
	}
	if err := validateLockID("old_lock_id", oldLockID); err != nil {
		return err
	}

	unlock := m.keys.Lock(fileID)
	defer unlock()

	if _, err := m.requireHeld(ctx, fileID, oldLockID); err != nil {
		return err
	}
	return m.put(ctx, fileID, newLockID, owner, "relock")
}

// Get returns the current lock id, or "" when the file is unlocked.
func (m *Manager) Get(ctx context.Context, fileID string) (string, error) {
	rec, err := m.Current(ctx, fileID)
	if err != nil || rec == nil {
		return "", err
	}
	return rec.LockID, nil
}

// Current returns the live lock record, or nil when the file is unlocked.
func (m *Manager) Current(ctx context.Context, fileID string) (*models.LockRecord, error) {
	if fileID == "" {
		return nil, common.NewValidationError("file_id", "must not be empty")
	}

	unlock := m.keys.Lock(fileID)
	defer unlock()

	return m.current(ctx, fileID)
}

// IsLocked reports whether fileID holds a live lock and who owns it.
func (m *Manager) IsLocked(ctx context.Context, fileID string) (bool, string, error) {
	rec, err := m.Current(ctx, fileID)
	if err != nil || rec == nil {
		return false, "", err
	}
	return true, rec.Owner, nil
}

// Steal installs newLockID on behalf of owner while writing. Lock records are
// bound to the identity that created them: a live lock is only replaced when
// it carries the same lock id or belongs to the same owner.
func (m *Manager) Steal(ctx context.Context, fileID, newLockID, owner string) error {
	if err := validate(fileID, newLockID); err != nil {
		return err
	}

	unlock := m.keys.Lock(fileID)
	defer unlock()

	cur, err := m.current(ctx, fileID)
	if err != nil {
		return err
	}
	if cur != nil && cur.LockID != newLockID && cur.Owner != owner {
		return mismatch(cur.LockID, ReasonOwnedByOther)
	}

	return m.put(ctx, fileID, newLockID, owner, "steal")
}

// ForceUnlock clears any lock on fileID regardless of lock id or owner.
func (m *Manager) ForceUnlock(ctx context.Context, fileID string) error {
	if fileID == "" {
		return common.NewValidationError("file_id", "must not be empty")
	}

	unlock := m.keys.Lock(fileID)
	defer unlock()

	if err := m.store.Delete(ctx, fileID); err != nil {
		return common.NewStorageError("delete lock", err)
	}
	m.logger.Info(ctx, "lock force-cleared", "file_id", fileID)
	return nil
}

func (m *Manager) current(ctx context.Context, fileID string) (*models.LockRecord, error) {
	rec, err := m.store.Get(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, common.NewStorageError("get lock", err)
	}
	if rec.Expired(m.now()) {
		return nil, nil
	}
	return rec, nil
}

func (m *Manager) requireHeld(ctx context.Context, fileID, lockID string) (*models.LockRecord, error) {
	cur, err := m.current(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, mismatch("", ReasonNotLocked)
	}
	if cur.LockID != lockID {
		return nil, mismatch(cur.LockID, ReasonLockedByOther)
	}
	return cur, nil
}

func (m *Manager) put(ctx context.Context, fileID, lockID, owner, op string) error {
	now := m.now()
	rec := &models.LockRecord{
		FileID:    fileID,
		LockID:    lockID,
		Owner:     owner,
		ExpiresAt: now.Add(m.ttl),
		UpdatedAt: now,
	}
	if err := m.store.Put(ctx, rec); err != nil {
		return common.NewStorageError("put lock", err)
	}
	m.logger.Debug(ctx, "lock "+op, "file_id", fileID, "lock_id", lockID, "owner", owner)
	return nil
}

func validate(fileID, lockID string) error {
	if fileID == "" {
		return common.NewValidationError("file_id", "must not be empty")
	}
	return validateLockID("lock_id", lockID)
}

func validateLockID(field, lockID string) error {
	if lockID == "" {
		return common.NewValidationError(field, "must not be empty")
	}
	if len(lockID) > common.MaxLockIDLength {
		return common.NewValidationError(field, "longer than 1024 bytes")
	}
	return nil
}
