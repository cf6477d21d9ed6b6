package locks

import (
	"fmt"

	"github.com/dmitrijs2005/wopihost/internal/common"
)

// Reasons reported in LockMismatchError.Reason and X-WOPI-LockFailureReason.
const (
	ReasonNotLocked     = "file is not locked"
	ReasonLockedByOther = "file is locked by another lock id"
	ReasonOwnedByOther  = "file is locked by another user"
)

// LockMismatchError is returned when a lock operation names a lock id that
// does not match the one currently held. CurrentLockID is empty when the
// file is not locked.
type LockMismatchError struct {
	CurrentLockID string
	Reason        string
}

func (e *LockMismatchError) Error() string {
	return fmt.Sprintf("lock mismatch: %s (current %q)", e.Reason, e.CurrentLockID)
}

func (e *LockMismatchError) Is(target error) bool { return target == common.ErrLockMismatch }

func mismatch(current, reason string) error {
	return &LockMismatchError{CurrentLockID: current, Reason: reason}
}
