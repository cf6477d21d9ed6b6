package models

import "time"

// LockRecord is the single lock held on a file.
type LockRecord struct {
	FileID string
	LockID string
	// Owner is the identity that acquired or last stole the lock.
	Owner     string
	ExpiresAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the lock should be treated as absent at now.
func (l *LockRecord) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
