package models

import "time"

// AccessToken is a bearer credential scoped to one (file, identity) pair.
type AccessToken struct {
	Token     string
	FileID    string
	Identity  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is no longer usable at now.
func (t *AccessToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TTLMillis returns the expiry as milliseconds since the epoch, the format
// WOPI clients expect in access_token_ttl.
func (t *AccessToken) TTLMillis() int64 {
	return t.ExpiresAt.UnixMilli()
}
