// Package common contains shared constants and sentinel errors used across
// the WOPI host components.
package common

// AccessTokenHeaderName is the query parameter (HTTP) and metadata key (gRPC)
// used to carry the access token.
const AccessTokenHeaderName = "access_token"

// WOPI request and response headers understood by the host.
const (
	HeaderWopiOverride          = "X-WOPI-Override"
	HeaderWopiLock              = "X-WOPI-Lock"
	HeaderWopiOldLock           = "X-WOPI-OldLock"
	HeaderWopiLockFailureReason = "X-WOPI-LockFailureReason"
	HeaderWopiItemVersion       = "X-WOPI-ItemVersion"

	// Collabora sends both the legacy LOOL and the newer COOL spelling.
	HeaderLoolIsAutosave = "X-LOOL-WOPI-IsAutosave"
	HeaderCoolIsAutosave = "X-COOL-WOPI-IsAutosave"
	HeaderLoolTimestamp  = "X-LOOL-WOPI-Timestamp"
	HeaderCoolTimestamp  = "X-COOL-WOPI-Timestamp"
)

// AutosaveDescription is stored on every autosave version created by the host.
const AutosaveDescription = "Edit with Collabora"

// MaxLockIDLength is the longest lock id a WOPI client may send.
const MaxLockIDLength = 1024
