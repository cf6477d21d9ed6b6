// Package cryptox derives the per-purpose signing keys used by the host from
// the single configured server secret.
package cryptox

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Key purposes. A token signed for one purpose never verifies under another,
// so an editor access token cannot be replayed against the admin API.
const (
	PurposeAccessToken = "wopihost/access-token"
	PurposeAdminToken  = "wopihost/admin-token"
)

// KeySize is the length of derived keys in bytes.
const KeySize = 32

// DeriveKey expands secret into a KeySize key bound to purpose using
// HKDF-SHA256.
func DeriveKey(secret []byte, purpose string) []byte {
	r := hkdf.New(sha256.New, secret, nil, []byte(purpose))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		// hkdf only fails after 255*32 bytes of output
		panic(err)
	}
	return key
}

// AccessTokenKey and AdminTokenKey are shorthands for the two purposes.
func AccessTokenKey(secret string) []byte { return DeriveKey([]byte(secret), PurposeAccessToken) }

func AdminTokenKey(secret string) []byte { return DeriveKey([]byte(secret), PurposeAdminToken) }
