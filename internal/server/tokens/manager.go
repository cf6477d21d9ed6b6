// Package tokens manages the lifecycle of file-scoped access tokens: issuing,
// renewing on use, validating, and expiring them.
package tokens

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/keymutex"
	"github.com/dmitrijs2005/wopihost/internal/logging"
	"github.com/dmitrijs2005/wopihost/internal/server/auth"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// DefaultTTL is the access token lifetime when none is configured.
const DefaultTTL = 10 * time.Hour

// Manager issues and validates access tokens. Mutations for one
// (file, identity) pair are serialized; distinct pairs proceed concurrently.
type Manager struct {
	store  Store
	secret []byte
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

func NewManager(store Store, secret []byte, ttl time.Duration, logger logging.Logger, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		store:  store,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
		logger: logger.With("module", "tokens"),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue returns the live token for the pair with its expiry pushed to
// now+TTL, or mints a new one when there is none.
func (m *Manager) Issue(ctx context.Context, fileID, identity string) (*models.AccessToken, error) {
	if fileID == "" {
		return nil, common.NewValidationError("file_id", "must not be empty")
	}
	if identity == "" {
		return nil, common.NewValidationError("identity", "must not be empty")
	}

	unlock := m.keys.Lock(pairKeyString(fileID, identity))
	defer unlock()

	return m.issueLocked(ctx, fileID, identity)
}

func (m *Manager) issueLocked(ctx context.Context, fileID, identity string) (*models.AccessToken, error) {
	now := m.now()

	current, err := m.store.Get(ctx, fileID, identity)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, common.NewStorageError("get token", err)
	}

	if current != nil && !current.Expired(now) {
		if exp := now.Add(m.ttl); exp.After(current.ExpiresAt) {
			current.ExpiresAt = exp
		}
		if err := m.store.Put(ctx, current); err != nil {
			return nil, common.NewStorageError("renew token", err)
		}
		return current, nil
	}

	signed, err := auth.GenerateAccessToken(fileID, identity, m.secret)
	if err != nil {
		return nil, err
	}

	tok := &models.AccessToken{
		Token:     signed,
		FileID:    fileID,
		Identity:  identity,
		IssuedAt:  now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Put(ctx, tok); err != nil {
		return nil, common.NewStorageError("put token", err)
	}

	m.logger.Debug(ctx, "access token issued", "file_id", fileID, "user", identity)
	return tok, nil
}

// Validate reports the identity bound to token when it is genuine, bound to
// fileID, current in the store, and unexpired. Any failure, including a
// store failure, yields ok=false.
func (m *Manager) Validate(ctx context.Context, token, fileID string) (identity string, ok bool) {
	claims, ok := m.claims(ctx, token, fileID)
	if !ok {
		return "", false
	}

	if _, ok := m.lookup(ctx, token, claims); !ok {
		return "", false
	}
	return claims.UserID, true
}

// Authorize validates token for fileID and renews it. It fails with
// common.ErrTokenInvalid when the token is not valid.
func (m *Manager) Authorize(ctx context.Context, token, fileID string) (*models.AccessToken, error) {
	claims, ok := m.claims(ctx, token, fileID)
	if !ok {
		return nil, common.ErrTokenInvalid
	}

	unlock := m.keys.Lock(pairKeyString(claims.FileID, claims.UserID))
	defer unlock()

	if _, ok := m.lookup(ctx, token, claims); !ok {
		return nil, common.ErrTokenInvalid
	}
	return m.issueLocked(ctx, claims.FileID, claims.UserID)
}

// Revoke drops the token held by identity for fileID, if any. The next
// access with that token fails.
func (m *Manager) Revoke(ctx context.Context, fileID, identity string) error {
	if fileID == "" {
		return common.NewValidationError("file_id", "must not be empty")
	}
	if identity == "" {
		return common.NewValidationError("identity", "must not be empty")
	}

	unlock := m.keys.Lock(pairKeyString(fileID, identity))
	defer unlock()

	return common.NewStorageError("delete token", m.store.Delete(ctx, fileID, identity))
}

// PurgeExpired removes every expired token and returns how many were dropped.
func (m *Manager) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpired(ctx, m.now())
	if err != nil {
		return 0, common.NewStorageError("purge tokens", err)
	}
	if n > 0 {
		m.logger.Info(ctx, "expired access tokens purged", "count", n)
	}
	return n, nil
}

func (m *Manager) claims(ctx context.Context, token, fileID string) (*auth.Claims, bool) {
	if token == "" || fileID == "" {
		return nil, false
	}
	claims, err := auth.ParseAccessToken(token, m.secret)
	if err != nil {
		m.logger.Debug(ctx, "access token rejected", "file_id", fileID, "error", err)
		return nil, false
	}
	if claims.FileID != fileID {
		m.logger.Debug(ctx, "access token bound to another file", "file_id", fileID, "token_file_id", claims.FileID)
		return nil, false
	}
	return claims, true
}

func (m *Manager) lookup(ctx context.Context, token string, claims *auth.Claims) (*models.AccessToken, bool) {
	stored, err := m.store.Get(ctx, claims.FileID, claims.UserID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			m.logger.Error(ctx, "token store lookup failed", "file_id", claims.FileID, "error", err)
		}
		return nil, false
	}
	if stored.Token != token || stored.Expired(m.now()) {
		return nil, false
	}
	return stored, true
}

func pairKeyString(fileID, identity string) string {
	return fileID + "\x00" + identity
}
