// Package accesstokens provides a PostgreSQL-backed store for WOPI access
// tokens, one row per (file, identity) pair.
package accesstokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// Repository matches tokens.Store.
type Repository interface {
	Get(ctx context.Context, fileID, identity string) (*models.AccessToken, error)
	Put(ctx context.Context, token *models.AccessToken) error
	Delete(ctx context.Context, fileID, identity string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
