// Package filelocks provides a PostgreSQL-backed store for WOPI lock records.
package filelocks

import (
	"context"

	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// Repository matches locks.Store.
type Repository interface {
	Get(ctx context.Context, fileID string) (*models.LockRecord, error)
	Put(ctx context.Context, rec *models.LockRecord) error
	Delete(ctx context.Context, fileID string) error
}
