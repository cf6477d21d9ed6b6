// Package files declares the repository contract for file head metadata.
package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// Repository stores one FileMetadata row per file. Lookups of unknown files
// return common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, file *models.FileMetadata) error
	Get(ctx context.Context, id string) (*models.FileMetadata, error)
	// GetForUpdate is Get that also row-locks the file until the enclosing
	// transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.FileMetadata, error)
	UpdateHead(ctx context.Context, id, headLabel, storageKey string, size int64, modifiedAt time.Time) error
}
