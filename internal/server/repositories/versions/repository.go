// Package versions declares the repository contract for a file's version
// lineage.
package versions

import (
	"context"

	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// Repository stores the append-only version rows of every file.
type Repository interface {
	Insert(ctx context.Context, v *models.VersionEntry) error
	// NextSeq returns the sequence number the next version of fileID gets.
	NextSeq(ctx context.Context, fileID string) (int64, error)
	// List returns the versions of fileID, oldest first.
	List(ctx context.Context, fileID string) ([]*models.VersionEntry, error)
	Get(ctx context.Context, fileID, label string) (*models.VersionEntry, error)
	Delete(ctx context.Context, fileID, label string) error
}
