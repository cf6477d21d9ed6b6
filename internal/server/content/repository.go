// Package content defines the repository holding file bytes and their version
// lineage, with an in-memory implementation and one backed by PostgreSQL plus
// a blob store.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// ErrHeadVersion is returned when deleting the version the head points at.
var ErrHeadVersion = errors.New("cannot delete the current head version")

// Repository is the authoritative store of file content and versions.
type Repository interface {
	// Create adds a new file whose initial content becomes version 1.0.
	Create(ctx context.Context, meta models.FileMetadata, data []byte) (*models.FileMetadata, error)
	// Read opens the head content of fileID.
	Read(ctx context.Context, fileID string) (io.ReadCloser, *models.FileMetadata, error)
	// Write overwrites the head bytes without creating a version. It is the
	// raw repository-side write; WOPI saves always go through WriteVersion.
	Write(ctx context.Context, fileID string, data []byte) error
	// CurrentModifiedTime returns when the head last changed, with ok=false
	// when the file has no version yet.
	CurrentModifiedTime(ctx context.Context, fileID string) (t time.Time, ok bool, err error)
	// WriteVersion replaces the head with data and appends a version for
	// it. Either both happen or neither does.
	WriteVersion(ctx context.Context, fileID string, data []byte, opts models.VersionOptions) (*models.VersionEntry, error)
	// CreateVersion appends a version that snapshots the current head.
	CreateVersion(ctx context.Context, fileID string, opts models.VersionOptions) (*models.VersionEntry, error)
	// ListVersions returns the lineage of fileID, oldest first.
	ListVersions(ctx context.Context, fileID string) ([]*models.VersionEntry, error)
	// DeleteVersion removes one version. It fails with ErrHeadVersion for
	// the head and common.ErrorNotFound for unknown labels.
	DeleteVersion(ctx context.Context, fileID, label string) error
	Stat(ctx context.Context, fileID string) (*models.FileMetadata, error)
}

// Label renders the label of the seq-th version: 1.0, 1.1, 1.2, ...
func Label(seq int64) string {
	return fmt.Sprintf("1.%d", seq-1)
}

func newVersion(fileID string, seq int64, now time.Time, opts models.VersionOptions, key string, size int64) *models.VersionEntry {
	desc := opts.Description
	if desc == "" && opts.Autosave {
		desc = common.AutosaveDescription
	}
	return &models.VersionEntry{
		FileID:      fileID,
		Label:       Label(seq),
		Seq:         seq,
		CreatedAt:   now,
		CreatedBy:   opts.Author,
		Autosave:    models.Bool(opts.Autosave),
		Description: desc,
		StorageKey:  key,
		Size:        size,
	}
}
