package content

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/dbx"
	"github.com/dmitrijs2005/wopihost/internal/logging"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
	"github.com/dmitrijs2005/wopihost/internal/server/repositories/files"
	"github.com/dmitrijs2005/wopihost/internal/server/repositories/versions"
	"github.com/dmitrijs2005/wopihost/internal/server/storage"
)

// Repositories vends the SQL repositories StoredRepository needs.
// repomanager.RepositoryManager satisfies it.
type Repositories interface {
	Files(db dbx.DBTX) files.Repository
	Versions(db dbx.DBTX) versions.Repository
}

// StoredRepository keeps metadata and versions in PostgreSQL and bytes in a
// BlobStore. Every version owns its own immutable blob; the file head points
// at the blob of its newest version.
type StoredRepository struct {
	db     *sql.DB
	repos  Repositories
	blobs  storage.BlobStore
	retry  dbx.RetryPolicy
	now    func() time.Time
	logger logging.Logger
}

func NewStoredRepository(db *sql.DB, repos Repositories, blobs storage.BlobStore, logger logging.Logger) *StoredRepository {
	return &StoredRepository{
		db:     db,
		repos:  repos,
		blobs:  blobs,
		retry:  dbx.DefaultRetryPolicy,
		now:    time.Now,
		logger: logger.With("module", "content"),
	}
}

// Create uploads the initial content of a new file and records it as
// version 1.0 without an autosave flag.
func (r *StoredRepository) Create(ctx context.Context, meta models.FileMetadata, data []byte) (*models.FileMetadata, error) {
	if meta.ID == "" {
		return nil, common.NewValidationError("id", "must not be empty")
	}

	key := storage.NewKey(meta.ID)
	if err := r.blobs.Put(ctx, key, data, meta.MimeType); err != nil {
		return nil, common.NewStorageError("upload content", err)
	}

	now := r.now().UTC()
	meta.Size = int64(len(data))
	meta.HeadLabel = Label(1)
	meta.StorageKey = key
	meta.ModifiedAt = now
	meta.CreatedAt = now

	err := dbx.WithRetryTx(ctx, r.db, nil, r.retry, func(ctx context.Context, tx dbx.DBTX) error {
		if err := r.repos.Files(tx).Create(ctx, &meta); err != nil {
			return err
		}
		return r.repos.Versions(tx).Insert(ctx, &models.VersionEntry{
			FileID:     meta.ID,
			Label:      meta.HeadLabel,
			Seq:        1,
			CreatedAt:  now,
			CreatedBy:  meta.Owner,
			StorageKey: key,
			Size:       meta.Size,
		})
	})
	if err != nil {
		r.discard(ctx, key)
		return nil, common.NewStorageError("create file", err)
	}
	return &meta, nil
}

func (r *StoredRepository) Stat(ctx context.Context, fileID string) (*models.FileMetadata, error) {
	meta, err := r.repos.Files(r.db).Get(ctx, fileID)
	if err != nil {
		return nil, wrap("stat", err)
	}
	return meta, nil
}

func (r *StoredRepository) Read(ctx context.Context, fileID string) (io.ReadCloser, *models.FileMetadata, error) {
	meta, err := r.Stat(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	if meta.StorageKey == "" {
		return io.NopCloser(bytes.NewReader(nil)), meta, nil
	}
	rc, err := r.blobs.Get(ctx, meta.StorageKey)
	if err != nil {
		return nil, nil, common.NewStorageError("download content", err)
	}
	return rc, meta, nil
}

// Write uploads data as the new head without touching the version lineage.
func (r *StoredRepository) Write(ctx context.Context, fileID string, data []byte) error {
	meta, err := r.Stat(ctx, fileID)
	if err != nil {
		return err
	}

	key := storage.NewKey(fileID)
	if err := r.blobs.Put(ctx, key, data, meta.MimeType); err != nil {
		return common.NewStorageError("upload content", err)
	}

	err = dbx.WithRetryTx(ctx, r.db, nil, r.retry, func(ctx context.Context, tx dbx.DBTX) error {
		cur, err := r.repos.Files(tx).GetForUpdate(ctx, fileID)
		if err != nil {
			return err
		}
		return r.repos.Files(tx).UpdateHead(ctx, fileID, cur.HeadLabel, key, int64(len(data)), r.now().UTC())
	})
	if err != nil {
		r.discard(ctx, key)
		return wrap("write", err)
	}
	return nil
}

func (r *StoredRepository) CurrentModifiedTime(ctx context.Context, fileID string) (time.Time, bool, error) {
	meta, err := r.Stat(ctx, fileID)
	if err != nil {
		return time.Time{}, false, err
	}
	if meta.HeadLabel == "" {
		return time.Time{}, false, nil
	}
	return meta.ModifiedAt, true, nil
}

// WriteVersion uploads data under a fresh key, then records the version and
// moves the head in one transaction. When the transaction fails the upload
// is removed again.
func (r *StoredRepository) WriteVersion(ctx context.Context, fileID string, data []byte, opts models.VersionOptions) (*models.VersionEntry, error) {
	meta, err := r.Stat(ctx, fileID)
	if err != nil {
		return nil, err
	}

	key := storage.NewKey(fileID)
	if err := r.blobs.Put(ctx, key, data, meta.MimeType); err != nil {
		return nil, common.NewStorageError("upload content", err)
	}

	v, err := r.appendVersion(ctx, fileID, opts, key, int64(len(data)))
	if err != nil {
		r.discard(ctx, key)
		return nil, err
	}
	return v, nil
}

// CreateVersion records a version that shares the head's blob.
func (r *StoredRepository) CreateVersion(ctx context.Context, fileID string, opts models.VersionOptions) (*models.VersionEntry, error) {
	meta, err := r.Stat(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return r.appendVersion(ctx, fileID, opts, meta.StorageKey, meta.Size)
}

func (r *StoredRepository) appendVersion(ctx context.Context, fileID string, opts models.VersionOptions, key string, size int64) (*models.VersionEntry, error) {
	var v *models.VersionEntry
	err := dbx.WithRetryTx(ctx, r.db, nil, r.retry, func(ctx context.Context, tx dbx.DBTX) error {
		// row lock serializes concurrent writers of the same file
		if _, err := r.repos.Files(tx).GetForUpdate(ctx, fileID); err != nil {
			return err
		}
		seq, err := r.repos.Versions(tx).NextSeq(ctx, fileID)
		if err != nil {
			return err
		}
		v = newVersion(fileID, seq, r.now().UTC(), opts, key, size)
		if err := r.repos.Versions(tx).Insert(ctx, v); err != nil {
			return err
		}
		return r.repos.Files(tx).UpdateHead(ctx, fileID, v.Label, key, size, v.CreatedAt)
	})
	if err != nil {
		return nil, wrap("write version", err)
	}
	return v, nil
}

func (r *StoredRepository) ListVersions(ctx context.Context, fileID string) ([]*models.VersionEntry, error) {
	if _, err := r.Stat(ctx, fileID); err != nil {
		return nil, err
	}
	vs, err := r.repos.Versions(r.db).List(ctx, fileID)
	if err != nil {
		return nil, common.NewStorageError("list versions", err)
	}
	return vs, nil
}

// DeleteVersion drops the version row and, when no other version or the head
// still references it, its blob.
func (r *StoredRepository) DeleteVersion(ctx context.Context, fileID, label string) error {
	var orphan string
	err := dbx.WithRetryTx(ctx, r.db, nil, r.retry, func(ctx context.Context, tx dbx.DBTX) error {
		orphan = ""
		meta, err := r.repos.Files(tx).GetForUpdate(ctx, fileID)
		if err != nil {
			return err
		}
		if meta.HeadLabel == label {
			return ErrHeadVersion
		}
		vr := r.repos.Versions(tx)
		v, err := vr.Get(ctx, fileID, label)
		if err != nil {
			return err
		}
		if err := vr.Delete(ctx, fileID, label); err != nil {
			return err
		}

		if v.StorageKey == "" || v.StorageKey == meta.StorageKey {
			return nil
		}
		rest, err := vr.List(ctx, fileID)
		if err != nil {
			return err
		}
		for _, o := range rest {
			if o.StorageKey == v.StorageKey {
				return nil
			}
		}
		orphan = v.StorageKey
		return nil
	})
	if err != nil {
		return wrap("delete version", err)
	}

	if orphan != "" {
		r.discard(ctx, orphan)
	}
	return nil
}

// discard removes a blob nothing references, even after ctx is cancelled.
// Failures only leak storage.
func (r *StoredRepository) discard(ctx context.Context, key string) {
	if err := r.blobs.Delete(context.WithoutCancel(ctx), key); err != nil {
		r.logger.Warn(ctx, "failed to remove unreferenced blob", "key", key, "error", err)
	}
}

// wrap passes domain errors through and reports everything else as a
// storage failure.
func wrap(op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) || errors.Is(err, ErrHeadVersion) || errors.Is(err, common.ErrValidation) {
		return err
	}
	return common.NewStorageError(op, err)
}
