package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/dbx"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectColumns = `id, name, owner, mime_type, size, head_label, storage_key, modified_at, created_at`

// Create inserts a new file row.
func (r *PostgresRepository) Create(ctx context.Context, f *models.FileMetadata) error {
	query := `
		INSERT INTO files (id, name, owner, mime_type, size, head_label, storage_key, modified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		f.ID, f.Name, f.Owner, f.MimeType, f.Size, f.HeadLabel, f.StorageKey, f.ModifiedAt, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Get returns the file row for id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.FileMetadata, error) {
	return r.get(ctx, `SELECT `+selectColumns+` FROM files WHERE id = $1`, id)
}

// GetForUpdate returns the file row for id and locks it.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, id string) (*models.FileMetadata, error) {
	return r.get(ctx, `SELECT `+selectColumns+` FROM files WHERE id = $1 FOR UPDATE`, id)
}

func (r *PostgresRepository) get(ctx context.Context, query, id string) (*models.FileMetadata, error) {
	f := &models.FileMetadata{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&f.ID, &f.Name, &f.Owner, &f.MimeType, &f.Size, &f.HeadLabel, &f.StorageKey, &f.ModifiedAt, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return f, nil
}

// UpdateHead points the file at new content.
func (r *PostgresRepository) UpdateHead(ctx context.Context, id, headLabel, storageKey string, size int64, modifiedAt time.Time) error {
	query := `
		UPDATE files
		SET head_label = $2, storage_key = $3, size = $4, modified_at = $5
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query, id, headLabel, storageKey, size, modifiedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
