package filelocks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/dbx"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, fileID string) (*models.LockRecord, error) {
	query := `
		SELECT lock_id, owner, expires_at, updated_at
		FROM file_locks
		WHERE file_id = $1
	`
	rec := &models.LockRecord{FileID: fileID}
	err := r.db.QueryRowContext(ctx, query, fileID).Scan(&rec.LockID, &rec.Owner, &rec.ExpiresAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Put(ctx context.Context, rec *models.LockRecord) error {
	query := `
		INSERT INTO file_locks (file_id, lock_id, owner, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (file_id)
		DO UPDATE SET lock_id = EXCLUDED.lock_id, owner = EXCLUDED.owner,
			expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.ExecContext(ctx, query, rec.FileID, rec.LockID, rec.Owner, rec.ExpiresAt, rec.UpdatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, fileID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM file_locks WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
