package versions

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

const selectColumns = `file_id, seq, label, created_at, created_by, autosave, description, storage_key, size`

func (r *PostgresRepository) Insert(ctx context.Context, v *models.VersionEntry) error {
	query := `
		INSERT INTO file_versions (file_id, seq, label, created_at, created_by, autosave, description, storage_key, size)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var autosave sql.NullBool
	if v.Autosave != nil {
		autosave = sql.NullBool{Bool: *v.Autosave, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		v.FileID, v.Seq, v.Label, v.CreatedAt, v.CreatedBy, autosave, v.Description, v.StorageKey, v.Size)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) NextSeq(ctx context.Context, fileID string) (int64, error) {
	query := `SELECT COALESCE(MAX(seq), 0) + 1 FROM file_versions WHERE file_id = $1`

	var seq int64
	if err := r.db.QueryRowContext(ctx, query, fileID).Scan(&seq); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}

func (r *PostgresRepository) List(ctx context.Context, fileID string) ([]*models.VersionEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM file_versions WHERE file_id = $1 ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	var result []*models.VersionEntry
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, fileID, label string) (*models.VersionEntry, error) {
	query := `SELECT ` + selectColumns + ` FROM file_versions WHERE file_id = $1 AND label = $2`

	v, err := scan(r.db.QueryRowContext(ctx, query, fileID, label))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return v, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, fileID, label string) error {
	query := `DELETE FROM file_versions WHERE file_id = $1 AND label = $2`

	res, err := r.db.ExecContext(ctx, query, fileID, label)
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

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.VersionEntry, error) {
	v := &models.VersionEntry{}
	var autosave sql.NullBool
	if err := s.Scan(&v.FileID, &v.Seq, &v.Label, &v.CreatedAt, &v.CreatedBy, &autosave,
		&v.Description, &v.StorageKey, &v.Size); err != nil {
		return nil, err
	}
	if autosave.Valid {
		v.Autosave = models.Bool(autosave.Bool)
	}
	return v, nil
}
