package accesstokens

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

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the token for the pair, or common.ErrorNotFound.
func (r *PostgresRepository) Get(ctx context.Context, fileID, identity string) (*models.AccessToken, error) {
	query := `
		SELECT token, issued_at, expires_at
		FROM access_tokens
		WHERE file_id = $1 AND identity = $2
	`
	t := &models.AccessToken{FileID: fileID, Identity: identity}
	if err := r.db.QueryRowContext(ctx, query, fileID, identity).Scan(&t.Token, &t.IssuedAt, &t.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Put inserts or replaces the token for its pair.
func (r *PostgresRepository) Put(ctx context.Context, t *models.AccessToken) error {
	query := `
		INSERT INTO access_tokens (file_id, identity, token, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (file_id, identity)
		DO UPDATE SET token = EXCLUDED.token, issued_at = EXCLUDED.issued_at, expires_at = EXCLUDED.expires_at
	`
	if _, err := r.db.ExecContext(ctx, query, t.FileID, t.Identity, t.Token, t.IssuedAt, t.ExpiresAt); err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

// Delete removes the token for the pair.
func (r *PostgresRepository) Delete(ctx context.Context, fileID, identity string) error {
	query := `
		DELETE FROM access_tokens
		WHERE file_id = $1 AND identity = $2
	`
	if _, err := r.db.ExecContext(ctx, query, fileID, identity); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteExpired removes every token whose expiry is at or before now.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM access_tokens
		WHERE expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
