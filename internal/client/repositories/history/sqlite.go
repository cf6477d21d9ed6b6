package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/wopihost/internal/client/migrations"
	"github.com/dmitrijs2005/wopihost/internal/dbx"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Add(ctx context.Context, e *Entry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO history (at, server, user_name, command, file_id, ok, detail) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.At.UTC().Format(time.RFC3339Nano), e.Server, e.User, e.Command, e.FileID, e.OK, e.Detail)
	if err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("insert history: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, fileID string, limit int) ([]*Entry, error) {
	q := `SELECT id, at, server, user_name, command, file_id, ok, detail FROM history`
	var args []any
	if fileID != "" {
		q += ` WHERE file_id = ?`
		args = append(args, fileID)
	}
	q += ` ORDER BY id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var (
			e  Entry
			at string
		)
		if err := rows.Scan(&e.ID, &at, &e.Server, &e.User, &e.Command, &e.FileID, &e.OK, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		if e.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, fmt.Errorf("parse history time: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// RunMigrations applies the embedded schema.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

// Open opens (or creates) the database at dsn and migrates it.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history migrations: %w", err)
	}
	return db, nil
}
