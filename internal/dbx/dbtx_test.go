package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openVersionsDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(4)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS versions (file_id TEXT NOT NULL, label TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func versionCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM versions`).Scan(&n))
	return n
}

func insertVersion(ctx context.Context, tx DBTX, label string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO versions(file_id, label) VALUES ('f1', ?)`, label)
	return err
}

func TestWithTx(t *testing.T) {
	errAbort := errors.New("abort")

	tests := []struct {
		name    string
		fn      func(ctx context.Context, tx DBTX) error
		wantErr error
		want    int
	}{
		{
			name: "commit",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertVersion(ctx, tx, "1.0"); err != nil {
					return err
				}
				return insertVersion(ctx, tx, "1.1")
			},
			want: 2,
		},
		{
			name: "rollback when fn fails",
			fn: func(ctx context.Context, tx DBTX) error {
				if err := insertVersion(ctx, tx, "1.0"); err != nil {
					return err
				}
				return errAbort
			},
			wantErr: errAbort,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openVersionsDB(t)
			err := WithTx(context.Background(), db, nil, tt.fn)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, versionCount(t, db))
		})
	}
}

func TestWithTx_PanicRollsBackAndRethrows(t *testing.T) {
	db := openVersionsDB(t)

	assert.PanicsWithValue(t, "write aborted", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insertVersion(ctx, tx, "1.0"))
			panic("write aborted")
		})
	})
	assert.Equal(t, 0, versionCount(t, db))
}

func TestWithTx_BeginFails(t *testing.T) {
	db := openVersionsDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}
