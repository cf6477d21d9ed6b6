package versions

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

var columns = []string{"file_id", "seq", "label", "created_at", "created_by", "autosave", "description", "storage_key", "size"}

func TestInsert_NullableAutosave(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := `(?s)^INSERT\s+INTO\s+file_versions\b.*VALUES\s*\(\$1,.*\$9\)\s*$`

	mock.ExpectExec(q).
		WithArgs("f", int64(2), "1.1", now, "alice", true, "Edit with Collabora", "k", int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).
		WithArgs("f", int64(1), "1.0", now, "alice", nil, "", "k0", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Insert(context.Background(), &models.VersionEntry{
		FileID: "f", Seq: 2, Label: "1.1", CreatedAt: now, CreatedBy: "alice",
		Autosave: models.Bool(true), Description: "Edit with Collabora", StorageKey: "k", Size: 5,
	}))
	require.NoError(t, repo.Insert(context.Background(), &models.VersionEntry{
		FileID: "f", Seq: 1, Label: "1.0", CreatedAt: now, CreatedBy: "alice", StorageKey: "k0", Size: 4,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO file_versions`).WillReturnError(errors.New("unique violation"))
	err := repo.Insert(context.Background(), &models.VersionEntry{FileID: "f"})
	assert.ErrorContains(t, err, "unique violation")
}

func TestNextSeq(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+COALESCE\(MAX\(seq\),\s*0\)\s*\+\s*1\s+FROM\s+file_versions`).
		WithArgs("f").
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(4)))

	seq, err := repo.NextSeq(context.Background(), "f")
	require.NoError(t, err)
	assert.Equal(t, int64(4), seq)
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows(columns).
		AddRow("f", int64(1), "1.0", now, "alice", nil, "", "k0", int64(1)).
		AddRow("f", int64(2), "1.1", now, "bob", false, "", "k1", int64(2))

	mock.ExpectQuery(`(?s)^SELECT\s+file_id,.*FROM\s+file_versions\s+WHERE\s+file_id\s*=\s*\$1\s+ORDER\s+BY\s+seq$`).
		WithArgs("f").
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), "f")
	require.NoError(t, err)

	want := []*models.VersionEntry{
		{FileID: "f", Seq: 1, Label: "1.0", CreatedAt: now, CreatedBy: "alice", StorageKey: "k0", Size: 1},
		{FileID: "f", Seq: 2, Label: "1.1", CreatedAt: now, CreatedBy: "bob", Autosave: models.Bool(false), StorageKey: "k1", Size: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("versions mismatch (-want +got):\n%s", diff)
	}
}

func TestList_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM file_versions`).WillReturnError(errors.New("boom"))
	_, err := repo.List(context.Background(), "f")
	assert.ErrorContains(t, err, "failed to select versions")
}

func TestGet(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE\s+file_id\s*=\s*\$1\s+AND\s+label\s*=\s*\$2$`).
		WithArgs("f", "1.1").
		WillReturnRows(sqlmock.NewRows(columns).AddRow("f", int64(2), "1.1", now, "bob", true, "d", "k1", int64(2)))

	v, err := repo.Get(context.Background(), "f", "1.1")
	require.NoError(t, err)
	require.NotNil(t, v.Autosave)
	assert.True(t, *v.Autosave)

	mock.ExpectQuery(`WHERE\s+file_id\s*=\s*\$1\s+AND\s+label\s*=\s*\$2$`).
		WithArgs("f", "9.9").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.Get(context.Background(), "f", "9.9")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+file_versions\s+WHERE\s+file_id\s*=\s*\$1\s+AND\s+label\s*=\s*\$2$`

	mock.ExpectExec(q).WithArgs("f", "1.0").WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "f", "1.0"))

	mock.ExpectExec(q).WithArgs("f", "1.0").WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), "f", "1.0"), common.ErrorNotFound)

	mock.ExpectExec(q).WithArgs("f", "1.0").WillReturnError(errors.New("boom"))
	assert.ErrorContains(t, repo.Delete(context.Background(), "f", "1.0"), "db error: boom")
}
