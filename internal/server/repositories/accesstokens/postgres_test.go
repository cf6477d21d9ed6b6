package accesstokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/wopihost/internal/common"
	"github.com/dmitrijs2005/wopihost/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	selectQ = `(?s)^SELECT\s+token,\s*issued_at,\s*expires_at\s+FROM\s+access_tokens\s+WHERE\s+file_id\s*=\s*\$1\s+AND\s+identity\s*=\s*\$2\s*$`
	upsertQ = `(?s)^INSERT\s+INTO\s+access_tokens\b.*ON\s+CONFLICT\s*\(file_id,\s*identity\)\s*DO\s+UPDATE\s+SET\b.*$`
	deleteQ = `(?s)^DELETE\s+FROM\s+access_tokens\s+WHERE\s+file_id\s*=\s*\$1\s+AND\s+identity\s*=\s*\$2\s*$`
	purgeQ  = `(?s)^DELETE\s+FROM\s+access_tokens\s+WHERE\s+expires_at\s*<=\s*\$1\s*$`
)

func TestGet_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	issued := time.Now().Add(-time.Minute)
	expires := time.Now().Add(time.Hour)
	mock.ExpectQuery(selectQ).
		WithArgs("f1", "alice").
		WillReturnRows(sqlmock.NewRows([]string{"token", "issued_at", "expires_at"}).AddRow("tok", issued, expires))

	got, err := repo.Get(context.Background(), "f1", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Token != "tok" || got.FileID != "f1" || got.Identity != "alice" || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).WithArgs("f1", "bob").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "f1", "bob")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestGet_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectQ).WithArgs("f1", "bob").WillReturnError(errors.New("db err"))

	_, err := repo.Get(context.Background(), "f1", "bob")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestPut(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	tok := &models.AccessToken{Token: "t", FileID: "f1", Identity: "alice", IssuedAt: time.Unix(1, 0), ExpiresAt: time.Unix(2, 0)}

	mock.ExpectExec(upsertQ).
		WithArgs("f1", "alice", "t", tok.IssuedAt, tok.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Put(context.Background(), tok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec(upsertQ).WillReturnError(errors.New("db down"))
	err := repo.Put(context.Background(), tok)
	if err == nil || !regexp.MustCompile(`error performing sql request: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(deleteQ).WithArgs("f1", "alice").WillReturnResult(sqlmock.NewResult(0, 1))
	if err := repo.Delete(context.Background(), "f1", "alice"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mock.ExpectExec(deleteQ).WithArgs("f1", "alice").WillReturnError(errors.New("db err"))
	if err := repo.Delete(context.Background(), "f1", "alice"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	mock.ExpectExec(purgeQ).WithArgs(now).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Fatalf("want 3 rows, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
