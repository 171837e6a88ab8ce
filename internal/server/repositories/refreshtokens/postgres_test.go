package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
)

const (
	insertQ  = `(?s)^\s*INSERT\s+INTO\s+refresh_tokens\s*\(user_id,\s*token,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*RETURNING\s+id,\s*created_at\s*$`
	findQ    = `(?s)^\s*SELECT\s+id,\s*user_id,\s*token,\s*expires_at,\s*created_at\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s*$`
	consumeQ = `(?s)^\s*DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s+RETURNING\s+id,\s*user_id,\s*token,\s*expires_at,\s*created_at\s*$`
	deleteQ  = `(?s)^\s*DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+token\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2\s*$`
	byUserQ  = `(?s)^\s*DELETE\s+FROM\s+refresh_tokens\s+WHERE\s+user_id\s*=\s*\$1\s*$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func tokenRows(userID int64, token string, exp time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at"}).
		AddRow(int64(1), userID, token, exp, time.Now())
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectQuery(insertQ).
		WithArgs(int64(3), "tok123", exp).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(11), time.Now()))

	rt := &models.RefreshToken{UserID: 3, Token: "tok123", ExpiresAt: exp}
	if err := repo.Create(context.Background(), rt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rt.ID != 11 {
		t.Fatalf("id not filled: %+v", rt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQ).
		WithArgs(int64(3), "tok123", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), &models.RefreshToken{UserID: 3, Token: "tok123", ExpiresAt: time.Now()})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectQuery(findQ).WithArgs("t1").WillReturnRows(tokenRows(5, "t1", exp))
	mock.ExpectQuery(findQ).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	rt, err := repo.Find(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Find error: %v", err)
	}
	if rt.UserID != 5 || !rt.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected token: %+v", rt)
	}

	if _, err := repo.Find(context.Background(), "nope"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
}

func TestConsume(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	exp := time.Now().Add(time.Hour)
	mock.ExpectQuery(consumeQ).WithArgs("t1").WillReturnRows(tokenRows(5, "t1", exp))
	mock.ExpectQuery(consumeQ).WithArgs("t1").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(consumeQ).WithArgs("t2").WillReturnError(errors.New("conn reset"))

	rt, err := repo.Consume(context.Background(), "t1")
	if err != nil || rt.UserID != 5 {
		t.Fatalf("Consume = %+v, %v", rt, err)
	}

	if _, err := repo.Consume(context.Background(), "t1"); !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("second consume: want common.ErrorNotFound, got %v", err)
	}

	_, err = repo.Consume(context.Background(), "t2")
	if err == nil || errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(deleteQ).WithArgs("t1", int64(7)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(deleteQ).WithArgs("missing", int64(7)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(deleteQ).WithArgs("t2", int64(7)).WillReturnError(errors.New("db err"))

	if err := repo.Delete(context.Background(), 7, "t1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(context.Background(), 7, "missing"); err != nil {
		t.Fatalf("deleting a missing token must not fail: %v", err)
	}
	if err := repo.Delete(context.Background(), 7, "t2"); err == nil {
		t.Fatalf("expected db error")
	}
}

func TestDeleteByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(byUserQ).WithArgs(int64(5)).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(byUserQ).WithArgs(int64(6)).WillReturnError(errors.New("db err"))

	n, err := repo.DeleteByUser(context.Background(), 5)
	if err != nil || n != 3 {
		t.Fatalf("DeleteByUser = %d, %v", n, err)
	}
	if _, err := repo.DeleteByUser(context.Background(), 6); err == nil {
		t.Fatalf("expected db error")
	}
}
