package products

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophstore/internal/common"
	"github.com/dmitrijs2005/gophstore/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cols = []string{"id", "user_id", "name", "description", "price_cents", "quantity", "image_key", "created_at", "updated_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+products\s*\(user_id,\s*name,\s*description,\s*price_cents,\s*quantity\).*RETURNING\s+id,\s*created_at,\s*updated_at`).
		WithArgs(int64(1), "Mug", "Blue", int64(1299), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(10), now, now))

	p := &models.Product{UserID: 1, Name: "Mug", Description: "Blue", PriceCents: 1299, Quantity: 3}
	require.NoError(t, repo.Create(context.Background(), p))
	assert.Equal(t, int64(10), p.ID)
	assert.Equal(t, now, p.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()
	q := `(?s)SELECT\s+id,\s*user_id.*FROM\s+products\s+WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2`

	mock.ExpectQuery(q).WithArgs(int64(10), int64(1)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(10), int64(1), "Mug", "", int64(5), int64(1), "k", now, now))
	mock.ExpectQuery(q).WithArgs(int64(10), int64(2)).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q).WithArgs(int64(11), int64(1)).WillReturnError(errors.New("db down"))

	p, err := repo.Get(context.Background(), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, "Mug", p.Name)
	assert.Equal(t, "k", p.ImageKey)

	_, err = repo.Get(context.Background(), 2, 10)
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.Get(context.Background(), 1, 11)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db error")
}

func TestList_WithSearch(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT\s+COUNT\(\*\)\s+FROM\s+products\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+\(name\s+ILIKE\s+\$2\s+OR\s+description\s+ILIKE\s+\$2\)`).
		WithArgs(int64(1), `%50\%%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery(`(?s)SELECT\s+id,.*FROM\s+products\s+WHERE\s+user_id\s*=\s*\$1\s+AND.*ORDER\s+BY\s+created_at\s+DESC,\s*id\s+DESC\s+LIMIT\s+\$3\s+OFFSET\s+\$4`).
		WithArgs(int64(1), `%50\%%`, 2, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(int64(2), int64(1), "50% off", "", int64(1), int64(1), "", now, now).
			AddRow(int64(1), int64(1), "Sale", "50% discount", int64(1), int64(1), "", now, now))

	items, total, err := repo.List(context.Background(), models.ProductFilter{UserID: 1, Search: " 50% ", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, items, 2)
	assert.Equal(t, int64(2), items[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList_NoSearch_Empty(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SELECT\s+COUNT\(\*\)\s+FROM\s+products\s+WHERE\s+user_id\s*=\s*\$1\s*$`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery(`(?s)LIMIT\s+\$2\s+OFFSET\s+\$3`).
		WithArgs(int64(1), 20, 40).
		WillReturnRows(sqlmock.NewRows(cols))

	items, total, err := repo.List(context.Background(), models.ProductFilter{UserID: 1, Limit: 20, Offset: 40})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}

func TestList_CountError(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`COUNT`).WillReturnError(errors.New("boom"))

	_, _, err := repo.List(context.Background(), models.ProductFilter{UserID: 1, Limit: 20})
	require.Error(t, err)
}

func TestUpdate(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()
	q := `(?s)UPDATE\s+products\s+SET\s+name\s*=\s*\$3,.*WHERE\s+id\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2\s+RETURNING\s+updated_at`

	mock.ExpectQuery(q).WithArgs(int64(10), int64(1), "Cup", "", int64(100), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))
	mock.ExpectQuery(q).WithArgs(int64(10), int64(2), "Cup", "", int64(100), int64(2)).
		WillReturnError(sql.ErrNoRows)

	p := &models.Product{ID: 10, UserID: 1, Name: "Cup", PriceCents: 100, Quantity: 2}
	require.NoError(t, repo.Update(context.Background(), p))
	assert.Equal(t, now, p.UpdatedAt)

	p.UserID = 2
	require.ErrorIs(t, repo.Update(context.Background(), p), common.ErrorNotFound)
}

func TestDeleteAndSetImageKey(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`DELETE\s+FROM\s+products`).WithArgs(int64(10), int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE\s+FROM\s+products`).WithArgs(int64(10), int64(1)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE\s+products\s+SET\s+image_key`).WithArgs(int64(10), int64(1), "key").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE\s+products\s+SET\s+image_key`).WithArgs(int64(10), int64(1), "key").WillReturnError(errors.New("db down"))

	require.NoError(t, repo.Delete(context.Background(), 1, 10))
	require.ErrorIs(t, repo.Delete(context.Background(), 1, 10), common.ErrorNotFound)
	require.NoError(t, repo.SetImageKey(context.Background(), 1, 10, "key"))
	require.Error(t, repo.SetImageKey(context.Background(), 1, 10, "key"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\%b\_c\\d`, escapeLike(`a%b_c\d`))
}
