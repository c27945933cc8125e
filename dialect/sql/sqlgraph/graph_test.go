package sqlgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/formulite/dialect"
	"github.com/syssam/formulite/dialect/sql"
)

func mockDriver(t *testing.T) (*sql.Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sql.OpenDB(dialect.SQLite, db), mock
}

func TestCreateNode(t *testing.T) {
	ctx := context.Background()

	t.Run("allocate", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec("INSERT INTO `Product` (`name`, `price`, `product_id`) VALUES (?, ?, (SELECT IFNULL(MAX(`product_id`), 0) + 1 FROM `Product`))").
			WithArgs("lamp", 12).
			WillReturnResult(sqlmock.NewResult(5, 1))
		mock.ExpectQuery("SELECT `product_id` FROM `Product` WHERE rowid = ?").
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"product_id"}).AddRow(3))
		key, err := CreateNode(ctx, drv, &CreateSpec{
			Table:     "Product",
			Surrogate: "product_id",
			Allocate:  true,
			Fields: []*FieldSpec{
				{Column: "name", Value: "lamp"},
				{Column: "price", Value: 12},
			},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 3, key)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rowid", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec("INSERT INTO `Admin` (`level`, `user_id`) VALUES (?, ?)").
			WithArgs(2, int64(1)).
			WillReturnResult(sqlmock.NewResult(9, 1))
		key, err := CreateNode(ctx, drv, &CreateSpec{
			Table:     "Admin",
			Surrogate: "admin_id",
			Fields: []*FieldSpec{
				{Column: "level", Value: 2},
				{Column: "user_id", Value: int64(1)},
			},
		})
		require.NoError(t, err)
		assert.EqualValues(t, 9, key)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("constraint", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec("INSERT INTO `Admin` (`user_id`) VALUES (?)").
			WithArgs(int64(42)).
			WillReturnError(errors.New("FOREIGN KEY constraint failed"))
		_, err := CreateNode(ctx, drv, &CreateSpec{
			Table:     "Admin",
			Surrogate: "admin_id",
			Fields:    []*FieldSpec{{Column: "user_id", Value: int64(42)}},
		})
		require.Error(t, err)
		assert.True(t, IsForeignKeyConstraintError(err))
		var ce ConstraintError
		assert.ErrorAs(t, err, &ce)
	})
}

func TestUpdateNodes(t *testing.T) {
	ctx := context.Background()

	t.Run("fields", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectExec("UPDATE `Product` SET `price` = ? WHERE `product_id` = ?").
			WithArgs(15, 3).
			WillReturnResult(sqlmock.NewResult(0, 1))
		n, err := UpdateNodes(ctx, drv, &UpdateSpec{
			Table:     "Product",
			Fields:    []*FieldSpec{{Column: "price", Value: 15}},
			Predicate: sql.EQ("product_id", 3),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no_fields", func(t *testing.T) {
		drv, mock := mockDriver(t)
		mock.ExpectQuery("SELECT COUNT(*) FROM `Product` WHERE `product_id` = ?").
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(0))
		n, err := UpdateNodes(ctx, drv, &UpdateSpec{
			Table:     "Product",
			Predicate: sql.EQ("product_id", 3),
		})
		require.NoError(t, err)
		assert.Zero(t, n)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDeleteNodes(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectExec("DELETE FROM `Product` WHERE `name` = ?").
		WithArgs("lamp").
		WillReturnResult(sqlmock.NewResult(0, 2))
	n, err := DeleteNodes(context.Background(), drv, "Product", sql.EQ("name", "lamp"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountNodes(t *testing.T) {
	drv, mock := mockDriver(t)
	mock.ExpectQuery("SELECT COUNT(*) FROM `Product` WHERE `price` > ?").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(4))
	selector := sql.Select("name").From("Product").Where(sql.GT("price", 10))
	n, err := CountNodes(context.Background(), drv, selector)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	query, _ := selector.Query()
	assert.Equal(t, "SELECT `name` FROM `Product` WHERE `price` > ?", query, "selector is left untouched")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFirstInt64(t *testing.T) {
	ctx := context.Background()
	drv, mock := mockDriver(t)

	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"x"}))
	_, ok, err := FirstInt64(ctx, drv, sql.Expr("SELECT 1"))
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery("SELECT 2").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(nil))
	_, ok, err = FirstInt64(ctx, drv, sql.Expr("SELECT 2"))
	require.NoError(t, err)
	assert.False(t, ok)

	mock.ExpectQuery("SELECT 3").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow("x"))
	_, _, err = FirstInt64(ctx, drv, sql.Expr("SELECT 3"))
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
