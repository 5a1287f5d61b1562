package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return gdb, mock
}

func TestDecrementStock(t *testing.T) {
	query := regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock - $1 WHERE id = $2 AND stock >= $3`)

	t.Run("Enough stock", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectExec(query).WithArgs(2, "p1", 2).WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.DecrementStock(context.Background(), "p1", 2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("Guard rejects oversell", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewProductRepository(db)

		mock.ExpectExec(query).WithArgs(5, "p1", 5).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.DecrementStock(context.Background(), "p1", 5)
		assert.ErrorIs(t, err, ErrInsufficientStock)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDecrementStockClamped(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=GREATEST(stock - $1, 0) WHERE id = $2`)).
		WithArgs(3, "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.DecrementStockClamped(context.Background(), "p1", 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementStock(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "products" SET "stock"=stock + $1 WHERE id = $2`)).
		WithArgs(2, "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.IncrementStock(context.Background(), "missing", 2)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReservationRepository(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "stock_reservations" WHERE expires_at <= $1`)).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.DeleteExpired(context.Background(), now)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteByOrder(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReservationRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "stock_reservations" WHERE order_id = $1`)).
		WithArgs("order-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.DeleteByOrder(context.Background(), "order-1")
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSumActiveByProduct(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewReservationRepository(db)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT product_id, COALESCE(SUM(quantity), 0) AS reserved FROM "stock_reservations" WHERE product_id IN ($1,$2) AND user_id <> $3 AND expires_at > $4`)).
		WithArgs("p1", "p2", "user-1", now).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "reserved"}).AddRow("p1", 3))

	reserved, err := repo.SumActiveByProduct(context.Background(), []string{"p1", "p2"}, "user-1", now)
	require.NoError(t, err)
	assert.Equal(t, 3, reserved["p1"])
	assert.Equal(t, 0, reserved["p2"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
