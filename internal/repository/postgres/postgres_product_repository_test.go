package postgres_test

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	"github.com/Martins1-1/logsonlinee-sub000/internal/repository/postgres"
	pkgerrors "github.com/Martins1-1/logsonlinee-sub000/pkg/errors"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresProductRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewPostgresProductRepository(db)
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id = $1 AND active`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "active"}).AddRow(id.String(), "Canva Pro", 150000, true))

	p, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), p.Price)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products WHERE id = $1 AND active`)).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err = repo.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, pkgerrors.ErrProductNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresOrderRepository_Place(t *testing.T) {
	db, mock := newMockDB(t)
	repo := postgres.NewPostgresOrderRepository(db)
	ctx := context.Background()
	userID, productID := uuid.New(), uuid.New()

	price := regexp.QuoteMeta(`SELECT price FROM products WHERE id = $1 AND active FOR SHARE`)
	debit := regexp.QuoteMeta(`UPDATE users SET balance = balance - $1`)
	insert := regexp.QuoteMeta(`INSERT INTO orders (id, user_id, product_id, price, request_id)`)

	newOrder := func(requestID string) *models.Order {
		return &models.Order{UserID: userID, ProductID: productID, RequestID: requestID}
	}
	expectPrice := func(p int64) {
		mock.ExpectQuery(price).
			WithArgs(productID).
			WillReturnRows(sqlmock.NewRows([]string{"price"}).AddRow(p))
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectBegin()
		expectPrice(150000)
		mock.ExpectQuery(debit).
			WithArgs(int64(150000), userID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(50000))
		mock.ExpectQuery(insert).
			WithArgs(sqlmock.AnyArg(), userID, productID, int64(150000), "req-1").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectCommit()

		order := newOrder("req-1")
		balance, err := repo.Place(ctx, order)
		require.NoError(t, err)
		assert.Equal(t, int64(50000), balance)
		assert.Equal(t, int64(150000), order.Price)
		assert.NotEqual(t, uuid.Nil, order.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CurrentPriceWins", func(t *testing.T) {
		mock.ExpectBegin()
		expectPrice(200000)
		mock.ExpectQuery(debit).
			WithArgs(int64(200000), userID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(0))
		mock.ExpectQuery(insert).
			WithArgs(sqlmock.AnyArg(), userID, productID, int64(200000), "req-7").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
		mock.ExpectCommit()

		order := newOrder("req-7")
		order.Price = 150000
		_, err := repo.Place(ctx, order)
		require.NoError(t, err)
		assert.Equal(t, int64(200000), order.Price)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeactivatedProduct", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery(price).
			WithArgs(productID).
			WillReturnRows(sqlmock.NewRows([]string{"price"}))
		mock.ExpectRollback()

		_, err := repo.Place(ctx, newOrder("req-3"))
		assert.ErrorIs(t, err, pkgerrors.ErrProductNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("InsufficientFunds", func(t *testing.T) {
		mock.ExpectBegin()
		expectPrice(150000)
		mock.ExpectQuery(debit).
			WithArgs(int64(150000), userID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}))
		mock.ExpectRollback()

		_, err := repo.Place(ctx, newOrder("req-2"))
		assert.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateRequest", func(t *testing.T) {
		mock.ExpectBegin()
		expectPrice(150000)
		mock.ExpectQuery(debit).
			WithArgs(int64(150000), userID).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(50000))
		mock.ExpectQuery(insert).
			WithArgs(sqlmock.AnyArg(), userID, productID, int64(150000), "req-1").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		_, err := repo.Place(ctx, newOrder("req-1"))
		assert.ErrorIs(t, err, pkgerrors.ErrRequestAlreadyProcessed)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("MissingRequestID", func(t *testing.T) {
		_, err := repo.Place(ctx, newOrder(""))
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})
}
