package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	pkgerrors "github.com/Martins1-1/logsonlinee-sub000/pkg/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PostgresProductRepository struct {
	db *sqlx.DB
}

func NewPostgresProductRepository(db *sqlx.DB) *PostgresProductRepository {
	return &PostgresProductRepository{db: db}
}

// GetByID hides inactive products.
func (r *PostgresProductRepository) GetByID(ctx context.Context, id uuid.UUID) (p *models.Product, err error) {
	ctx, _, done := track(ctx, "product-repository", "GetProductByID")
	defer done(&err)

	var out models.Product
	err = r.db.GetContext(ctx, &out, `SELECT id, name, price, active FROM products WHERE id = $1 AND active`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrProductNotFound
		return nil, err
	}
	if err != nil {
		err = fmt.Errorf("failed to get product: %w", err)
		return nil, err
	}
	return &out, nil
}

func (r *PostgresProductRepository) ListActive(ctx context.Context) (out []models.Product, err error) {
	ctx, _, done := track(ctx, "product-repository", "ListProducts")
	defer done(&err)

	out = []models.Product{}
	if err = r.db.SelectContext(ctx, &out, `SELECT id, name, price, active FROM products WHERE active ORDER BY name`); err != nil {
		err = fmt.Errorf("failed to list products: %w", err)
		return nil, err
	}
	return out, nil
}

type PostgresOrderRepository struct {
	db *sqlx.DB
}

func NewPostgresOrderRepository(db *sqlx.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

// Place charges the product's current price, read inside the transaction,
// and debits the buyer only if the balance covers it. order.Price is
// overwritten with the charged price.
func (r *PostgresOrderRepository) Place(ctx context.Context, order *models.Order) (newBalance int64, err error) {
	ctx, span, done := track(ctx, "order-repository", "PlaceOrder")
	defer done(&err)

	if order == nil || order.RequestID == "" {
		err = fmt.Errorf("%w: order and request id are required", pkgerrors.ErrInvalidInput)
		return 0, err
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	span.SetAttributes(
		attribute.String("user_id", order.UserID.String()),
		attribute.String("product_id", order.ProductID.String()),
	)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		err = fmt.Errorf("failed to begin transaction: %w", err)
		return 0, err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			zap.S().Errorw("rollback failed", "method", "Place", "error", rbErr)
			err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
	}()

	// FOR SHARE holds off a concurrent deactivation or reprice until commit.
	price := `SELECT price FROM products WHERE id = $1 AND active FOR SHARE`
	err = tx.GetContext(ctx, &order.Price, price, order.ProductID)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrProductNotFound
		return 0, err
	}
	if err != nil {
		err = fmt.Errorf("failed to read product price: %w", err)
		return 0, err
	}
	if order.Price <= 0 {
		err = pkgerrors.ErrInvalidAmount
		return 0, err
	}
	span.SetAttributes(attribute.Int64("price", order.Price))

	debit := `
		UPDATE users SET balance = balance - $1
		WHERE id = $2 AND balance >= $1
		RETURNING balance`
	err = tx.GetContext(ctx, &newBalance, debit, order.Price, order.UserID)
	if stderrors.Is(err, sql.ErrNoRows) {
		zap.S().Warnw("insufficient funds", "method", "Place", "user_id", order.UserID, "price", order.Price)
		err = pkgerrors.ErrInsufficientFunds
		return 0, err
	}
	if err != nil {
		err = fmt.Errorf("failed to debit balance: %w", err)
		return 0, err
	}

	insert := `
		INSERT INTO orders (id, user_id, product_id, price, request_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`
	err = tx.QueryRowxContext(ctx, insert, order.ID, order.UserID, order.ProductID, order.Price, order.RequestID).Scan(&order.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			err = pkgerrors.ErrRequestAlreadyProcessed
			return 0, err
		}
		err = fmt.Errorf("failed to insert order: %w", err)
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("failed to commit transaction: %w", err)
		return 0, err
	}
	return newBalance, nil
}

func (r *PostgresOrderRepository) ListByUser(ctx context.Context, userID uuid.UUID) (out []models.Order, err error) {
	ctx, _, done := track(ctx, "order-repository", "ListOrdersByUser")
	defer done(&err)

	out = []models.Order{}
	query := `SELECT id, user_id, product_id, price, request_id, created_at FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	if err = r.db.SelectContext(ctx, &out, query, userID); err != nil {
		err = fmt.Errorf("failed to list orders: %w", err)
		return nil, err
	}
	return out, nil
}
