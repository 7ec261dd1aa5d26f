package repository

import (
	"context"

	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	"github.com/google/uuid"
)

type ProductRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	ListActive(ctx context.Context) ([]models.Product, error)
}

// OrderRepository debits the buyer and records the order together.
type OrderRepository interface {
	Place(ctx context.Context, order *models.Order) (newBalance int64, err error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
}
