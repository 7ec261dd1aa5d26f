package repository

import (
	"context"

	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	"github.com/google/uuid"
)

// PaymentRepository persists top-up records and applies credits.
//
// Credit must be atomic: it flips credited from false to true and adds
// amount to the user's balance in one unit of work. applied is false when
// another caller already credited the record.
type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	// Ensure inserts p unless a record with either reference already
	// exists, and returns the stored record in both cases.
	Ensure(ctx context.Context, p *models.Payment) (*models.Payment, error)
	GetByReference(ctx context.Context, reference string) (*models.Payment, error)
	SetGatewayReference(ctx context.Context, id uuid.UUID, gatewayReference string) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
	MarkOrphaned(ctx context.Context, id uuid.UUID, amount int64) error
	Credit(ctx context.Context, id, userID uuid.UUID, amount int64) (newBalance int64, applied bool, err error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error)
	ListOrphaned(ctx context.Context, limit int) ([]models.Payment, error)
}
