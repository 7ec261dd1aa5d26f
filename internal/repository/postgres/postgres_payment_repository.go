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

const paymentColumns = `id, internal_reference, gateway_reference, user_id, amount, status, credited, credited_at, created_at, updated_at`

type PostgresPaymentRepository struct {
	db *sqlx.DB
}

func NewPostgresPaymentRepository(db *sqlx.DB) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{db: db}
}

func validatePayment(p *models.Payment) error {
	if p == nil {
		return pkgerrors.ErrNilPayment
	}
	if p.InternalReference == "" {
		return fmt.Errorf("%w: internal reference is required", pkgerrors.ErrInvalidInput)
	}
	if p.Amount < 0 {
		return pkgerrors.ErrInvalidAmount
	}
	if p.Status == "" {
		p.Status = models.PaymentPending
	}
	if !p.Status.Valid() {
		return pkgerrors.ErrInvalidPaymentStatus
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (r *PostgresPaymentRepository) Create(ctx context.Context, p *models.Payment) (err error) {
	ctx, span, done := track(ctx, "payment-repository", "CreatePayment")
	defer done(&err)

	if err = validatePayment(p); err != nil {
		zap.S().Errorw("invalid payment", "method", "Create", "error", err)
		return err
	}
	span.SetAttributes(
		attribute.String("internal_reference", p.InternalReference),
		attribute.Int64("amount", p.Amount),
	)

	query := `
		INSERT INTO payments (id, internal_reference, gateway_reference, user_id, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err = r.db.QueryRowxContext(ctx, query, p.ID, p.InternalReference, p.GatewayReference, p.UserID, p.Amount, p.Status).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		zap.S().Errorw("failed to insert payment", "method", "Create", "reference", p.InternalReference, "error", err)
		err = fmt.Errorf("failed to create payment: %w", err)
		return err
	}
	return nil
}

func (r *PostgresPaymentRepository) Ensure(ctx context.Context, p *models.Payment) (stored *models.Payment, err error) {
	ctx, span, done := track(ctx, "payment-repository", "EnsurePayment")
	defer done(&err)

	if err = validatePayment(p); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("internal_reference", p.InternalReference))

	insert := `
		INSERT INTO payments (id, internal_reference, gateway_reference, user_id, amount, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING`
	if _, err = r.db.ExecContext(ctx, insert, p.ID, p.InternalReference, p.GatewayReference, p.UserID, p.Amount, p.Status); err != nil {
		err = fmt.Errorf("failed to ensure payment: %w", err)
		return nil, err
	}

	gatewayRef := p.InternalReference
	if p.GatewayReference != nil {
		gatewayRef = *p.GatewayReference
	}

	var out models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE internal_reference = $1 OR gateway_reference = $2
		ORDER BY created_at LIMIT 1`
	if err = r.db.GetContext(ctx, &out, query, p.InternalReference, gatewayRef); err != nil {
		err = fmt.Errorf("failed to read ensured payment: %w", err)
		return nil, err
	}
	return &out, nil
}

// GetByReference matches either the internal or the gateway reference.
func (r *PostgresPaymentRepository) GetByReference(ctx context.Context, reference string) (p *models.Payment, err error) {
	ctx, span, done := track(ctx, "payment-repository", "GetPaymentByReference")
	defer done(&err)
	span.SetAttributes(attribute.String("reference", reference))

	var out models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE internal_reference = $1 OR gateway_reference = $1
		ORDER BY created_at LIMIT 1`
	err = r.db.GetContext(ctx, &out, query, reference)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrPaymentNotFound
		return nil, err
	}
	if err != nil {
		err = fmt.Errorf("failed to get payment: %w", err)
		return nil, err
	}
	return &out, nil
}

func (r *PostgresPaymentRepository) SetGatewayReference(ctx context.Context, id uuid.UUID, gatewayReference string) (err error) {
	ctx, _, done := track(ctx, "payment-repository", "SetGatewayReference")
	defer done(&err)

	query := `UPDATE payments SET gateway_reference = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, gatewayReference)
	if err != nil {
		err = fmt.Errorf("failed to set gateway reference: %w", err)
		return err
	}
	return expectOneRow(res)
}

// MarkFailed never touches a credited record.
func (r *PostgresPaymentRepository) MarkFailed(ctx context.Context, id uuid.UUID) (err error) {
	ctx, _, done := track(ctx, "payment-repository", "MarkPaymentFailed")
	defer done(&err)

	query := `UPDATE payments SET status = 'failed', updated_at = NOW() WHERE id = $1 AND credited = FALSE`
	if _, err = r.db.ExecContext(ctx, query, id); err != nil {
		err = fmt.Errorf("failed to mark payment failed: %w", err)
		return err
	}
	return nil
}

// MarkOrphaned records a gateway-confirmed payment that has no user to
// credit. It stays uncredited so a later call can still apply it.
func (r *PostgresPaymentRepository) MarkOrphaned(ctx context.Context, id uuid.UUID, amount int64) (err error) {
	ctx, _, done := track(ctx, "payment-repository", "MarkPaymentOrphaned")
	defer done(&err)

	query := `
		UPDATE payments SET status = 'completed', amount = $2, updated_at = NOW()
		WHERE id = $1 AND credited = FALSE`
	if _, err = r.db.ExecContext(ctx, query, id, amount); err != nil {
		err = fmt.Errorf("failed to mark payment orphaned: %w", err)
		return err
	}
	return nil
}

// Credit claims the record and increments the balance in one transaction.
// The conditional update takes a row lock, so concurrent callers for the
// same record serialize and exactly one of them sees a row back.
func (r *PostgresPaymentRepository) Credit(ctx context.Context, id, userID uuid.UUID, amount int64) (newBalance int64, applied bool, err error) {
	ctx, span, done := track(ctx, "payment-repository", "CreditPayment")
	defer done(&err)
	span.SetAttributes(
		attribute.String("payment_id", id.String()),
		attribute.String("user_id", userID.String()),
		attribute.Int64("amount", amount),
	)

	if amount < 0 {
		err = pkgerrors.ErrInvalidAmount
		return 0, false, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		zap.S().Errorw("failed to begin transaction", "method", "Credit", "error", err)
		err = fmt.Errorf("failed to begin transaction: %w", err)
		return 0, false, err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			zap.S().Errorw("rollback failed", "method", "Credit", "error", rbErr)
			err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
	}()

	claim := `
		UPDATE payments
		SET credited = TRUE, credited_at = NOW(), status = 'completed',
			user_id = $2, amount = $3, updated_at = NOW()
		WHERE id = $1 AND credited = FALSE
		RETURNING id`
	var claimed uuid.UUID
	err = tx.GetContext(ctx, &claimed, claim, id, userID, amount)
	if stderrors.Is(err, sql.ErrNoRows) {
		zap.S().Infow("payment already credited", "method", "Credit", "payment_id", id)
		return 0, false, nil
	}
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23503" {
			err = pkgerrors.ErrUserNotFound
			return 0, false, err
		}
		err = fmt.Errorf("failed to claim payment: %w", err)
		return 0, false, err
	}

	err = tx.GetContext(ctx, &newBalance, `UPDATE users SET balance = balance + $1 WHERE id = $2 RETURNING balance`, amount, userID)
	if stderrors.Is(err, sql.ErrNoRows) {
		err = pkgerrors.ErrUserNotFound
		return 0, false, err
	}
	if err != nil {
		err = fmt.Errorf("failed to increment balance: %w", err)
		return 0, false, err
	}

	if err = tx.Commit(); err != nil {
		zap.S().Errorw("failed to commit credit", "method", "Credit", "payment_id", id, "error", err)
		err = fmt.Errorf("failed to commit transaction: %w", err)
		return 0, false, err
	}
	committed = true

	zap.S().Infow("payment credited", "method", "Credit", "payment_id", id, "user_id", userID, "amount", amount, "new_balance", newBalance)
	return newBalance, true, nil
}

func (r *PostgresPaymentRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) (out []models.Payment, err error) {
	ctx, _, done := track(ctx, "payment-repository", "ListPaymentsByUser")
	defer done(&err)

	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	out = []models.Payment{}
	if err = r.db.SelectContext(ctx, &out, query, userID, limit, offset); err != nil {
		err = fmt.Errorf("failed to list payments: %w", err)
		return nil, err
	}
	return out, nil
}

// ListOrphaned returns completed payments still waiting for a credit.
func (r *PostgresPaymentRepository) ListOrphaned(ctx context.Context, limit int) (out []models.Payment, err error) {
	ctx, _, done := track(ctx, "payment-repository", "ListOrphanedPayments")
	defer done(&err)

	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status = 'completed' AND credited = FALSE
		ORDER BY created_at LIMIT $1`
	out = []models.Payment{}
	if err = r.db.SelectContext(ctx, &out, query, limit); err != nil {
		err = fmt.Errorf("failed to list orphaned payments: %w", err)
		return nil, err
	}
	return out, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return pkgerrors.ErrPaymentNotFound
	}
	return nil
}
