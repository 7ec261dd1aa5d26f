package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/ercaspay"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/kafka"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/observability"
	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/redis"
	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	"github.com/Martins1-1/logsonlinee-sub000/internal/repository"
	pkgerrors "github.com/Martins1-1/logsonlinee-sub000/pkg/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const eventPublishTimeout = 5 * time.Second

// WalletCreditor turns a gateway-confirmed top-up into exactly one balance
// increment. Every entry point (redirect verify, webhook, manual credit)
// goes through Reconcile.
type WalletCreditor struct {
	gateway       ercaspay.Gateway
	payments      repository.PaymentRepository
	users         repository.UserRepository
	cache         redis.RedisClient
	events        kafka.EventPublisher
	verifyTimeout time.Duration
}

func NewWalletCreditor(
	gateway ercaspay.Gateway,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	cache redis.RedisClient,
	events kafka.EventPublisher,
	verifyTimeout time.Duration,
) *WalletCreditor {
	if verifyTimeout <= 0 {
		verifyTimeout = 15 * time.Second
	}
	return &WalletCreditor{
		gateway:       gateway,
		payments:      payments,
		users:         users,
		cache:         cache,
		events:        events,
		verifyTimeout: verifyTimeout,
	}
}

// Reconcile re-verifies reference with Ercaspay and credits the resolved
// user with the gateway's amount unless the record is already credited.
//
// The result is non-nil whenever a payment record was found or created, even
// when an error is returned, so callers can report the record state.
func (c *WalletCreditor) Reconcile(ctx context.Context, source models.ReconcileSource, reference, claimedUserID string) (result *models.ReconcileResult, err error) {
	ctx, span := otel.Tracer("wallet-creditor").Start(ctx, "Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("source", string(source)), attribute.String("reference", reference))

	outcome := "error"
	defer func() {
		observability.ReconcileTotal.WithLabelValues(string(source), outcome).Inc()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
	}()

	if reference == "" {
		return nil, fmt.Errorf("%w: reference is required", pkgerrors.ErrInvalidInput)
	}

	verification, err := c.verify(ctx, reference)
	if err != nil {
		zap.S().Warnw("gateway verification failed", "source", source, "reference", reference, "error", err)
		return nil, fmt.Errorf("%w: %w", pkgerrors.ErrVerificationFailed, err)
	}

	record, err := c.findOrCreate(ctx, reference, verification)
	if err != nil {
		return nil, err
	}
	result = &models.ReconcileResult{
		PaymentID: record.ID,
		Reference: record.InternalReference,
		UserID:    record.UserID,
		Status:    record.Status,
		Credited:  false,
		Amount:    record.Amount,
	}

	switch verification.Status {
	case ercaspay.StatusFailed:
		outcome = "failed"
		if err := c.payments.MarkFailed(ctx, record.ID); err != nil {
			return result, fmt.Errorf("%w: mark failed: %v", pkgerrors.ErrStorage, err)
		}
		if !record.Credited {
			result.Status = models.PaymentFailed
		}
		c.publish(ctx, models.Event{
			Type:      models.EventPaymentFailed,
			PaymentID: record.ID.String(),
			Reference: record.InternalReference,
			Amount:    verification.Amount,
		})
		zap.S().Infow("gateway reports payment not successful",
			"source", source, "reference", reference, "gateway_status", verification.RawStatus)
		return result, fmt.Errorf("%w: %w (%s)", pkgerrors.ErrVerificationFailed, pkgerrors.ErrPaymentNotSuccessful, verification.RawStatus)
	case ercaspay.StatusPending:
		outcome = "pending"
		return result, pkgerrors.ErrPaymentPending
	}

	if record.Credited {
		outcome = "already_processed"
		return c.alreadyProcessed(ctx, result, record), nil
	}

	if verification.Amount <= 0 {
		return result, fmt.Errorf("%w: %w", pkgerrors.ErrVerificationFailed, pkgerrors.ErrInvalidAmount)
	}
	result.Amount = verification.Amount
	result.Status = models.PaymentCompleted

	user, err := c.resolveUser(ctx, record, claimedUserID, verification.UserID)
	if err != nil {
		return result, err
	}
	if user == nil {
		outcome = "orphaned"
		return result, c.orphan(ctx, record, verification, reference)
	}
	result.UserID = uuid.NullUUID{UUID: user.ID, Valid: true}
	span.SetAttributes(attribute.String("user_id", user.ID.String()))

	newBalance, applied, err := c.payments.Credit(ctx, record.ID, user.ID, verification.Amount)
	if stderrors.Is(err, pkgerrors.ErrUserNotFound) {
		outcome = "orphaned"
		result.UserID = record.UserID
		return result, c.orphan(ctx, record, verification, reference)
	}
	if err != nil {
		zap.S().Errorw("failed to credit wallet", "source", source, "payment_id", record.ID, "user_id", user.ID, "error", err)
		return result, fmt.Errorf("%w: credit: %v", pkgerrors.ErrStorage, err)
	}
	if !applied {
		outcome = "already_processed"
		return c.alreadyProcessed(ctx, result, record), nil
	}

	outcome = "credited"
	result.Credited = true
	result.NewBalance = newBalance
	observability.CreditedKobo.Add(float64(verification.Amount))

	if err := c.cache.Del(ctx, redis.BalanceKey(user.ID.String())); err != nil {
		zap.S().Warnw("failed to invalidate cached balance", "user_id", user.ID, "error", err)
	}
	c.publish(ctx, models.Event{
		Type:      models.EventPaymentCredited,
		UserID:    user.ID.String(),
		PaymentID: record.ID.String(),
		Reference: record.InternalReference,
		Amount:    verification.Amount,
		Balance:   newBalance,
	})

	zap.S().Infow("wallet credited",
		"source", source,
		"payment_id", record.ID,
		"user_id", user.ID,
		"amount", verification.Amount,
		"new_balance", newBalance)
	return result, nil
}

func (c *WalletCreditor) verify(ctx context.Context, reference string) (*ercaspay.Verification, error) {
	ctx, cancel := context.WithTimeout(ctx, c.verifyTimeout)
	defer cancel()

	v, err := c.gateway.Verify(ctx, reference)
	if err != nil {
		if stderrors.Is(err, ercaspay.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrGatewayUnavailable, err)
		}
		return nil, err
	}
	return v, nil
}

// findOrCreate checks the supplied reference and both references echoed by
// the gateway. Call sites populate different fields first, so any of them
// may be the one stored.
func (c *WalletCreditor) findOrCreate(ctx context.Context, reference string, v *ercaspay.Verification) (*models.Payment, error) {
	seen := make(map[string]bool, 3)
	for _, ref := range []string{reference, v.TransactionReference, v.PaymentReference} {
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true

		record, err := c.payments.GetByReference(ctx, ref)
		if err == nil {
			if record.GatewayReference == nil && v.TransactionReference != "" {
				if err := c.payments.SetGatewayReference(ctx, record.ID, v.TransactionReference); err != nil {
					zap.S().Warnw("failed to store gateway reference", "payment_id", record.ID, "error", err)
				} else {
					gw := v.TransactionReference
					record.GatewayReference = &gw
				}
			}
			return record, nil
		}
		if !stderrors.Is(err, pkgerrors.ErrPaymentNotFound) {
			return nil, fmt.Errorf("%w: lookup %s: %v", pkgerrors.ErrStorage, ref, err)
		}
	}

	gatewayRef := firstNonEmpty(v.TransactionReference, reference)
	record, err := c.payments.Ensure(ctx, &models.Payment{
		InternalReference: firstNonEmpty(v.PaymentReference, gatewayRef),
		GatewayReference:  &gatewayRef,
		Amount:            v.Amount,
		Status:            models.PaymentPending,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create record: %v", pkgerrors.ErrStorage, err)
	}
	zap.S().Infow("payment record created from gateway notification", "payment_id", record.ID, "reference", reference)
	return record, nil
}

// resolveUser returns nil when no candidate names an existing user.
// Precedence: stored owner, caller's claim, gateway metadata.
func (c *WalletCreditor) resolveUser(ctx context.Context, record *models.Payment, claimedUserID, metadataUserID string) (*models.User, error) {
	candidates := make([]string, 0, 3)
	if record.UserID.Valid {
		candidates = append(candidates, record.UserID.UUID.String())
	}
	candidates = append(candidates, claimedUserID, metadataUserID)

	for _, candidate := range candidates {
		id, err := uuid.Parse(candidate)
		if err != nil {
			continue
		}
		user, err := c.users.GetByID(ctx, id)
		if err == nil {
			return user, nil
		}
		if !stderrors.Is(err, pkgerrors.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: resolve user: %v", pkgerrors.ErrStorage, err)
		}
	}
	return nil, nil
}

func (c *WalletCreditor) orphan(ctx context.Context, record *models.Payment, v *ercaspay.Verification, reference string) error {
	if err := c.payments.MarkOrphaned(ctx, record.ID, v.Amount); err != nil {
		return fmt.Errorf("%w: mark orphaned: %v", pkgerrors.ErrStorage, err)
	}
	zap.S().Errorw("payment confirmed but no user to credit",
		"payment_id", record.ID,
		"reference", reference,
		"amount", v.Amount,
		"customer_email", v.CustomerEmail)
	c.publish(ctx, models.Event{
		Type:      models.EventPaymentOrphaned,
		PaymentID: record.ID.String(),
		Reference: record.InternalReference,
		Amount:    v.Amount,
	})
	return pkgerrors.ErrUserUnresolved
}

func (c *WalletCreditor) alreadyProcessed(ctx context.Context, result *models.ReconcileResult, record *models.Payment) *models.ReconcileResult {
	result.AlreadyProcessed = true
	result.Credited = false
	result.Status = models.PaymentCompleted

	// Re-read so a caller that lost the race still reports the stored amount
	// and owner.
	if fresh, err := c.payments.GetByReference(ctx, record.InternalReference); err == nil {
		result.Amount = fresh.Amount
		result.UserID = fresh.UserID
	} else {
		result.Amount = record.Amount
	}

	if result.UserID.Valid {
		balance, err := c.users.GetBalance(ctx, result.UserID.UUID)
		if err != nil {
			zap.S().Warnw("failed to read balance for processed payment", "user_id", result.UserID.UUID, "error", err)
		}
		result.NewBalance = balance
	}
	zap.S().Infow("payment already processed", "payment_id", record.ID, "reference", record.InternalReference)
	return result
}

// publish is best-effort. The credit is already committed.
func (c *WalletCreditor) publish(ctx context.Context, event models.Event) {
	if c.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventPublishTimeout)
	defer cancel()

	event.CreatedAt = time.Now().UTC()
	if err := c.events.Publish(ctx, event); err != nil {
		zap.S().Errorw("failed to publish wallet event", "type", event.Type, "payment_id", event.PaymentID, "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
