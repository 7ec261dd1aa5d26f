package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/ercaspay"
	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	"github.com/Martins1-1/logsonlinee-sub000/internal/repository"
	pkgerrors "github.com/Martins1-1/logsonlinee-sub000/pkg/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type PaymentService interface {
	InitiateTopUp(ctx context.Context, userID uuid.UUID, amount int64, redirectURL string) (*models.TopUp, error)
	VerifyPayment(ctx context.Context, reference string, userID uuid.UUID) (*models.ReconcileResult, error)
	HandleWebhook(ctx context.Context, payload []byte)
	ManualCredit(ctx context.Context, caller models.Principal, userID uuid.UUID, reference string) (*models.ReconcileResult, error)
	History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error)
	ListOrphaned(ctx context.Context, limit int) ([]models.Payment, error)
}

type paymentService struct {
	creditor           *WalletCreditor
	gateway            ercaspay.Gateway
	payments           repository.PaymentRepository
	users              repository.UserRepository
	maxAmount          int64
	defaultRedirectURL string
}

func NewPaymentService(
	creditor *WalletCreditor,
	gateway ercaspay.Gateway,
	payments repository.PaymentRepository,
	users repository.UserRepository,
	maxAmount int64,
	defaultRedirectURL string,
) *paymentService {
	return &paymentService{
		creditor:           creditor,
		gateway:            gateway,
		payments:           payments,
		users:              users,
		maxAmount:          maxAmount,
		defaultRedirectURL: defaultRedirectURL,
	}
}

func (s *paymentService) InitiateTopUp(ctx context.Context, userID uuid.UUID, amount int64, redirectURL string) (*models.TopUp, error) {
	ctx, span := otel.Tracer("payment-service").Start(ctx, "InitiateTopUp")
	defer span.End()

	if amount <= 0 || (s.maxAmount > 0 && amount > s.maxAmount) {
		span.SetStatus(codes.Error, "invalid amount")
		return nil, fmt.Errorf("%w: %d", pkgerrors.ErrInvalidAmount, amount)
	}
	if redirectURL == "" {
		redirectURL = s.defaultRedirectURL
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		zap.S().Errorw("failed to load user for top-up", "user_id", userID, "error", err)
		return nil, err
	}

	payment := &models.Payment{
		ID:                uuid.New(),
		InternalReference: "LGT-" + uuid.NewString(),
		UserID:            uuid.NullUUID{UUID: user.ID, Valid: true},
		Amount:            amount,
		Status:            models.PaymentPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: create payment: %v", pkgerrors.ErrStorage, err)
	}

	res, err := s.gateway.Initiate(ctx, ercaspay.InitiateRequest{
		Amount:        amount,
		Reference:     payment.InternalReference,
		CustomerName:  user.Username,
		CustomerEmail: user.Email,
		RedirectURL:   redirectURL,
		Description:   "Legit Store wallet top-up",
		UserID:        user.ID.String(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway initiate failed")
		zap.S().Errorw("failed to initiate gateway transaction", "payment_id", payment.ID, "error", err)
		if mErr := s.payments.MarkFailed(ctx, payment.ID); mErr != nil {
			zap.S().Errorw("failed to mark payment failed", "payment_id", payment.ID, "error", mErr)
		}
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrGatewayUnavailable, err)
	}

	if err := s.payments.SetGatewayReference(ctx, payment.ID, res.TransactionReference); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: store gateway reference: %v", pkgerrors.ErrStorage, err)
	}

	zap.S().Infow("top-up initiated",
		"payment_id", payment.ID,
		"user_id", user.ID,
		"amount", amount,
		"reference", payment.InternalReference,
		"gateway_reference", res.TransactionReference)

	return &models.TopUp{
		PaymentID:         payment.ID,
		InternalReference: payment.InternalReference,
		GatewayReference:  res.TransactionReference,
		CheckoutURL:       res.CheckoutURL,
		Amount:            amount,
	}, nil
}

func (s *paymentService) VerifyPayment(ctx context.Context, reference string, userID uuid.UUID) (*models.ReconcileResult, error) {
	return s.creditor.Reconcile(ctx, models.SourceVerify, reference, userID.String())
}

type webhookPayload struct {
	TransactionReference      string `json:"transaction_reference"`
	TransactionReferenceCamel string `json:"transactionReference"`
	PaymentReference          string `json:"payment_reference"`
	PaymentReferenceCamel     string `json:"paymentReference"`
	Status                    string `json:"status"`
}

// HandleWebhook never reports failure. The gateway only needs an
// acknowledgement, and the body is not trusted beyond its references.
func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte) {
	ctx, span := otel.Tracer("payment-service").Start(ctx, "HandleWebhook")
	defer span.End()

	var body webhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		zap.S().Warnw("ignoring malformed webhook", "error", err)
		return
	}
	reference := firstNonEmpty(
		body.TransactionReference,
		body.TransactionReferenceCamel,
		body.PaymentReference,
		body.PaymentReferenceCamel,
	)
	if reference == "" {
		zap.S().Warnw("ignoring webhook without reference", "status", body.Status)
		return
	}

	result, err := s.creditor.Reconcile(ctx, models.SourceWebhook, reference, "")
	switch {
	case err == nil && result.AlreadyProcessed:
		zap.S().Infow("webhook for processed payment", "reference", reference)
	case err == nil:
		zap.S().Infow("webhook credited payment", "reference", reference, "amount", result.Amount)
	case stderrors.Is(err, pkgerrors.ErrPaymentPending):
		zap.S().Infow("webhook for pending payment", "reference", reference)
	default:
		span.RecordError(err)
		zap.S().Errorw("webhook processing failed", "reference", reference, "gateway_status", body.Status, "error", err)
	}
}

func (s *paymentService) ManualCredit(ctx context.Context, caller models.Principal, userID uuid.UUID, reference string) (*models.ReconcileResult, error) {
	if caller.UserID != userID && !caller.IsAdmin() {
		zap.S().Warnw("manual credit for another user refused", "caller", caller.UserID, "user_id", userID, "reference", reference)
		return nil, pkgerrors.ErrForbidden
	}
	return s.creditor.Reconcile(ctx, models.SourceManual, reference, userID.String())
}

func (s *paymentService) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	ctx, span := otel.Tracer("payment-service").Start(ctx, "History")
	defer span.End()

	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	payments, err := s.payments.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		span.RecordError(err)
		zap.S().Errorw("failed to list payments", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorage, err)
	}
	return payments, nil
}

func (s *paymentService) ListOrphaned(ctx context.Context, limit int) ([]models.Payment, error) {
	if limit <= 0 || limit > maxPageSize {
		limit = maxPageSize
	}
	payments, err := s.payments.ListOrphaned(ctx, limit)
	if err != nil {
		zap.S().Errorw("failed to list orphaned payments", "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrStorage, err)
	}
	return payments, nil
}
