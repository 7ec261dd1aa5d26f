package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/Martins1-1/logsonlinee-sub000/internal/infrastructure/ercaspay"
	"github.com/Martins1-1/logsonlinee-sub000/internal/models"
	pkgerrors "github.com/Martins1-1/logsonlinee-sub000/pkg/errors"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentService_WebhookThenPoll(t *testing.T) {
	f := newCreditFixture(t)
	user := f.db.addUser("ada")
	ctx := context.Background()

	var sent ercaspay.InitiateRequest
	f.gateway.EXPECT().Initiate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ercaspay.InitiateRequest) (*ercaspay.InitiateResult, error) {
			sent = req
			return &ercaspay.InitiateResult{
				PaymentReference:     req.Reference,
				TransactionReference: "ERCS|R1",
				CheckoutURL:          "https://checkout.example/ERCS|R1",
			}, nil
		})

	topUp, err := f.payments.InitiateTopUp(ctx, user.ID, 5000, "")
	require.NoError(t, err)
	assert.Equal(t, "ERCS|R1", topUp.GatewayReference)
	assert.Contains(t, topUp.InternalReference, "LGT-")
	assert.Equal(t, user.ID.String(), sent.UserID)
	assert.Equal(t, "http://localhost/return", sent.RedirectURL)

	f.gateway.EXPECT().Verify(gomock.Any(), "ERCS|R1").
		Return(successful("ERCS|R1", topUp.InternalReference, 5000, user.ID.String()), nil).Times(2)

	f.payments.HandleWebhook(ctx, []byte(`{"transaction_reference":"ERCS|R1","status":"SUCCESSFUL","amount":50}`))
	assert.Equal(t, int64(5000), f.db.balance(user.ID))

	res, err := f.payments.VerifyPayment(ctx, "ERCS|R1", user.ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)
	assert.False(t, res.Credited)
	assert.Equal(t, int64(5000), res.Amount)
	assert.Equal(t, int64(5000), res.NewBalance)
	assert.Equal(t, int64(5000), f.db.balance(user.ID))
}

func TestPaymentService_WebhookNeverTrustsBody(t *testing.T) {
	f := newCreditFixture(t)
	user := f.db.addUser("ada")
	f.seedPayment("LGT-2", "ERCS|R2", &user.ID, 5000)

	f.gateway.EXPECT().Verify(gomock.Any(), "ERCS|R2").
		Return(&ercaspay.Verification{Status: ercaspay.StatusFailed, RawStatus: "FAILED", TransactionReference: "ERCS|R2"}, nil)

	f.payments.HandleWebhook(context.Background(), []byte(`{"transactionReference":"ERCS|R2","status":"SUCCESSFUL","amount":50}`))

	assert.Equal(t, models.PaymentFailed, f.db.payment("ERCS|R2").Status)
	assert.Zero(t, f.db.balance(user.ID))
}

func TestPaymentService_WebhookIgnoresGarbage(t *testing.T) {
	f := newCreditFixture(t)

	f.payments.HandleWebhook(context.Background(), []byte(`not json`))
	f.payments.HandleWebhook(context.Background(), []byte(`{"status":"SUCCESSFUL"}`))
}

func TestPaymentService_InitiateTopUp(t *testing.T) {
	f := newCreditFixture(t)
	user := f.db.addUser("ada")
	ctx := context.Background()

	t.Run("invalid amount", func(t *testing.T) {
		_, err := f.payments.InitiateTopUp(ctx, user.ID, 0, "")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)

		_, err = f.payments.InitiateTopUp(ctx, user.ID, 100_000_001, "")
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidAmount)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.payments.InitiateTopUp(ctx, uuid.New(), 1000, "")
		assert.ErrorIs(t, err, pkgerrors.ErrUserNotFound)
	})

	t.Run("gateway down marks record failed", func(t *testing.T) {
		var ref string
		f.gateway.EXPECT().Initiate(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req ercaspay.InitiateRequest) (*ercaspay.InitiateResult, error) {
				ref = req.Reference
				return nil, fmt.Errorf("%w: status 502", ercaspay.ErrUnavailable)
			})

		_, err := f.payments.InitiateTopUp(ctx, user.ID, 1000, "")
		assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnavailable)
		require.NotNil(t, f.db.payment(ref))
		assert.Equal(t, models.PaymentFailed, f.db.payment(ref).Status)
	})
}

func TestPaymentService_ManualCredit(t *testing.T) {
	f := newCreditFixture(t)
	owner := f.db.addUser("owner")
	f.seedPayment("LGT-9", "ERCS|R9", &owner.ID, 700)
	ctx := context.Background()

	t.Run("other user is forbidden", func(t *testing.T) {
		caller := models.Principal{UserID: uuid.New(), Role: models.RoleUser}
		_, err := f.payments.ManualCredit(ctx, caller, owner.ID, "ERCS|R9")
		assert.ErrorIs(t, err, pkgerrors.ErrForbidden)
	})

	t.Run("admin may credit on behalf of user", func(t *testing.T) {
		f.gateway.EXPECT().Verify(gomock.Any(), "ERCS|R9").
			Return(successful("ERCS|R9", "LGT-9", 700, ""), nil)

		caller := models.Principal{UserID: uuid.New(), Role: models.RoleAdmin}
		res, err := f.payments.ManualCredit(ctx, caller, owner.ID, "ERCS|R9")
		require.NoError(t, err)
		assert.True(t, res.Credited)
		assert.Equal(t, int64(700), f.db.balance(owner.ID))
	})
}

func TestPaymentService_History(t *testing.T) {
	f := newCreditFixture(t)
	user := f.db.addUser("ada")
	f.seedPayment("LGT-10", "", &user.ID, 100)
	f.seedPayment("LGT-11", "", &user.ID, 200)

	payments, err := f.payments.History(context.Background(), user.ID, 0, -1)
	require.NoError(t, err)
	assert.Len(t, payments, 2)
}
