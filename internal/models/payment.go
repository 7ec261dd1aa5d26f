package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

// Payment is one wallet top-up attempt. Credited is the only guard
// against applying the same gateway transaction twice.
type Payment struct {
	ID                uuid.UUID     `json:"id" db:"id"`
	InternalReference string        `json:"internal_reference" db:"internal_reference"`
	GatewayReference  *string       `json:"gateway_reference,omitempty" db:"gateway_reference"`
	UserID            uuid.NullUUID `json:"user_id" db:"user_id"`
	Amount            int64         `json:"amount" db:"amount"` // kobo, as verified by the gateway
	Status            PaymentStatus `json:"status" db:"status"`
	Credited          bool          `json:"credited" db:"credited"`
	CreditedAt        *time.Time    `json:"credited_at,omitempty" db:"credited_at"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
}

// Orphaned reports a gateway-confirmed payment nobody has been credited for.
func (p *Payment) Orphaned() bool {
	return p.Status == PaymentCompleted && !p.Credited
}

// ReconcileSource names the entry point that triggered a reconciliation.
type ReconcileSource string

const (
	SourceVerify  ReconcileSource = "verify"
	SourceWebhook ReconcileSource = "webhook"
	SourceManual  ReconcileSource = "manual"
)

type ReconcileResult struct {
	PaymentID        uuid.UUID     `json:"payment_id"`
	Reference        string        `json:"reference"`
	UserID           uuid.NullUUID `json:"user_id"`
	Status           PaymentStatus `json:"payment_status"`
	Credited         bool          `json:"credited"`
	AlreadyProcessed bool          `json:"already_processed"`
	Amount           int64         `json:"amount"`
	NewBalance       int64         `json:"new_balance"`
}

type TopUp struct {
	PaymentID         uuid.UUID `json:"payment_id"`
	InternalReference string    `json:"internal_reference"`
	GatewayReference  string    `json:"gateway_reference"`
	CheckoutURL       string    `json:"checkout_url"`
	Amount            int64     `json:"amount"`
}
