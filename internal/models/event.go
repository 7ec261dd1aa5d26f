package models

import "time"

type EventType string

const (
	EventPaymentCredited EventType = "payment.credited"
	EventPaymentOrphaned EventType = "payment.orphaned"
	EventPaymentFailed   EventType = "payment.failed"
	EventOrderPlaced     EventType = "order.placed"
)

// Event is published to Kafka after a wallet balance changes or a
// payment needs operator attention.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"user_id,omitempty"`
	PaymentID string    `json:"payment_id,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	Reference string    `json:"reference,omitempty"`
	Amount    int64     `json:"amount"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}
