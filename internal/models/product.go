package models

import (
	"time"

	"github.com/google/uuid"
)

type Product struct {
	ID     uuid.UUID `json:"id" db:"id"`
	Name   string    `json:"name" db:"name"`
	Price  int64     `json:"price" db:"price"`
	Active bool      `json:"active" db:"active"`
}

type Order struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Price     int64     `json:"price" db:"price"`
	RequestID string    `json:"request_id" db:"request_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
