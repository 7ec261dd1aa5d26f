package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Email  string `json:"email" validate:"required,email"`
	Amount int64  `json:"amount" validate:"gt=0"`
	UserID string `json:"user_id" validate:"omitempty,uuid"`
}

func TestValidate(t *testing.T) {
	assert.Nil(t, Validate(&sample{Email: "a@b.co", Amount: 1}))

	errs := Validate(&sample{Email: "nope", UserID: "x"})
	assert.Equal(t, "Invalid email format", errs["email"])
	assert.Contains(t, errs, "amount")
	assert.Equal(t, "Invalid UUID", errs["user_id"])
}
