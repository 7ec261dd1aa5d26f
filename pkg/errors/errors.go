package errors

import (
	"errors"
)

var (
	ErrUserNotFound            = errors.New("user not found")
	ErrUserAlreadyExists       = errors.New("user already exists")
	ErrNilUser                 = errors.New("user is nil")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrProductNotFound         = errors.New("product not found")
	ErrNilPayment              = errors.New("payment is nil")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrInvalidPaymentStatus    = errors.New("invalid payment status")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrRequestAlreadyProcessed = errors.New("request already processed")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrUsernameExists          = errors.New("username already exists")
	ErrInvalidInput            = errors.New("invalid input")
	ErrForbidden               = errors.New("forbidden")
	ErrInternal                = errors.New("internal error")

	// Crediting outcomes.
	ErrVerificationFailed   = errors.New("payment verification failed")
	ErrPaymentNotSuccessful = errors.New("gateway reports payment not successful")
	ErrPaymentPending       = errors.New("payment is still pending at the gateway")
	ErrUserUnresolved       = errors.New("payment cannot be linked to a user")
	ErrStorage              = errors.New("storage failure")
	ErrGatewayUnavailable   = errors.New("payment gateway unavailable")
)
