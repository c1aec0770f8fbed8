// internal/domain/errors.go
package domain

import "errors"

// Client input errors (400).
var (
	ErrInvalidDonationRequest = errors.New("valid phone and amount are required")
	ErrInvalidAmount          = errors.New("amount must be a positive integer")
	ErrInvalidPhone           = errors.New("invalid phone number")
	ErrInvalidCallback        = errors.New("invalid callback payload")
	ErrIncompleteMetadata     = errors.New("incomplete donation data")
)

// Server side errors (500).
var (
	ErrConfiguration     = errors.New("payment service is not configured")
	ErrPaymentInitiation = errors.New("failed to initiate payment")
	ErrPersistence       = errors.New("failed to save donation")
)

var ErrDonationNotFound = errors.New("donation not found")
