package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidCode       = errors.New("invalid code")
	ErrExpired           = errors.New("code expired")
	ErrInvalidSignature  = errors.New("invalid signature")
	ErrRateLimited       = errors.New("too many requests")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrDeliveryFailed    = errors.New("delivery failed")
	ErrPaymentLinkFailed = errors.New("payment link creation failed")
)

// ValidationError describes a rejected input field. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
