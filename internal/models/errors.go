package models

import "errors"

// Domain error kinds. Callers wrap these with context via fmt.Errorf("%w: ...")
// and match them with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrConflict            = errors.New("conflict")
	ErrInvalidRange        = errors.New("invalid range")
	ErrOverlap             = errors.New("stall is already booked for the selected dates")
	ErrIneligible          = errors.New("not eligible")
	ErrAlreadyExists       = errors.New("already exists")
	ErrGatewayUnconfigured = errors.New("payment gateway is not configured")
	ErrGatewayError        = errors.New("payment gateway error")
	ErrVerificationFailed  = errors.New("payment verification failed")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInactiveAccount     = errors.New("account is inactive")
)
