package domain

import "errors"

// Error taxonomy. Validation, not-found, conflict and insufficient-funds
// errors abort an operation with no partial state change. Signature
// mismatches abort before any ledger mutation.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrNotEligible       = errors.New("not eligible")
)
