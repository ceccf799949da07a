package domain

import "errors"

var (
	// ErrAccountNotFound indicates a referenced account id does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrUnauthorized indicates the caller does not own the source account.
	ErrUnauthorized = errors.New("caller does not own account")
	// ErrInvalidAmount indicates a non-positive or otherwise malformed amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientFunds indicates the balance check failed; nothing was mutated.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrConcurrencyConflict indicates the bounded retry on serialization
	// conflicts was exhausted.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	// ErrInvalidState indicates a journal transition was attempted from a
	// non-pending state. This is a defect, not a user error.
	ErrInvalidState = errors.New("transaction not in pending state")
	// ErrIdempotencyConflict indicates a request with the same key is still in
	// progress.
	ErrIdempotencyConflict = errors.New("request in progress")
	// ErrIdempotencyMismatch indicates a key reuse with a different payload.
	ErrIdempotencyMismatch = errors.New("key reuse with mismatched payload")
	// ErrInvalidCredentials indicates a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid username or password")
)
