package domain

import "errors"

var (
	ErrValidation        = errors.New("invalid input")
	ErrItemNotFound      = errors.New("item not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrCartEntryNotFound = errors.New("cart entry not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrSelfPurchase      = errors.New("cannot buy your own item")
	ErrMultipleSellers   = errors.New("cart spans multiple sellers")
	ErrUnauthorized      = errors.New("not allowed for this caller")
	ErrInvalidOrderState = errors.New("order is not in a valid state for this action")
	ErrInvalidOTP        = errors.New("invalid otp")

	// ErrDuplicateTransactionCode is practically unreachable with
	// high-entropy codes; creation retries generation when it shows up.
	ErrDuplicateTransactionCode = errors.New("transaction code already used")

	// ErrReconciliationRequired means a compensating stock release failed
	// after a partial commit. Stock counters may be off until an operator
	// reconciles; callers must surface it loudly, never swallow it.
	ErrReconciliationRequired = errors.New("stock reconciliation required")
)
