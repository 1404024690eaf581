package errors

import "errors"

var (
	ErrInvalidShopID          = errors.New("shop id is required")
	ErrInvalidAmount          = errors.New("token amount must be positive")
	ErrInvalidExpiry          = errors.New("batch expiry must be in the future")
	ErrInsufficientBalance    = errors.New("live token balance is insufficient")
	ErrIdempotencyKeyConflict = errors.New("idempotency key already used with different payload")
	ErrConflict               = errors.New("wallet update conflicted, retry the request")
)
