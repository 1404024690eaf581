package errors

import "errors"

var (
	ErrInvalidPayoutInput = errors.New("invalid payout input")
	ErrAlreadySettled     = errors.New("job payout already settled")
	ErrSettlementNotFound = errors.New("settlement not found")
	ErrConflict           = errors.New("payout operation conflicted with a concurrent update")
)
