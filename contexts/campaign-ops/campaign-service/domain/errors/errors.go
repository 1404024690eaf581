package errors

import "errors"

var (
	ErrInvalidCampaignInput   = errors.New("campaign input is invalid")
	ErrCampaignNotFound       = errors.New("campaign not found")
	ErrCampaignClosed         = errors.New("campaign no longer accepts allocations")
	ErrInvalidStateTransition = errors.New("campaign status transition is not allowed")
	ErrInvalidBudgetAmount    = errors.New("budget amount must be positive")
	ErrIdempotencyKeyConflict = errors.New("idempotency key already used with different payload")
	ErrConflict               = errors.New("campaign update conflicted, retry the request")
)
