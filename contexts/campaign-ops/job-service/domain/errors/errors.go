package errors

import "errors"

var (
	ErrInvalidJobInput        = errors.New("invalid job input")
	ErrJobNotFound            = errors.New("job not found")
	ErrDuplicateAssignment    = errors.New("creator already has an active job in this campaign")
	ErrBudgetExhausted        = errors.New("campaign budget exhausted")
	ErrInvalidStateTransition = errors.New("invalid job state transition")
	ErrIdempotencyKeyConflict = errors.New("idempotency key reused with a different request payload")
	ErrConflict               = errors.New("job operation conflicted with a concurrent update")
)
