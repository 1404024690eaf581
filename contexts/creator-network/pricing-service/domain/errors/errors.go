package errors

import "errors"

var (
	ErrInvalidPriceInput = errors.New("invalid price input")
	ErrInvalidPriceRange = errors.New("invalid price range")
	ErrNoPriceSet        = errors.New("creator has no price set")
	ErrConflict          = errors.New("pricing operation conflicted with a concurrent update")
)
