package cart

import "errors"

var (
	ErrInvalidItemID   = errors.New("item id must be between 1 and 2^53")
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 2147483647")
)
