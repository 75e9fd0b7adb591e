package domain

import "github.com/go-faster/errors"

var (
	ErrInvalidQuantity  = errors.New("quantity must be positive")
	ErrItemNotFound     = errors.New("item not found in cart")
	ErrUnknownProduct   = errors.New("unknown product")
	ErrCartReadOnly     = errors.New("cart is read-only")
	ErrInvalidDirection = errors.New("direction must be increase or decrease")
	ErrInvalidTaxMode   = errors.New("tax convention must be inclusive or exclusive")
	ErrInvalidStatus    = errors.New("status must be active or converted")
)
