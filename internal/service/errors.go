package service

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrPatch                = errors.New("patch failed")
)

// InsufficientQuantityError names the product whose stock cannot cover a
// requested order line.
type InsufficientQuantityError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("cannot place order for product %d: quantity available is %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientQuantityError) Unwrap() error {
	return ErrInsufficientQuantity
}
