package errors

import "errors"

var (
	ErrNotFound = errors.New("product not found")

	ErrInvalidID = errors.New("invalid product ID format")

	// ErrVersionConflict means the product changed since it was read.
	ErrVersionConflict = errors.New("product was modified concurrently")

	ErrInsufficientStock = errors.New("insufficient stock")
)
