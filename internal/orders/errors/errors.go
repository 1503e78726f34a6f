package errors

import "errors"

var (
	ErrNotFound = errors.New("order not found")

	ErrInvalidID = errors.New("invalid order ID format")

	// ErrStaleStatus means the order left the expected status before the write.
	ErrStaleStatus = errors.New("order status changed concurrently")
)
