package errors

import "errors"

var (
	ErrNotFound = errors.New("delivery not found")

	ErrInvalidID = errors.New("invalid delivery ID format")

	ErrDuplicateTracking = errors.New("tracking number already exists")

	// ErrStaleStatus means the delivery left the expected status before the write.
	ErrStaleStatus = errors.New("delivery status changed concurrently")
)
