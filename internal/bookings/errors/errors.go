package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrSlotTaken is returned when another active booking already holds the slot.
	ErrSlotTaken = errors.New("slot already held by an active booking")

	// ErrLockHeld means a concurrent request is booking the same slot.
	ErrLockHeld = errors.New("slot lock is held by another request")

	// ErrStaleStatus means the booking changed state between read and write.
	ErrStaleStatus = errors.New("booking status changed concurrently")
)
