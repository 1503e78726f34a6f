package errors

import "errors"

var (
	ErrNotFound = errors.New("coach not found")

	ErrInvalidID = errors.New("invalid coach ID format")

	// ErrDuplicateProfile is returned when the user already has a coach profile.
	ErrDuplicateProfile = errors.New("user already has a coach profile")
)
