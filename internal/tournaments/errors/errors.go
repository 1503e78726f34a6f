package errors

import "errors"

var (
	ErrNotFound = errors.New("tournament not found")

	ErrInvalidID = errors.New("invalid tournament ID format")

	ErrAlreadyRegistered = errors.New("team is already registered")

	ErrFull = errors.New("tournament is full")

	ErrRegistrationClosed = errors.New("registration deadline has passed")

	ErrNotRegistered = errors.New("team is not registered")
)
