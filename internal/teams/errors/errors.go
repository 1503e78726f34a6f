package errors

import "errors"

var (
	ErrNotFound = errors.New("team not found")

	ErrInvalidID = errors.New("invalid team ID format")

	ErrAlreadyMember = errors.New("user is already on the team")

	ErrTeamFull = errors.New("team is full")

	// ErrNotMember is also returned when the targeted member is the captain.
	ErrNotMember = errors.New("user is not a removable team member")
)
