package core

import (
	"errors"
)

var (
	// ErrNotFound is a sentinel error for "not found" cases
	ErrNotFound = errors.New("not found")

	// ErrPermissionLookup is returned when guild role data could not be fetched from Discord.
	// Processing of the message stops before any counter is touched.
	ErrPermissionLookup = errors.New("permission lookup failed")

	// ErrStorage is returned when the member ping store could not be read or written
	ErrStorage = errors.New("storage error")

	// ErrInvariantViolation marks a programming error, e.g. reconciling a message without pings
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrPresentationDispatch is returned when a notification or reply could not be sent.
	// Counter updates made for the message stay committed.
	ErrPresentationDispatch = errors.New("presentation dispatch failed")

	// ErrInvalidID is returned for guild, channel or user IDs that are not Discord snowflakes
	ErrInvalidID = errors.New("invalid snowflake ID")
)

// IsNotFoundError checks if an error is a "not found" error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
