package services

import "errors"

// Sentinel errors for the conversion service. The HTTP layer translates
// these into status codes; anything else is an internal error with a generic
// message to the caller.
var (
	// ErrBadInput marks a missing or unusable document reference.
	ErrBadInput = errors.New("bad input")

	// ErrNoSuchOperation is returned when polling a job that does not exist
	// for this owner, either because it was never created or because it has
	// already been finalized.
	ErrNoSuchOperation = errors.New("no such operation")

	// ErrProviderUnavailable marks a failed or misconfigured provider call.
	ErrProviderUnavailable = errors.New("extraction provider unavailable")
)
