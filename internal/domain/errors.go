package domain

import "errors"

var (
	// ErrRemoteUnavailable means the backing document store is unreachable or not configured.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	// ErrAuthRequired means the operation needs a signed-in identity.
	ErrAuthRequired = errors.New("authentication required")
	// ErrParseFailure marks corrupt locally persisted data. It is always recovered by
	// resetting to an empty default and never reaches a caller.
	ErrParseFailure = errors.New("corrupt persisted data")

	ErrProviderUnavailable = errors.New("auth provider unavailable")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserNotFound        = errors.New("user not found")
	ErrEmailInUse          = errors.New("email already in use")

	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidInput    = errors.New("invalid input")
	ErrMovieNotFound   = errors.New("movie not found")
)
