package api

import "errors"

var (
	// ErrNetwork marks a transport-level failure: the server could not be
	// reached or the connection broke mid-request. The caller's cached
	// session is still potentially good.
	ErrNetwork = errors.New("server unreachable")

	// ErrTimeout is a network failure where the deadline elapsed.
	ErrTimeout = errors.New("request timed out")

	// ErrUnauthorized marks a credential-level rejection: the server saw the
	// request and said no. Cached tokens are no longer usable.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDeviceMismatch is a credential-level rejection for a token bound to
	// a different device.
	ErrDeviceMismatch = errors.New("token bound to different device")

	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidResponse marks a reply the client could not interpret.
	ErrInvalidResponse = errors.New("invalid server response")
)
