// Package common defines shared constants and sentinel errors used across
// client and server layers of CareLink. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal = errors.New("internal error")

	// Login errors. Unknown email, inactive account and wrong password all
	// collapse into ErrInvalidCredentials so account existence never leaks.
	ErrInvalidDevice      = errors.New("invalid device id")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Refresh token lifecycle errors.
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenRevoked   = errors.New("token revoked")
	ErrDeviceMismatch = errors.New("device mismatch")
)
