package models

import "time"

// RefreshToken is one refresh-token record, keyed by JTI. TokenHash is a
// SHA-256 digest of the signed token; the raw token is never stored.
// Records are never hard-deleted: revoked rows stay for audit and replay
// detection, linked to their replacement through ReplacedByJTI.
type RefreshToken struct {
	JTI           string
	UserID        string
	DeviceID      string
	TokenHash     string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	LastUsedAt    *time.Time
	RevokedAt     *time.Time
	ReplacedByJTI *string
}

// Revoked reports whether the record has left the active state.
func (t *RefreshToken) Revoked() bool {
	return t.RevokedAt != nil
}
