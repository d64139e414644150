// Package refreshtokens declares the server-side contract for the
// refresh-token store: one record per issued refresh token, keyed by jti,
// retained (never deleted) through revocation for audit and replay
// detection.
package refreshtokens

import (
	"context"
	"time"

	"github.com/carelink-app/carelink/internal/server/models"
)

// Repository defines the refresh-token store operations.
//
// FindByJTI returns records in every state; interpreting revocation and
// expiry is the caller's job so that not-found, revoked and expired stay
// distinguishable failure reasons.
type Repository interface {
	// Create inserts a new active record. Revoking any prior record for the
	// same (user, device) is the caller's responsibility.
	Create(ctx context.Context, rec *models.RefreshToken) error

	// FindByJTI returns the record for jti regardless of revocation or
	// expiry state, or common.ErrNotFound.
	FindByJTI(ctx context.Context, jti string) (*models.RefreshToken, error)

	// MarkRevoked revokes the record and optionally links its replacement.
	// Idempotent: revoking an already-revoked record is a no-op returning
	// false. An empty replacedByJTI stores NULL.
	MarkRevoked(ctx context.Context, jti string, revokedAt time.Time, replacedByJTI string) (bool, error)

	// TouchLastUsed records usage time, best-effort. Returns false when the
	// record no longer exists.
	TouchLastUsed(ctx context.Context, jti string, at time.Time) (bool, error)

	// RevokeByDevice revokes all active records for (user, device) and
	// returns how many it revoked.
	RevokeByDevice(ctx context.Context, userID, deviceID string, revokedAt time.Time) (int64, error)

	// RevokeAllForUser revokes every active record the user has, on any
	// device, and returns how many it revoked.
	RevokeAllForUser(ctx context.Context, userID string, revokedAt time.Time) (int64, error)
}
