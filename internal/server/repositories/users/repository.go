// Package users declares the read-side contract against the identity store.
// The token subsystem only ever looks up credential records; account
// provisioning lives elsewhere.
package users

import (
	"context"

	"github.com/carelink-app/carelink/internal/server/models"
)

// Repository provides credential lookup for the session service.
type Repository interface {
	// GetByEmail returns the user with the given already-normalized email,
	// or common.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the user by its opaque identifier, or
	// common.ErrNotFound. Used on refresh to re-read role and active state.
	GetByID(ctx context.Context, id string) (*models.User, error)
}
