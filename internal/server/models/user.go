// Package models holds the server-side persistence records.
package models

import "time"

// User is a credential record from the identity store. The token subsystem
// reads it, never writes it. An empty PasswordHash means the account cannot
// log in with a password.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}
