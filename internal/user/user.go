// Package user defines the user account record used for authentication
// and short URL ownership.
package user

import "time"

// User represents a registered account.
//
// PasswordHash holds a bcrypt hash of the signup password; the plaintext is
// never stored. Email is globally unique, enforced by the storage layer.
type User struct {
	// ID is the unique identifier of the user, meaning a UUID.
	ID string

	Name         string
	Email        string
	PasswordHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}
