package models

import "time"

// User represents a registered account or a guest identity.
// Guests carry an empty password hash and cannot log in with a password.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash,omitempty"`
	Guest        bool      `json:"guest,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
