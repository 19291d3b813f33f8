package models

import "time"

// Session maps an opaque bearer token to a user. A user has at most one
// live session; logging in again replaces any previous one.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
