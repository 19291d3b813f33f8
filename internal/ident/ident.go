// Package ident generates the opaque identifiers used across the store.
package ident

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewID returns a time-ordered UUID v7 string for users, rooms and calls.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// NewMessageID returns a ULID string. ULIDs sort lexicographically in
// creation order, which keeps the message log stable under equal
// timestamps.
func NewMessageID() string {
	return ulid.Make().String()
}

// NewToken returns a 256-bit session token in hex.
func NewToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err) // crypto/rand never fails on supported platforms
	}
	return hex.EncodeToString(b)
}
