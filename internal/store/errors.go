package store

import "errors"

// Sentinel errors returned by Store implementations. Handlers map these
// onto HTTP status codes and surface the message verbatim.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrSessionNotFound = errors.New("session not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrCallNotFound    = errors.New("call not found")

	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrEmptyName  = errors.New("room name is required")
	ErrEmptyText  = errors.New("message text is required")
	ErrSelfDM     = errors.New("cannot start a direct message with yourself")
	ErrNotMember  = errors.New("not a room member")
	ErrNotInvited = errors.New("caller is not a member of the call's room")
)
