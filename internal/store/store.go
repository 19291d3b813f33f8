package store

import (
	"context"

	"github.com/xasusq-eng/Kovers/internal/models"
)

// SeedRoomID is the fixed id of the "general" room created on first run.
// Every new user is added to it so the room list is never empty.
const SeedRoomID = "00000000-0000-0000-0000-000000000001"

// MessagePageSize is the maximum number of messages returned per poll.
const MessagePageSize = 200

// MaxMessageLen is the maximum message text length in runes.
const MaxMessageLen = 1500

// MaxRoomNameLen is the maximum group room name length in runes.
const MaxRoomNameLen = 40

// Store is the repository behind all request handling. FileStore is the
// default implementation; SQLiteStore demonstrates swapping in a
// transactional backend without changing callers.
//
// Implementations must serialize mutations relative to each other, and
// each mutation must be check-then-act atomic: two concurrent
// CreateOrGetDM calls for the same pair, or two concurrent StartCall
// calls for the same room, must never both create. Reads may run
// concurrently but always observe a consistent snapshot.
type Store interface {
	// Connection management
	Close() error
	Ping(ctx context.Context) error

	// Credential store
	CreateUser(ctx context.Context, username, passwordHash string, guest bool) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByName(ctx context.Context, username string) (*models.User, error)
	SearchUsers(ctx context.Context, q, excludeID string, limit int) ([]*models.User, error)

	// Session registry: one live session per user, destroy is idempotent.
	CreateSession(ctx context.Context, userID string) (*models.Session, error)
	GetSession(ctx context.Context, token string) (*models.Session, error)
	DeleteSession(ctx context.Context, token string) error

	// Room directory
	ListRoomsFor(ctx context.Context, userID string) ([]*models.Room, error)
	CreateGroup(ctx context.Context, creatorID, name string, memberUsernames []string) (*models.Room, error)
	// CreateOrGetDM reports whether the room was created by this call.
	CreateOrGetDM(ctx context.Context, userID, otherUsername string) (*models.Room, bool, error)
	GetRoom(ctx context.Context, id string) (*models.Room, error)

	// Message log: append-only, cursor is "created_at strictly greater".
	AppendMessage(ctx context.Context, roomID, authorID, text string) (*models.Message, error)
	MessagesSince(ctx context.Context, roomID, userID string, since int64) ([]*models.Message, error)

	// Call registry: at most one active call per room.
	// StartCall reports whether a new call was created; when an active
	// call already exists it is returned unchanged.
	StartCall(ctx context.Context, roomID, userID string, callType models.CallType) (*models.Call, bool, error)
	JoinCall(ctx context.Context, callID, userID string) (*models.Call, error)
	EndCall(ctx context.Context, callID, userID string) (*models.Call, error)
	ActiveCalls(ctx context.Context, roomID, userID string) ([]*models.Call, error)
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
