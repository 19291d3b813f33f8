package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/xasusq-eng/Kovers/internal/ident"
	"github.com/xasusq-eng/Kovers/internal/models"
)

// SQLiteStore implements Store on an embedded SQLite database. It exists
// to show the repository swap the file store's callers never notice:
// the uniqueness invariants move from a global lock into the schema.
// DM rooms carry a canonical sorted-pair key under a UNIQUE index, and a
// partial unique index allows at most one active call per room, so
// check-then-act races resolve as constraint conflicts instead.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLiteStore opens (or creates) the database at dbPath and
// initializes the schema and seed data.
func OpenSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		guest INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		dm_key TEXT UNIQUE,
		created_by TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS room_members (
		room_id TEXT NOT NULL REFERENCES rooms(id),
		user_id TEXT NOT NULL,
		PRIMARY KEY (room_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		author_id TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages(room_id, created_at);

	CREATE TABLE IF NOT EXISTS calls (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL REFERENCES rooms(id),
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER
	);
	CREATE UNIQUE INDEX IF NOT EXISTS ux_calls_active_room ON calls(room_id) WHERE status = 'active';

	CREATE TABLE IF NOT EXISTS call_participants (
		call_id TEXT NOT NULL REFERENCES calls(id),
		username TEXT NOT NULL,
		pos INTEGER NOT NULL,
		PRIMARY KEY (call_id, username)
	);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Seed the general room and its welcome message once.
	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO rooms (id, type, name, created_at) VALUES (?, 'group', 'general', ?)
	`, SeedRoomID, s.now().UTC()); err != nil {
		return err
	}
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE room_id = ?`, SeedRoomID).Scan(&count); err != nil {
		return err
	}
	if count == 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO messages (id, room_id, author, text, created_at) VALUES (?, ?, 'kovers', ?, ?)
		`, ident.NewMessageID(), SeedRoomID, "Welcome to Kovers. Say hi in #general.", s.now().UnixMilli())
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint
}

// --- credential store ---

func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string, guest bool) (*models.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	u := &models.User{
		ID:           ident.NewID(),
		Username:     username,
		PasswordHash: passwordHash,
		Guest:        guest,
		CreatedAt:    s.now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, guest, created_at) VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Username, u.PasswordHash, boolToInt(u.Guest), u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO room_members (room_id, user_id) VALUES (?, ?)
	`, SeedRoomID, u.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, guest, created_at FROM users WHERE id = ?
	`, id))
}

func (s *SQLiteStore) GetUserByName(ctx context.Context, username string) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, guest, created_at FROM users WHERE username = ?
	`, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var guest int
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &guest, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Guest = guest != 0
	return u, nil
}

func (s *SQLiteStore) SearchUsers(ctx context.Context, q, excludeID string, limit int) ([]*models.User, error) {
	out := []*models.User{}
	if q == "" {
		return out, nil
	}

	// instr avoids LIKE wildcard injection via the query string.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, password_hash, guest, created_at FROM users
		WHERE instr(username, ?) > 0 AND id != ?
		ORDER BY rowid LIMIT ?
	`, q, excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		u := &models.User{}
		var guest int
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &guest, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Guest = guest != 0
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- session registry ---

func (s *SQLiteStore) CreateSession(ctx context.Context, userID string) (*models.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	// One live session per user.
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, userID); err != nil {
		return nil, err
	}

	sess := &models.Session{
		Token:     ident.NewToken(),
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at) VALUES (?, ?, ?)
	`, sess.Token, sess.UserID, sess.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	sess := &models.Session{}
	err := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, created_at FROM sessions WHERE token = ?
	`, token).Scan(&sess.Token, &sess.UserID, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *SQLiteStore) DeleteSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// --- room directory ---

func (s *SQLiteStore) ListRoomsFor(ctx context.Context, userID string) ([]*models.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.type, r.name, r.created_by, r.created_at
		FROM rooms r JOIN room_members m ON m.room_id = r.id
		WHERE m.user_id = ?
		ORDER BY r.rowid
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.Room{}
	for rows.Next() {
		r := &models.Room{}
		if err := rows.Scan(&r.ID, &r.Type, &r.Name, &r.CreatedBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range out {
		if r.Members, err = s.roomMembers(ctx, r.ID); err != nil {
			return nil, err
		}
		if r.Type == models.RoomDM {
			if err := s.setDMTitle(ctx, r, userID); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (s *SQLiteStore) roomMembers(ctx context.Context, roomID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM room_members WHERE room_id = ? ORDER BY rowid
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}
	return members, rows.Err()
}

// setDMTitle substitutes the counterpart's username as the room name.
func (s *SQLiteStore) setDMTitle(ctx context.Context, r *models.Room, viewerID string) error {
	err := s.db.QueryRowContext(ctx, `
		SELECT u.username FROM room_members m JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ? AND m.user_id != ?
	`, r.ID, viewerID).Scan(&r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

func (s *SQLiteStore) CreateGroup(ctx context.Context, creatorID, name string, memberUsernames []string) (*models.Room, error) {
	name = truncateRunes(strings.TrimSpace(name), MaxRoomNameLen)
	if name == "" {
		return nil, ErrEmptyName
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	members := []string{creatorID}
	for _, candidate := range memberUsernames {
		var id string
		err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`,
			strings.ToLower(strings.TrimSpace(candidate))).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			continue // unresolvable usernames are dropped
		}
		if err != nil {
			return nil, err
		}
		if !containsString(members, id) {
			members = append(members, id)
		}
	}

	r := &models.Room{
		ID:        ident.NewID(),
		Type:      models.RoomGroup,
		Name:      name,
		Members:   members,
		CreatedBy: creatorID,
		CreatedAt: s.now().UTC(),
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (id, type, name, created_by, created_at) VALUES (?, 'group', ?, ?, ?)
	`, r.ID, r.Name, r.CreatedBy, r.CreatedAt); err != nil {
		return nil, err
	}
	for _, id := range members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO room_members (room_id, user_id) VALUES (?, ?)
		`, r.ID, id); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) CreateOrGetDM(ctx context.Context, userID, otherUsername string) (*models.Room, bool, error) {
	var otherID string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, otherUsername).Scan(&otherID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrUserNotFound
	}
	if err != nil {
		return nil, false, err
	}
	if otherID == userID {
		return nil, false, ErrSelfDM
	}

	key := pairKey(userID, otherID)

	if r, err := s.dmByKey(ctx, key, otherUsername); err == nil {
		return r, false, nil
	} else if !errors.Is(err, ErrRoomNotFound) {
		return nil, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	r := &models.Room{
		ID:        ident.NewID(),
		Type:      models.RoomDM,
		Name:      otherUsername,
		Members:   []string{userID, otherID},
		CreatedBy: userID,
		CreatedAt: s.now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO rooms (id, type, dm_key, created_by, created_at) VALUES (?, 'dm', ?, ?, ?)
	`, r.ID, key, r.CreatedBy, r.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Lost the insert-if-absent race: the winner's room is it.
			existing, serr := s.dmByKey(ctx, key, otherUsername)
			return existing, false, serr
		}
		return nil, false, err
	}
	for _, id := range r.Members {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO room_members (room_id, user_id) VALUES (?, ?)
		`, r.ID, id); err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (s *SQLiteStore) dmByKey(ctx context.Context, key, title string) (*models.Room, error) {
	r := &models.Room{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, created_by, created_at FROM rooms WHERE dm_key = ?
	`, key).Scan(&r.ID, &r.Type, &r.CreatedBy, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	r.Name = title
	if r.Members, err = s.roomMembers(ctx, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	r := &models.Room{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, name, created_by, created_at FROM rooms WHERE id = ?
	`, id).Scan(&r.ID, &r.Type, &r.Name, &r.CreatedBy, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.Members, err = s.roomMembers(ctx, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteStore) isMember(ctx context.Context, q queryer, roomID, userID string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM room_members WHERE room_id = ? AND user_id = ?
	`, roomID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- message log ---

func (s *SQLiteStore) AppendMessage(ctx context.Context, roomID, authorID, text string) (*models.Message, error) {
	text = truncateRunes(strings.TrimSpace(text), MaxMessageLen)
	if text == "" {
		return nil, ErrEmptyText
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var roomType string
	err = tx.QueryRowContext(ctx, `SELECT type FROM rooms WHERE id = ?`, roomID).Scan(&roomType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	member, err := s.isMember(ctx, tx, roomID, authorID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrNotMember
	}

	var author string
	err = tx.QueryRowContext(ctx, `SELECT username FROM users WHERE id = ?`, authorID).Scan(&author)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	// Keep per-room timestamps non-decreasing for cursor stability.
	var last int64
	if err := tx.QueryRowContext(ctx, `
		SELECT IFNULL(MAX(created_at), 0) FROM messages WHERE room_id = ?
	`, roomID).Scan(&last); err != nil {
		return nil, err
	}
	ts := s.now().UnixMilli()
	if ts < last {
		ts = last
	}

	m := &models.Message{
		ID:        ident.NewMessageID(),
		RoomID:    roomID,
		AuthorID:  authorID,
		Author:    author,
		Text:      text,
		CreatedAt: ts,
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, room_id, author_id, author, text, created_at) VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.RoomID, m.AuthorID, m.Author, m.Text, m.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLiteStore) MessagesSince(ctx context.Context, roomID, userID string, since int64) ([]*models.Message, error) {
	member, err := s.isMember(ctx, s.db, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrRoomNotFound
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, author_id, author, text, created_at FROM messages
		WHERE room_id = ? AND created_at > ?
		ORDER BY created_at, rowid
	`, roomID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.Message{}
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.RoomID, &m.AuthorID, &m.Author, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) > MessagePageSize {
		out = out[len(out)-MessagePageSize:]
	}
	return out, nil
}

// --- call registry ---

func (s *SQLiteStore) StartCall(ctx context.Context, roomID, userID string, callType models.CallType) (*models.Call, bool, error) {
	member, err := s.isMember(ctx, s.db, roomID, userID)
	if err != nil {
		return nil, false, err
	}
	if !member {
		return nil, false, ErrRoomNotFound
	}

	var username string
	err = s.db.QueryRowContext(ctx, `SELECT username FROM users WHERE id = ?`, userID).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, ErrUserNotFound
	}
	if err != nil {
		return nil, false, err
	}

	if existing, err := s.activeCallByRoom(ctx, roomID); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, ErrCallNotFound) {
		return nil, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	c := &models.Call{
		ID:           ident.NewID(),
		RoomID:       roomID,
		Type:         callType,
		Status:       models.CallActive,
		Participants: []string{username},
		StartedAt:    s.now().UnixMilli(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO calls (id, room_id, type, status, started_at) VALUES (?, ?, ?, 'active', ?)
	`, c.ID, c.RoomID, c.Type, c.StartedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Another start won; the partial unique index enforced the
			// one-active-call invariant.
			existing, serr := s.activeCallByRoom(ctx, roomID)
			return existing, false, serr
		}
		return nil, false, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO call_participants (call_id, username, pos) VALUES (?, ?, 0)
	`, c.ID, username); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (s *SQLiteStore) JoinCall(ctx context.Context, callID, userID string) (*models.Call, error) {
	username, err := s.authorizeCall(ctx, callID, userID)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO call_participants (call_id, username, pos)
		VALUES (?, ?, (SELECT COUNT(*) FROM call_participants WHERE call_id = ?))
	`, callID, username, callID); err != nil {
		return nil, err
	}
	return s.loadCall(ctx, callID)
}

func (s *SQLiteStore) EndCall(ctx context.Context, callID, userID string) (*models.Call, error) {
	if _, err := s.authorizeCall(ctx, callID, userID); err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE calls SET status = 'ended', ended_at = ? WHERE id = ? AND status = 'active'
	`, s.now().UnixMilli(), callID); err != nil {
		return nil, err
	}
	return s.loadCall(ctx, callID)
}

// authorizeCall resolves an active call and checks the caller belongs to
// its room, returning the caller's username. Ended calls are not found.
func (s *SQLiteStore) authorizeCall(ctx context.Context, callID, userID string) (string, error) {
	var roomID string
	err := s.db.QueryRowContext(ctx, `
		SELECT room_id FROM calls WHERE id = ? AND status = 'active'
	`, callID).Scan(&roomID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrCallNotFound
	}
	if err != nil {
		return "", err
	}

	member, err := s.isMember(ctx, s.db, roomID, userID)
	if err != nil {
		return "", err
	}
	if !member {
		return "", ErrNotInvited
	}

	var username string
	err = s.db.QueryRowContext(ctx, `SELECT username FROM users WHERE id = ?`, userID).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return username, err
}

func (s *SQLiteStore) ActiveCalls(ctx context.Context, roomID, userID string) ([]*models.Call, error) {
	member, err := s.isMember(ctx, s.db, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, ErrRoomNotFound
	}

	out := []*models.Call{}
	c, err := s.activeCallByRoom(ctx, roomID)
	if errors.Is(err, ErrCallNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	return append(out, c), nil
}

func (s *SQLiteStore) activeCallByRoom(ctx context.Context, roomID string) (*models.Call, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM calls WHERE room_id = ? AND status = 'active'
	`, roomID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCallNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.loadCall(ctx, id)
}

func (s *SQLiteStore) loadCall(ctx context.Context, callID string) (*models.Call, error) {
	c := &models.Call{}
	var endedAt sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, room_id, type, status, started_at, ended_at FROM calls WHERE id = ?
	`, callID).Scan(&c.ID, &c.RoomID, &c.Type, &c.Status, &c.StartedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCallNotFound
	}
	if err != nil {
		return nil, err
	}
	if endedAt.Valid {
		c.EndedAt = &endedAt.Int64
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT username FROM call_participants WHERE call_id = ? ORDER BY pos, rowid
	`, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Participants = []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		c.Participants = append(c.Participants, name)
	}
	return c, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
