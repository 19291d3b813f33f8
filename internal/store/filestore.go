package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xasusq-eng/Kovers/internal/ident"
	"github.com/xasusq-eng/Kovers/internal/metrics"
	"github.com/xasusq-eng/Kovers/internal/models"
)

// fileState is the persisted document: every collection, top level,
// rewritten wholesale on each mutation.
type fileState struct {
	Users    []*models.User    `json:"users"`
	Sessions []*models.Session `json:"sessions"`
	Rooms    []*models.Room    `json:"rooms"`
	Messages []*models.Message `json:"messages"`
	Calls    []*models.Call    `json:"calls"`
}

// FileStore keeps everything in memory behind one RWMutex and flushes
// the whole state to a JSON file after every mutation. Mutations are
// fully serialized, which makes the check-then-act sequences (DM
// uniqueness, single active call per room) atomic. Reads hold the read
// lock and return copies of mutable entities, never interior pointers.
type FileStore struct {
	path string
	now  func() time.Time // overridable in tests

	mu    sync.RWMutex
	state fileState

	usersByID   map[string]*models.User
	usersByName map[string]*models.User
	sessions    map[string]*models.Session
	rooms       map[string]*models.Room
	calls       map[string]*models.Call
	msgsByRoom  map[string][]*models.Message
	dmByPair    map[string]*models.Room // key: sorted "idA|idB"
	activeCall  map[string]*models.Call // roomID -> active call
	lastMsgTS   map[string]int64        // roomID -> last assigned created_at
}

// OpenFileStore loads the data file, seeding a fresh store on first run.
// A file that exists but cannot be parsed is a fatal startup error;
// there is no schema versioning or partial-corruption recovery.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &FileStore{path: path, now: time.Now}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		s.state = seedState(s.now)
		s.reindex()
		if err := s.flushLocked(); err != nil {
			return nil, fmt.Errorf("write seed data file: %w", err)
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read data file %s: %w", path, err)
	}

	if err := json.Unmarshal(raw, &s.state); err != nil {
		return nil, fmt.Errorf("data file %s is not valid JSON: %w", path, err)
	}
	s.reindex()
	return s, nil
}

func seedState(now func() time.Time) fileState {
	general := &models.Room{
		ID:        SeedRoomID,
		Type:      models.RoomGroup,
		Name:      "general",
		Members:   []string{},
		CreatedAt: now().UTC(),
	}
	welcome := &models.Message{
		ID:        ident.NewMessageID(),
		RoomID:    SeedRoomID,
		Author:    "kovers",
		Text:      "Welcome to Kovers. Say hi in #general.",
		CreatedAt: now().UnixMilli(),
	}
	return fileState{
		Users:    []*models.User{},
		Sessions: []*models.Session{},
		Rooms:    []*models.Room{general},
		Messages: []*models.Message{welcome},
		Calls:    []*models.Call{},
	}
}

// reindex rebuilds the lookup maps from the flat state.
func (s *FileStore) reindex() {
	s.usersByID = make(map[string]*models.User, len(s.state.Users))
	s.usersByName = make(map[string]*models.User, len(s.state.Users))
	for _, u := range s.state.Users {
		s.usersByID[u.ID] = u
		s.usersByName[u.Username] = u
	}

	s.sessions = make(map[string]*models.Session, len(s.state.Sessions))
	for _, sess := range s.state.Sessions {
		s.sessions[sess.Token] = sess
	}

	s.rooms = make(map[string]*models.Room, len(s.state.Rooms))
	s.dmByPair = make(map[string]*models.Room)
	for _, r := range s.state.Rooms {
		s.rooms[r.ID] = r
		if r.Type == models.RoomDM && len(r.Members) == 2 {
			s.dmByPair[pairKey(r.Members[0], r.Members[1])] = r
		}
	}

	s.msgsByRoom = make(map[string][]*models.Message)
	s.lastMsgTS = make(map[string]int64)
	for _, m := range s.state.Messages {
		s.msgsByRoom[m.RoomID] = append(s.msgsByRoom[m.RoomID], m)
		if m.CreatedAt > s.lastMsgTS[m.RoomID] {
			s.lastMsgTS[m.RoomID] = m.CreatedAt
		}
	}

	s.calls = make(map[string]*models.Call, len(s.state.Calls))
	s.activeCall = make(map[string]*models.Call)
	for _, c := range s.state.Calls {
		s.calls[c.ID] = c
		if c.Status == models.CallActive {
			s.activeCall[c.RoomID] = c
		}
	}
}

// flushLocked serializes the whole store and overwrites the data file.
// Callers must hold the write lock. The write is not atomic: a crash
// mid-write can corrupt the file. A failed flush leaves memory ahead of
// disk until the next successful one; the error is surfaced, not retried.
func (s *FileStore) flushLocked() error {
	start := time.Now()
	data, err := json.MarshalIndent(&s.state, "", "  ")
	if err == nil {
		err = os.WriteFile(s.path, data, 0o644)
	}
	metrics.StoreFlushDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StoreFlushErrors.Inc()
		return fmt.Errorf("flush data file: %w", err)
	}
	return nil
}

// Close implements Store. The file is already durable after every
// mutation, so there is nothing to do.
func (s *FileStore) Close() error { return nil }

// Ping verifies the data file is still reachable.
func (s *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// --- credential store ---

func (s *FileStore) CreateUser(ctx context.Context, username, passwordHash string, guest bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.usersByName[username]; taken {
		return nil, ErrUsernameTaken
	}

	u := &models.User{
		ID:           ident.NewID(),
		Username:     username,
		PasswordHash: passwordHash,
		Guest:        guest,
		CreatedAt:    s.now().UTC(),
	}
	s.state.Users = append(s.state.Users, u)
	s.usersByID[u.ID] = u
	s.usersByName[u.Username] = u

	// New users join the seeded general room so their room list starts
	// non-empty.
	if general, ok := s.rooms[SeedRoomID]; ok && !general.HasMember(u.ID) {
		general.Members = append(general.Members, u.ID)
	}

	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return cloneUser(u), nil
}

func (s *FileStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *FileStore) GetUserByName(ctx context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByName[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *FileStore) SearchUsers(ctx context.Context, q, excludeID string, limit int) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.User{}
	if q == "" {
		return out, nil
	}
	for _, u := range s.state.Users {
		if u.ID == excludeID || !strings.Contains(u.Username, q) {
			continue
		}
		out = append(out, cloneUser(u))
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- session registry ---

func (s *FileStore) CreateSession(ctx context.Context, userID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[userID]; !ok {
		return nil, ErrUserNotFound
	}

	// A new login invalidates any prior session for the user.
	kept := s.state.Sessions[:0]
	for _, sess := range s.state.Sessions {
		if sess.UserID == userID {
			delete(s.sessions, sess.Token)
			continue
		}
		kept = append(kept, sess)
	}
	s.state.Sessions = kept

	sess := &models.Session{
		Token:     ident.NewToken(),
		UserID:    userID,
		CreatedAt: s.now().UTC(),
	}
	s.state.Sessions = append(s.state.Sessions, sess)
	s.sessions[sess.Token] = sess

	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return &models.Session{Token: sess.Token, UserID: sess.UserID, CreatedAt: sess.CreatedAt}, nil
}

func (s *FileStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &models.Session{Token: sess.Token, UserID: sess.UserID, CreatedAt: sess.CreatedAt}, nil
}

// DeleteSession is a no-op for absent tokens.
func (s *FileStore) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return nil
	}
	delete(s.sessions, token)
	kept := s.state.Sessions[:0]
	for _, sess := range s.state.Sessions {
		if sess.Token != token {
			kept = append(kept, sess)
		}
	}
	s.state.Sessions = kept
	return s.flushLocked()
}

// --- room directory ---

// ListRoomsFor returns the caller's rooms in creation order. DM rooms
// are titled with the other member's username.
func (s *FileStore) ListRoomsFor(ctx context.Context, userID string) ([]*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*models.Room{}
	for _, r := range s.state.Rooms {
		if !r.HasMember(userID) {
			continue
		}
		out = append(out, s.renderRoom(r, userID))
	}
	return out, nil
}

// renderRoom clones r, substituting the counterpart's username as the
// title for DM rooms. Callers must hold at least the read lock.
func (s *FileStore) renderRoom(r *models.Room, viewerID string) *models.Room {
	c := cloneRoom(r)
	if r.Type != models.RoomDM {
		return c
	}
	for _, id := range r.Members {
		if id == viewerID {
			continue
		}
		if other, ok := s.usersByID[id]; ok {
			c.Name = other.Username
		}
	}
	return c
}

func (s *FileStore) CreateGroup(ctx context.Context, creatorID, name string, memberUsernames []string) (*models.Room, error) {
	name = truncateRunes(strings.TrimSpace(name), MaxRoomNameLen)
	if name == "" {
		return nil, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByID[creatorID]; !ok {
		return nil, ErrUserNotFound
	}

	// Membership is the creator plus whichever usernames resolve;
	// unresolvable names are silently dropped.
	members := []string{creatorID}
	for _, candidate := range memberUsernames {
		u, ok := s.usersByName[strings.ToLower(strings.TrimSpace(candidate))]
		if !ok || u.ID == creatorID {
			continue
		}
		if !containsString(members, u.ID) {
			members = append(members, u.ID)
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
	s.state.Rooms = append(s.state.Rooms, r)
	s.rooms[r.ID] = r

	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return cloneRoom(r), nil
}

func (s *FileStore) CreateOrGetDM(ctx context.Context, userID, otherUsername string) (*models.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	caller, ok := s.usersByID[userID]
	if !ok {
		return nil, false, ErrUserNotFound
	}
	other, ok := s.usersByName[otherUsername]
	if !ok {
		return nil, false, ErrUserNotFound
	}
	if other.ID == caller.ID {
		return nil, false, ErrSelfDM
	}

	// The whole check-and-create runs under the store lock, so two
	// concurrent requests for the same pair cannot both create.
	key := pairKey(caller.ID, other.ID)
	if existing, ok := s.dmByPair[key]; ok {
		return s.renderRoom(existing, userID), false, nil
	}

	r := &models.Room{
		ID:        ident.NewID(),
		Type:      models.RoomDM,
		Members:   []string{caller.ID, other.ID},
		CreatedBy: caller.ID,
		CreatedAt: s.now().UTC(),
	}
	s.state.Rooms = append(s.state.Rooms, r)
	s.rooms[r.ID] = r
	s.dmByPair[key] = r

	if err := s.flushLocked(); err != nil {
		return nil, false, err
	}
	return s.renderRoom(r, userID), true, nil
}

func (s *FileStore) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return cloneRoom(r), nil
}

// --- message log ---

func (s *FileStore) AppendMessage(ctx context.Context, roomID, authorID, text string) (*models.Message, error) {
	text = truncateRunes(strings.TrimSpace(text), MaxMessageLen)
	if text == "" {
		return nil, ErrEmptyText
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if !room.HasMember(authorID) {
		return nil, ErrNotMember
	}
	author, ok := s.usersByID[authorID]
	if !ok {
		return nil, ErrUserNotFound
	}

	// Timestamps are non-decreasing within a room so they work as a
	// cursor. Messages landing in the same millisecond keep insertion
	// order but are indistinguishable to the strictly-greater cursor.
	ts := s.now().UnixMilli()
	if last := s.lastMsgTS[roomID]; ts < last {
		ts = last
	}

	m := &models.Message{
		ID:        ident.NewMessageID(),
		RoomID:    roomID,
		AuthorID:  authorID,
		Author:    author.Username,
		Text:      text,
		CreatedAt: ts,
	}
	s.state.Messages = append(s.state.Messages, m)
	s.msgsByRoom[roomID] = append(s.msgsByRoom[roomID], m)
	s.lastMsgTS[roomID] = ts

	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return m, nil
}

// MessagesSince returns room messages with created_at strictly greater
// than since (all of them when since is zero), truncated to the most
// recent MessagePageSize. Unknown rooms and rooms the caller is not a
// member of are both reported as not found.
func (s *FileStore) MessagesSince(ctx context.Context, roomID, userID string, since int64) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok || !room.HasMember(userID) {
		return nil, ErrRoomNotFound
	}

	all := s.msgsByRoom[roomID]
	// Messages are appended in timestamp order, so the first match
	// starts the window.
	start := sort.Search(len(all), func(i int) bool { return all[i].CreatedAt > since })
	matched := all[start:]
	if len(matched) > MessagePageSize {
		matched = matched[len(matched)-MessagePageSize:]
	}

	out := make([]*models.Message, len(matched))
	copy(out, matched) // messages are immutable, sharing pointers is safe
	return out, nil
}

// --- call registry ---

func (s *FileStore) StartCall(ctx context.Context, roomID, userID string, callType models.CallType) (*models.Call, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok || !room.HasMember(userID) {
		return nil, false, ErrRoomNotFound
	}
	caller, ok := s.usersByID[userID]
	if !ok {
		return nil, false, ErrUserNotFound
	}

	// Idempotent start: an active call is returned unchanged so two
	// racing starts can never violate "one active call per room".
	if existing, ok := s.activeCall[roomID]; ok {
		return cloneCall(existing), false, nil
	}

	c := &models.Call{
		ID:           ident.NewID(),
		RoomID:       roomID,
		Type:         callType,
		Status:       models.CallActive,
		Participants: []string{caller.Username},
		StartedAt:    s.now().UnixMilli(),
	}
	s.state.Calls = append(s.state.Calls, c)
	s.calls[c.ID] = c
	s.activeCall[roomID] = c

	if err := s.flushLocked(); err != nil {
		return nil, false, err
	}
	return cloneCall(c), true, nil
}

func (s *FileStore) JoinCall(ctx context.Context, callID, userID string) (*models.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, user, err := s.activeCallForUpdate(callID, userID)
	if err != nil {
		return nil, err
	}

	if !c.HasParticipant(user.Username) {
		c.Participants = append(c.Participants, user.Username)
		if err := s.flushLocked(); err != nil {
			return nil, err
		}
	}
	return cloneCall(c), nil
}

func (s *FileStore) EndCall(ctx context.Context, callID, userID string) (*models.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, _, err := s.activeCallForUpdate(callID, userID)
	if err != nil {
		return nil, err
	}

	endedAt := s.now().UnixMilli()
	c.Status = models.CallEnded
	c.EndedAt = &endedAt
	delete(s.activeCall, c.RoomID)

	if err := s.flushLocked(); err != nil {
		return nil, err
	}
	return cloneCall(c), nil
}

// activeCallForUpdate resolves an active call and authorizes userID
// against the call's room. Ended calls read as not found. Callers must
// hold the write lock.
func (s *FileStore) activeCallForUpdate(callID, userID string) (*models.Call, *models.User, error) {
	c, ok := s.calls[callID]
	if !ok || c.Status != models.CallActive {
		return nil, nil, ErrCallNotFound
	}
	room, ok := s.rooms[c.RoomID]
	if !ok {
		return nil, nil, ErrCallNotFound
	}
	if !room.HasMember(userID) {
		return nil, nil, ErrNotInvited
	}
	user, ok := s.usersByID[userID]
	if !ok {
		return nil, nil, ErrUserNotFound
	}
	return c, user, nil
}

func (s *FileStore) ActiveCalls(ctx context.Context, roomID, userID string) ([]*models.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok || !room.HasMember(userID) {
		return nil, ErrRoomNotFound
	}

	out := []*models.Call{}
	if c, ok := s.activeCall[roomID]; ok {
		out = append(out, cloneCall(c))
	}
	return out, nil
}

// --- helpers ---

func cloneUser(u *models.User) *models.User {
	c := *u
	return &c
}

func cloneRoom(r *models.Room) *models.Room {
	c := *r
	c.Members = append([]string(nil), r.Members...)
	return &c
}

func cloneCall(call *models.Call) *models.Call {
	c := *call
	c.Participants = append([]string(nil), call.Participants...)
	if call.EndedAt != nil {
		ended := *call.EndedAt
		c.EndedAt = &ended
	}
	return &c
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
