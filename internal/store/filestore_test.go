package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xasusq-eng/Kovers/internal/models"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := OpenFileStore(filepath.Join(t.TempDir(), "kovers-data.json"))
	if err != nil {
		t.Fatalf("OpenFileStore() error = %v", err)
	}
	return s
}

// tickingClock makes timestamps deterministic: every call advances by
// step.
func tickingClock(s *FileStore, start time.Time, step time.Duration) {
	current := start
	s.now = func() time.Time {
		current = current.Add(step)
		return current
	}
}

func addUser(t *testing.T, s *FileStore, name string) *models.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), name, "hash", false)
	if err != nil {
		t.Fatalf("CreateUser(%q) error = %v", name, err)
	}
	return u
}

func TestCreateUserDuplicate(t *testing.T) {
	s := newTestStore(t)
	addUser(t, s, "alice")

	if _, err := s.CreateUser(context.Background(), "alice", "otherhash", false); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("second CreateUser error = %v, want ErrUsernameTaken", err)
	}
}

func TestNewUserJoinsGeneralRoom(t *testing.T) {
	s := newTestStore(t)
	u := addUser(t, s, "alice")

	rooms, err := s.ListRoomsFor(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("ListRoomsFor() error = %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != SeedRoomID {
		t.Fatalf("rooms = %+v, want only the seeded general room", rooms)
	}

	// The seeded welcome message is readable right away.
	msgs, err := s.MessagesSince(context.Background(), SeedRoomID, u.ID, 0)
	if err != nil {
		t.Fatalf("MessagesSince() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d seed messages, want 1", len(msgs))
	}
}

func TestSessionSinglePerUser(t *testing.T) {
	s := newTestStore(t)
	u := addUser(t, s, "alice")
	ctx := context.Background()

	first, err := s.CreateSession(ctx, u.ID)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	second, err := s.CreateSession(ctx, u.ID)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	if _, err := s.GetSession(ctx, first.Token); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("old session should be invalidated, got err = %v", err)
	}
	if sess, err := s.GetSession(ctx, second.Token); err != nil || sess.UserID != u.ID {
		t.Errorf("new session lookup = (%+v, %v), want user %s", sess, err, u.ID)
	}
	if len(first.Token) < 32 {
		t.Errorf("token %q too short for 128 bits of entropy", first.Token)
	}
}

func TestDeleteSessionIdempotent(t *testing.T) {
	s := newTestStore(t)
	u := addUser(t, s, "alice")
	ctx := context.Background()

	sess, _ := s.CreateSession(ctx, u.ID)
	if err := s.DeleteSession(ctx, sess.Token); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	if err := s.DeleteSession(ctx, sess.Token); err != nil {
		t.Fatalf("repeated DeleteSession() error = %v, want nil", err)
	}
	if err := s.DeleteSession(ctx, "never-existed"); err != nil {
		t.Fatalf("DeleteSession(absent) error = %v, want nil", err)
	}
}

func TestCreateOrGetDMIdempotent(t *testing.T) {
	s := newTestStore(t)
	alice := addUser(t, s, "alice")
	bob := addUser(t, s, "bob")
	ctx := context.Background()

	r1, created, err := s.CreateOrGetDM(ctx, alice.ID, "bob")
	if err != nil || !created {
		t.Fatalf("first CreateOrGetDM = (%+v, %v, %v), want created", r1, created, err)
	}
	if r1.Name != "bob" {
		t.Errorf("alice's view of the DM is titled %q, want bob", r1.Name)
	}

	// Repeating from either side returns the same room, never a second one.
	r2, created, err := s.CreateOrGetDM(ctx, alice.ID, "bob")
	if err != nil || created || r2.ID != r1.ID {
		t.Fatalf("repeat CreateOrGetDM = (%s, %v, %v), want existing %s", r2.ID, created, err, r1.ID)
	}
	r3, created, err := s.CreateOrGetDM(ctx, bob.ID, "alice")
	if err != nil || created || r3.ID != r1.ID {
		t.Fatalf("reverse CreateOrGetDM = (%s, %v, %v), want existing %s", r3.ID, created, err, r1.ID)
	}
	if r3.Name != "alice" {
		t.Errorf("bob's view of the DM is titled %q, want alice", r3.Name)
	}
}

func TestCreateOrGetDMErrors(t *testing.T) {
	s := newTestStore(t)
	alice := addUser(t, s, "alice")
	ctx := context.Background()

	if _, _, err := s.CreateOrGetDM(ctx, alice.ID, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("DM with unknown user error = %v, want ErrUserNotFound", err)
	}
	if _, _, err := s.CreateOrGetDM(ctx, alice.ID, "alice"); !errors.Is(err, ErrSelfDM) {
		t.Errorf("DM with self error = %v, want ErrSelfDM", err)
	}
}

func TestCreateGroup(t *testing.T) {
	s := newTestStore(t)
	alice := addUser(t, s, "alice")
	bob := addUser(t, s, "bob")
	ctx := context.Background()

	if _, err := s.CreateGroup(ctx, alice.ID, "   ", nil); !errors.Is(err, ErrEmptyName) {
		t.Errorf("blank name error = %v, want ErrEmptyName", err)
	}

	// Unresolvable usernames are dropped; the creator is always a member.
	room, err := s.CreateGroup(ctx, alice.ID, "project", []string{"bob", "ghost", "alice"})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	if len(room.Members) != 2 || !room.HasMember(alice.ID) || !room.HasMember(bob.ID) {
		t.Errorf("members = %v, want alice and bob only", room.Members)
	}

	long := strings.Repeat("x", 60)
	room, err = s.CreateGroup(ctx, alice.ID, long, nil)
	if err != nil {
		t.Fatalf("CreateGroup(long name) error = %v", err)
	}
	if len(room.Name) != MaxRoomNameLen {
		t.Errorf("name length = %d, want truncated to %d", len(room.Name), MaxRoomNameLen)
	}
}

func TestListRoomsForMembershipOnly(t *testing.T) {
	s := newTestStore(t)
	alice := addUser(t, s, "alice")
	bob := addUser(t, s, "bob")
	ctx := context.Background()

	if _, err := s.CreateGroup(ctx, alice.ID, "private", nil); err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	rooms, err := s.ListRoomsFor(ctx, bob.ID)
	if err != nil {
		t.Fatalf("ListRoomsFor() error = %v", err)
	}
	for _, r := range rooms {
		if !r.HasMember(bob.ID) {
			t.Errorf("room %s listed for bob without membership", r.ID)
		}
		if r.Name == "private" {
			t.Errorf("bob can see alice's private room")
		}
	}
}

func TestAppendMessageValidation(t *testing.T) {
	s := newTestStore(t)
	alice := addUser(t, s, "alice")
	bob := addUser(t, s, "bob")
	ctx := context.Background()

	room, err := s.CreateGroup(ctx, alice.ID, "project", nil)
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	if _, err := s.AppendMessage(ctx, "missing-room", alice.ID, "hi"); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("unknown room error = %v, want ErrRoomNotFound", err)
	}
	if _, err := s.AppendMessage(ctx, room.ID, bob.ID, "hi"); !errors.Is(err, ErrNotMember) {
		t.Errorf("non-member error = %v, want ErrNotMember", err)
	}
	if _, err := s.AppendMessage(ctx, room.ID, alice.ID, "   "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("blank text error = %v, want ErrEmptyText", err)
	}

	msg, err := s.AppendMessage(ctx, room.ID, alice.ID, strings.Repeat("a", 2000))
	if err != nil {
		t.Fatalf("AppendMessage(long) error = %v", err)
	}
	if len(msg.Text) != MaxMessageLen {
		t.Errorf("text length = %d, want truncated to %d", len(msg.Text), MaxMessageLen)
	}
	if msg.Author != "alice" {
		t.Errorf("author = %q, want alice", msg.Author)
	}
}

func TestMessageCursor(t *testing.T) {
	s := newTestStore(t)
	alice := addUser(t, s, "alice")
	ctx := context.Background()

	room, err := s.CreateGroup(ctx, alice.ID, "project", nil)
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	tickingClock(s, time.UnixMilli(1_700_000_000_000), time.Millisecond)

	var msgs []*models.Message
	for _, text := range []string{"one", "two", "three"} {
		m, err := s.AppendMessage(ctx, room.ID, alice.ID, text)
		if err != nil {
			t.Fatalf("AppendMessage(%q) error = %v", text, err)
		}
		msgs = append(msgs, m)
	}
	if !(msgs[0].CreatedAt < msgs[1].CreatedAt && msgs[1].CreatedAt < msgs[2].CreatedAt) {
		t.Fatalf("timestamps not strictly increasing: %d %d %d",
			msgs[0].CreatedAt, msgs[1].CreatedAt, msgs[2].CreatedAt)
	}

	all, err := s.MessagesSince(ctx, room.ID, alice.ID, 0)
	if err != nil {
		t.Fatalf("MessagesSince(0) error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d messages, want 3", len(all))
	}

	// The cursor is strictly-greater: t1 yields exactly [t2, t3].
	tail, err := s.MessagesSince(ctx, room.ID, alice.ID, msgs[0].CreatedAt)
	if err != nil {
		t.Fatalf("MessagesSince(t1) error = %v", err)
	}
	if len(tail) != 2 || tail[0].ID != msgs[1].ID || tail[1].ID != msgs[2].ID {
		t.Fatalf("MessagesSince(t1) = %+v, want [two three]", tail)
	}

	// A cursor equal to the newest timestamp yields nothing.
	empty, err := s.MessagesSince(ctx, room.ID, alice.ID, msgs[2].CreatedAt)
	if err != nil {
		t.Fatalf("MessagesSince(t3) error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("MessagesSince(t3) = %d messages, want 0", len(empty))
	}
}

func TestMessagePageLimit(t *testing.T) {
	s := newTestStore(t)
	alice := addUser(t, s, "alice")
	ctx := context.Background()

	room, err := s.CreateGroup(ctx, alice.ID, "busy", nil)
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}
	tickingClock(s, time.UnixMilli(1_700_000_000_000), time.Millisecond)

	total := MessagePageSize + 5
	var last *models.Message
	for i := 0; i < total; i++ {
		if last, err = s.AppendMessage(ctx, room.ID, alice.ID, "m"); err != nil {
			t.Fatalf("AppendMessage() error = %v", err)
		}
	}

	msgs, err := s.MessagesSince(ctx, room.ID, alice.ID, 0)
	if err != nil {
		t.Fatalf("MessagesSince() error = %v", err)
	}
	if len(msgs) != MessagePageSize {
		t.Fatalf("got %d messages, want %d", len(msgs), MessagePageSize)
	}
	// The page keeps the most recent messages.
	if msgs[len(msgs)-1].ID != last.ID {
		t.Errorf("last message of page = %s, want newest %s", msgs[len(msgs)-1].ID, last.ID)
	}
}

func TestMessagesSinceHidesForeignRooms(t *testing.T) {
	s := newTestStore(t)
	alice := addUser(t, s, "alice")
	bob := addUser(t, s, "bob")
	ctx := context.Background()

	room, _ := s.CreateGroup(ctx, alice.ID, "private", nil)

	if _, err := s.MessagesSince(ctx, "missing", alice.ID, 0); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("unknown room error = %v, want ErrRoomNotFound", err)
	}
	// Non-members cannot tell the room exists.
	if _, err := s.MessagesSince(ctx, room.ID, bob.ID, 0); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("foreign room error = %v, want ErrRoomNotFound", err)
	}
}

func TestCallLifecycle(t *testing.T) {
	s := newTestStore(t)
	alice := addUser(t, s, "alice")
	bob := addUser(t, s, "bob")
	ctx := context.Background()

	room, err := s.CreateGroup(ctx, alice.ID, "standup", []string{"bob"})
	if err != nil {
		t.Fatalf("CreateGroup() error = %v", err)
	}

	call, created, err := s.StartCall(ctx, room.ID, alice.ID, models.CallVoice)
	if err != nil || !created {
		t.Fatalf("StartCall = (%+v, %v, %v), want created", call, created, err)
	}
	if call.Status != models.CallActive || len(call.Participants) != 1 || call.Participants[0] != "alice" {
		t.Fatalf("fresh call = %+v", call)
	}

	// Idempotent start: the active call is returned unchanged.
	again, created, err := s.StartCall(ctx, room.ID, bob.ID, models.CallVideo)
	if err != nil || created || again.ID != call.ID {
		t.Fatalf("second StartCall = (%s, %v, %v), want existing %s", again.ID, created, err, call.ID)
	}

	joined, err := s.JoinCall(ctx, call.ID, bob.ID)
	if err != nil {
		t.Fatalf("JoinCall() error = %v", err)
	}
	if len(joined.Participants) != 2 || joined.Participants[1] != "bob" {
		t.Fatalf("participants = %v, want [alice bob] in join order", joined.Participants)
	}
	// Joining twice is a no-op.
	joined, err = s.JoinCall(ctx, call.ID, bob.ID)
	if err != nil || len(joined.Participants) != 2 {
		t.Fatalf("repeat JoinCall = (%v, %v), want unchanged participants", joined.Participants, err)
	}

	active, err := s.ActiveCalls(ctx, room.ID, alice.ID)
	if err != nil || len(active) != 1 || active[0].ID != call.ID {
		t.Fatalf("ActiveCalls = (%+v, %v), want the one active call", active, err)
	}

	ended, err := s.EndCall(ctx, call.ID, alice.ID)
	if err != nil {
		t.Fatalf("EndCall() error = %v", err)
	}
	if ended.Status != models.CallEnded || ended.EndedAt == nil {
		t.Fatalf("ended call = %+v", ended)
	}

	active, err = s.ActiveCalls(ctx, room.ID, alice.ID)
	if err != nil || len(active) != 0 {
		t.Fatalf("ActiveCalls after end = (%+v, %v), want none", active, err)
	}

	// Ended calls read as not found for join and end alike.
	if _, err := s.JoinCall(ctx, call.ID, bob.ID); !errors.Is(err, ErrCallNotFound) {
		t.Errorf("join after end error = %v, want ErrCallNotFound", err)
	}
	if _, err := s.EndCall(ctx, call.ID, alice.ID); !errors.Is(err, ErrCallNotFound) {
		t.Errorf("end after end error = %v, want ErrCallNotFound", err)
	}

	// The room is free for a new call now.
	fresh, created, err := s.StartCall(ctx, room.ID, bob.ID, models.CallVideo)
	if err != nil || !created || fresh.ID == call.ID {
		t.Fatalf("new StartCall = (%s, %v, %v), want a fresh call", fresh.ID, created, err)
	}
}

func TestCallAuthorization(t *testing.T) {
	s := newTestStore(t)
	alice := addUser(t, s, "alice")
	outsider := addUser(t, s, "mallory")
	ctx := context.Background()

	room, _ := s.CreateGroup(ctx, alice.ID, "standup", nil)
	call, _, err := s.StartCall(ctx, room.ID, alice.ID, models.CallVoice)
	if err != nil {
		t.Fatalf("StartCall() error = %v", err)
	}

	if _, _, err := s.StartCall(ctx, room.ID, outsider.ID, models.CallVoice); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("outsider StartCall error = %v, want ErrRoomNotFound", err)
	}
	if _, err := s.JoinCall(ctx, call.ID, outsider.ID); !errors.Is(err, ErrNotInvited) {
		t.Errorf("outsider JoinCall error = %v, want ErrNotInvited", err)
	}
	if _, err := s.EndCall(ctx, call.ID, outsider.ID); !errors.Is(err, ErrNotInvited) {
		t.Errorf("outsider EndCall error = %v, want ErrNotInvited", err)
	}
	if _, err := s.ActiveCalls(ctx, room.ID, outsider.ID); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("outsider ActiveCalls error = %v, want ErrRoomNotFound", err)
	}
}

func TestSearchUsers(t *testing.T) {
	s := newTestStore(t)
	alice := addUser(t, s, "alice")
	addUser(t, s, "alina")
	addUser(t, s, "bob")
	ctx := context.Background()

	users, err := s.SearchUsers(ctx, "ali", alice.ID, 10)
	if err != nil {
		t.Fatalf("SearchUsers() error = %v", err)
	}
	if len(users) != 1 || users[0].Username != "alina" {
		t.Fatalf("results = %+v, want only alina (self excluded)", users)
	}

	if users, _ := s.SearchUsers(ctx, "", alice.ID, 10); len(users) != 0 {
		t.Errorf("empty query returned %d users, want 0", len(users))
	}

	for i := 0; i < 15; i++ {
		addUser(t, s, "user_"+string(rune('a'+i)))
	}
	if users, _ := s.SearchUsers(ctx, "user_", alice.ID, 10); len(users) != 10 {
		t.Errorf("got %d results, want the 10-result cap", len(users))
	}
}

func TestReloadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kovers-data.json")
	ctx := context.Background()

	s, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("OpenFileStore() error = %v", err)
	}
	alice := addUser(t, s, "alice")
	bob := addUser(t, s, "bob")
	sess, _ := s.CreateSession(ctx, alice.ID)
	dm, _, err := s.CreateOrGetDM(ctx, alice.ID, "bob")
	if err != nil {
		t.Fatalf("CreateOrGetDM() error = %v", err)
	}
	msg, err := s.AppendMessage(ctx, dm.ID, alice.ID, "hi bob")
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	call, _, err := s.StartCall(ctx, dm.ID, alice.ID, models.CallVideo)
	if err != nil {
		t.Fatalf("StartCall() error = %v", err)
	}

	// A second store over the same file observes identical state.
	reloaded, err := OpenFileStore(path)
	if err != nil {
		t.Fatalf("reload error = %v", err)
	}

	if u, err := reloaded.GetUserByName(ctx, "alice"); err != nil || u.ID != alice.ID {
		t.Errorf("reloaded alice = (%+v, %v)", u, err)
	}
	if got, err := reloaded.GetSession(ctx, sess.Token); err != nil || got.UserID != alice.ID {
		t.Errorf("reloaded session = (%+v, %v)", got, err)
	}
	room2, created, err := reloaded.CreateOrGetDM(ctx, bob.ID, "alice")
	if err != nil || created || room2.ID != dm.ID {
		t.Errorf("reloaded DM = (%s, %v, %v), want existing %s", room2.ID, created, err, dm.ID)
	}
	msgs, err := reloaded.MessagesSince(ctx, dm.ID, alice.ID, 0)
	if err != nil || len(msgs) != 1 || msgs[0].ID != msg.ID || msgs[0].Text != "hi bob" {
		t.Errorf("reloaded messages = (%+v, %v)", msgs, err)
	}
	active, err := reloaded.ActiveCalls(ctx, dm.ID, bob.ID)
	if err != nil || len(active) != 1 || active[0].ID != call.ID {
		t.Errorf("reloaded calls = (%+v, %v)", active, err)
	}
}

func TestCorruptDataFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kovers-data.json")
	if err := os.WriteFile(path, []byte("{ not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := OpenFileStore(path); err == nil {
		t.Fatal("OpenFileStore() on a corrupt file should fail, not reseed")
	}
}
