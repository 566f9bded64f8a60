package lobby

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicehall/internal/game"
	"dicehall/internal/joinreq"
	"dicehall/internal/protocol"
	"dicehall/internal/room"
	"dicehall/internal/store"
	"dicehall/internal/transport"
)

// fixture drives the lobby synchronously: handlers are called directly
// instead of going through Run, and the clock is owned by the test.
type fixture struct {
	t     *testing.T
	lobby *Lobby
	hub   *transport.Hub
	store *store.MemoryStore
	now   time.Time
}

func newFixture(t *testing.T, rooms RoomResolver) *fixture {
	t.Helper()
	s := store.NewMemoryStore(nil)
	t.Cleanup(s.Close)

	hub := transport.NewHub()
	l := New(s.Open("lobby"), hub, rooms)

	f := &fixture{t: t, lobby: l, hub: hub, store: s, now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l.now = func() time.Time { return f.now }
	l.chat.SetClock(l.now)
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) connect(userID, name string) *transport.Conn {
	f.t.Helper()
	c := transport.NewConn(nil, &transport.Identity{UserID: userID, DisplayName: name}, transport.Options{})
	f.hub.Register(c)
	f.lobby.handleJoin(c)
	return c
}

func frameOf(t *testing.T, cmdType string, payload interface{}) *protocol.Frame {
	t.Helper()
	f := &protocol.Frame{Type: cmdType}
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		f.Payload = data
	}
	return f
}

func TestPresence_JoinAndLeave(t *testing.T) {
	f := newFixture(t, nil)

	c1 := f.connect("u1", "Alice")
	assert.True(t, c1.HasTag(transport.LobbyTag))
	assert.True(t, c1.HasTag(transport.UserTag("u1")))
	assert.Equal(t, 1, f.lobby.online["u1"])

	// A second tab for the same user does not double the presence entry.
	c2 := f.connect("u1", "Alice")
	assert.Equal(t, 2, f.lobby.online["u1"])
	assert.Len(t, f.lobby.onlineUsers(), 1)

	f.connect("u2", "Bob")
	users := f.lobby.onlineUsers()
	require.Len(t, users, 2)
	assert.Equal(t, "u1", users[0].UserID)
	assert.Equal(t, "u2", users[1].UserID)

	// First tab closes: still online.
	f.lobby.handleLeave(c1)
	assert.Equal(t, 1, f.lobby.online["u1"])

	// Last tab closes: gone.
	f.lobby.handleLeave(c2)
	_, stillOnline := f.lobby.online["u1"]
	assert.False(t, stillOnline)
	assert.Len(t, f.lobby.onlineUsers(), 1)
}

func TestDirectory_PublicRoomsOnly(t *testing.T) {
	f := newFixture(t, nil)

	f.lobby.handleStatus(room.Status{Code: "PUB123", Phase: "waiting", Public: true})
	f.lobby.handleStatus(room.Status{Code: "PRIV77", Phase: "waiting", Public: false})

	rooms := f.lobby.publicRooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, "PUB123", rooms[0].Code)

	f.lobby.handleRemove("PUB123")
	assert.Empty(t, f.lobby.publicRooms())
}

func TestDirectory_SweepDropsStaleEntries(t *testing.T) {
	f := newFixture(t, nil)

	f.lobby.handleStatus(room.Status{Code: "OLD111", Phase: "waiting", Public: true})
	f.advance(DirectoryTTL + time.Second)
	f.lobby.handleStatus(room.Status{Code: "NEW222", Phase: "waiting", Public: true})

	f.lobby.sweep()

	rooms := f.lobby.publicRooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, "NEW222", rooms[0].Code)
}

func TestDirectory_StatusRefreshKeepsEntryAlive(t *testing.T) {
	f := newFixture(t, nil)

	f.lobby.handleStatus(room.Status{Code: "LIVE42", Phase: "waiting", Public: true})
	f.advance(DirectoryTTL - time.Second)
	f.lobby.handleStatus(room.Status{Code: "LIVE42", Phase: "playing", Public: true})
	f.advance(DirectoryTTL - time.Second)

	f.lobby.sweep()

	rooms := f.lobby.publicRooms()
	require.Len(t, rooms, 1)
	assert.Equal(t, "playing", rooms[0].Phase)
}

func TestLobbyChat_BroadcastAndPersist(t *testing.T) {
	f := newFixture(t, nil)
	c := f.connect("u1", "Alice")

	f.lobby.handleFrame(c, frameOf(t, protocol.CmdLobbyChat, protocol.ChatPayload{Content: "hello hall"}))

	msgs := f.lobby.chat.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello hall", msgs[0].Content)
	assert.Equal(t, "u1", msgs[0].AuthorID)

	// Written through to the lobby namespace.
	data, ok, err := f.store.Open("lobby").Get(store.KeyChatMessages)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(data), "hello hall")
}

func TestLobbyChat_RateLimited(t *testing.T) {
	f := newFixture(t, nil)
	c := f.connect("u1", "Alice")

	f.lobby.handleFrame(c, frameOf(t, protocol.CmdLobbyChat, protocol.ChatPayload{Content: "one"}))
	f.lobby.handleFrame(c, frameOf(t, protocol.CmdLobbyChat, protocol.ChatPayload{Content: "two"}))
	assert.Len(t, f.lobby.chat.Messages(), 1)

	f.advance(2 * time.Second)
	f.lobby.handleFrame(c, frameOf(t, protocol.CmdLobbyChat, protocol.ChatPayload{Content: "two"}))
	assert.Len(t, f.lobby.chat.Messages(), 2)
}

func TestLobbyChat_HistorySurvivesRestart(t *testing.T) {
	f := newFixture(t, nil)
	c := f.connect("u1", "Alice")
	f.lobby.handleFrame(c, frameOf(t, protocol.CmdLobbyChat, protocol.ChatPayload{Content: "before restart"}))

	revived := New(f.store.Open("lobby"), f.hub, nil)
	msgs := revived.chat.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "before restart", msgs[0].Content)
}

func TestInvites_SendAndCancel(t *testing.T) {
	f := newFixture(t, nil)
	sender := f.connect("u1", "Alice")
	f.connect("u2", "Bob")

	f.lobby.handleFrame(sender, frameOf(t, protocol.CmdSendInvite, protocol.SendInvitePayload{
		TargetUserID: "u2",
		RoomCode:     "GAME42",
	}))
	require.Len(t, f.lobby.invites, 1)

	var inv *Invite
	for _, i := range f.lobby.invites {
		inv = i
	}
	assert.Equal(t, "u1", inv.FromID)
	assert.Equal(t, "u2", inv.TargetID)
	assert.Equal(t, "GAME42", inv.RoomCode)
	assert.Equal(t, f.now.Add(InviteTTL), inv.ExpiresAt)

	f.lobby.handleFrame(sender, frameOf(t, protocol.CmdCancelInvite, protocol.CancelInvitePayload{InviteID: inv.ID}))
	assert.Empty(t, f.lobby.invites)
}

func TestInvites_OfflineTargetRejected(t *testing.T) {
	f := newFixture(t, nil)
	sender := f.connect("u1", "Alice")

	f.lobby.handleFrame(sender, frameOf(t, protocol.CmdSendInvite, protocol.SendInvitePayload{
		TargetUserID: "ghost",
		RoomCode:     "GAME42",
	}))
	assert.Empty(t, f.lobby.invites)
}

func TestInvites_OnlyOwnerCancels(t *testing.T) {
	f := newFixture(t, nil)
	sender := f.connect("u1", "Alice")
	other := f.connect("u2", "Bob")

	f.lobby.handleFrame(sender, frameOf(t, protocol.CmdSendInvite, protocol.SendInvitePayload{
		TargetUserID: "u2",
		RoomCode:     "GAME42",
	}))
	var inviteID string
	for id := range f.lobby.invites {
		inviteID = id
	}

	f.lobby.handleFrame(other, frameOf(t, protocol.CmdCancelInvite, protocol.CancelInvitePayload{InviteID: inviteID}))
	assert.Len(t, f.lobby.invites, 1, "non-owner cancel must not remove the invite")
}

func TestInvites_SweepExpires(t *testing.T) {
	f := newFixture(t, nil)
	sender := f.connect("u1", "Alice")
	f.connect("u2", "Bob")

	f.lobby.handleFrame(sender, frameOf(t, protocol.CmdSendInvite, protocol.SendInvitePayload{
		TargetUserID: "u2",
		RoomCode:     "GAME42",
	}))
	require.Len(t, f.lobby.invites, 1)

	f.advance(InviteTTL + time.Second)
	f.lobby.sweep()
	assert.Empty(t, f.lobby.invites)
}

func TestUnknownCommandInLobby(t *testing.T) {
	f := newFixture(t, nil)
	c := f.connect("u1", "Alice")

	// Room-only commands are rejected without touching any state.
	f.lobby.handleFrame(c, frameOf(t, protocol.CmdDiceRoll, nil))
	assert.Empty(t, f.lobby.chat.Messages())
}

func TestJoinRequestBrokerage(t *testing.T) {
	var m *room.Manager
	s := store.NewMemoryStore(func(nsID string, at time.Time) {
		if m != nil {
			m.HandleAlarm(nsID, at)
		}
	})
	t.Cleanup(s.Close)

	hub := transport.NewHub()
	m = room.NewManager(s, hub, room.DefaultSettings())
	t.Cleanup(m.Shutdown)

	actor := m.Create(game.DefaultConfig())
	code := actor.Code()

	l := New(s.Open("lobby"), hub, m)
	requester := transport.NewConn(nil, &transport.Identity{UserID: "u1", DisplayName: "Alice"}, transport.Options{})
	hub.Register(requester)
	l.handleJoin(requester)

	l.handleFrame(requester, frameOf(t, protocol.CmdRequestJoin, protocol.RequestJoinPayload{RoomCode: code}))

	// The request hops onto the room's writer, so wait for the write-through.
	requests := func() map[string]*joinreq.Request {
		data, ok, err := s.Open(code).Get(store.KeyJoinRequests)
		if err != nil || !ok {
			return nil
		}
		var out map[string]*joinreq.Request
		if json.Unmarshal(data, &out) != nil {
			return nil
		}
		return out
	}
	require.Eventually(t, func() bool { return len(requests()) == 1 }, time.Second, 5*time.Millisecond)

	var req *joinreq.Request
	for _, r := range requests() {
		req = r
	}
	assert.Equal(t, "u1", req.RequesterID)
	assert.Equal(t, joinreq.StatusPending, req.Status)

	l.handleFrame(requester, frameOf(t, protocol.CmdCancelJoinRequest, protocol.CancelJoinRequestPayload{
		RequestID: req.ID,
		RoomCode:  code,
	}))
	require.Eventually(t, func() bool {
		reqs := requests()
		return len(reqs) == 1 && reqs[req.ID].Status == joinreq.StatusCancelled
	}, time.Second, 5*time.Millisecond)
}

func TestJoinRequest_UnknownRoom(t *testing.T) {
	s := store.NewMemoryStore(nil)
	t.Cleanup(s.Close)
	hub := transport.NewHub()
	m := room.NewManager(s, hub, room.DefaultSettings())
	t.Cleanup(m.Shutdown)

	l := New(s.Open("lobby"), hub, m)
	c := transport.NewConn(nil, &transport.Identity{UserID: "u1", DisplayName: "Alice"}, transport.Options{})
	hub.Register(c)
	l.handleJoin(c)

	// No panic, no state: the resolver miss is answered with an error event.
	l.handleFrame(c, frameOf(t, protocol.CmdRequestJoin, protocol.RequestJoinPayload{RoomCode: "ZZZZZZ"}))
}
