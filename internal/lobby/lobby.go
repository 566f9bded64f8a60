// Package lobby implements the hall outside the rooms: presence, the public
// room directory, lobby-wide chat, invites, and brokerage of join requests
// into rooms. Like a room, the lobby is a single-writer actor.
package lobby

import (
	"errors"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"

	"dicehall/internal/chat"
	"dicehall/internal/protocol"
	"dicehall/internal/room"
	"dicehall/internal/store"
	"dicehall/internal/transport"
)

// DirectoryTTL is how long a directory entry survives without a status
// refresh before the sweep drops it.
const DirectoryTTL = 90 * time.Second

// InviteTTL bounds how long an invite stays deliverable.
const InviteTTL = 2 * time.Minute

const sweepInterval = 15 * time.Second

// RoomResolver finds the live actor for a room code. Satisfied by
// *room.Manager.
type RoomResolver interface {
	Get(code string) (*room.Actor, error)
}

// Invite is a direct invitation from one lobby user to another.
type Invite struct {
	ID        string    `json:"id"`
	FromID    string    `json:"fromId"`
	FromName  string    `json:"fromName"`
	TargetID  string    `json:"targetId"`
	RoomCode  string    `json:"roomCode"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type directoryEntry struct {
	status   room.Status
	lastSeen time.Time
}

type connOpKind int

const (
	opJoin connOpKind = iota
	opLeave
	opFrame
)

// connOp is one connection-lifecycle event. Joins, leaves and frames share a
// single inbox so a frame can never overtake the join that admitted its
// connection.
type connOp struct {
	kind  connOpKind
	conn  *transport.Conn
	frame *protocol.Frame
}

// Lobby is the single writer for the lobby surface.
type Lobby struct {
	hub   *transport.Hub
	ns    store.Namespace
	rooms RoomResolver
	now   func() time.Time

	inbox    chan connOp
	statusCh chan room.Status
	removeCh chan string
	stopCh   chan struct{}

	// Loop-owned state.
	chat      *chat.Engine
	conns     map[*transport.Conn]*transport.Identity
	online    map[string]int // userID -> live connection count
	names     map[string]string
	directory map[string]*directoryEntry
	invites   map[string]*Invite

	directoryTTL time.Duration
}

// SetDirectoryTTL overrides how long directory entries live without a
// refresh. Call before Run.
func (l *Lobby) SetDirectoryTTL(d time.Duration) {
	if d > 0 {
		l.directoryTTL = d
	}
}

// New builds the lobby over its store namespace and the shared hub.
func New(ns store.Namespace, hub *transport.Hub, rooms RoomResolver) *Lobby {
	l := &Lobby{
		hub:          hub,
		ns:           ns,
		rooms:        rooms,
		now:          time.Now,
		inbox:        make(chan connOp, 256),
		statusCh:     make(chan room.Status, 64),
		removeCh:     make(chan string, 16),
		stopCh:       make(chan struct{}),
		chat:         chat.NewEngine(chat.DefaultLimits()),
		conns:        make(map[*transport.Conn]*transport.Identity),
		online:       make(map[string]int),
		names:        make(map[string]string),
		directory:    make(map[string]*directoryEntry),
		invites:      make(map[string]*Invite),
		directoryTTL: DirectoryTTL,
	}
	l.reloadChat()
	return l
}

// Join hands a freshly upgraded lobby connection to the loop.
func (l *Lobby) Join(c *transport.Conn) {
	select {
	case l.inbox <- connOp{kind: opJoin, conn: c}:
	case <-l.stopCh:
		c.Close()
	}
}

// Leave reports a closed lobby connection.
func (l *Lobby) Leave(c *transport.Conn) {
	select {
	case l.inbox <- connOp{kind: opLeave, conn: c}:
	case <-l.stopCh:
	}
}

// Deliver feeds one parsed frame into the lobby.
func (l *Lobby) Deliver(c *transport.Conn, f *protocol.Frame) {
	select {
	case l.inbox <- connOp{kind: opFrame, conn: c, frame: f}:
	case <-l.stopCh:
	}
}

// UpdateRoom feeds a room status into the directory. Wired as the room
// manager's status sink.
func (l *Lobby) UpdateRoom(s room.Status) {
	select {
	case l.statusCh <- s:
	case <-l.stopCh:
	}
}

// RemoveRoom drops a destroyed room from the directory.
func (l *Lobby) RemoveRoom(code string) {
	select {
	case l.removeCh <- code:
	case <-l.stopCh:
	}
}

// Stop ends the loop.
func (l *Lobby) Stop() {
	select {
	case <-l.stopCh:
	default:
		close(l.stopCh)
	}
}

// Run is the lobby's writer loop. Call it on its own goroutine.
func (l *Lobby) Run() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case op := <-l.inbox:
			switch op.kind {
			case opJoin:
				l.handleJoin(op.conn)
			case opLeave:
				l.handleLeave(op.conn)
			case opFrame:
				l.handleFrame(op.conn, op.frame)
			}
		case s := <-l.statusCh:
			l.handleStatus(s)
		case code := <-l.removeCh:
			l.handleRemove(code)
		case <-ticker.C:
			l.sweep()
		case <-l.stopCh:
			return
		}
	}
}

// ---- persistence ----

func (l *Lobby) persistChat() {
	if data, err := l.chat.MarshalMessages(); err == nil {
		l.ns.Put(store.KeyChatMessages, data)
	}
	if data, err := l.chat.MarshalRateStates(); err == nil {
		l.ns.Put(store.KeyChatRates, data)
	}
}

func (l *Lobby) reloadChat() {
	if data, ok, _ := l.ns.Get(store.KeyChatMessages); ok {
		l.chat.UnmarshalMessages(data)
	}
	if data, ok, _ := l.ns.Get(store.KeyChatRates); ok {
		l.chat.UnmarshalRateStates(data)
	}
}

// ---- presence ----

func (l *Lobby) handleJoin(c *transport.Conn) {
	id := c.Identity()
	l.conns[c] = id
	l.online[id.UserID]++
	l.names[id.UserID] = id.DisplayName
	c.AddTag(transport.UserTag(id.UserID))
	c.AddTag(transport.LobbyTag)

	c.Send(protocol.NewEnvelope(protocol.EvtPresenceInit, PresencePayload{Users: l.onlineUsers()}))
	c.Send(protocol.NewEnvelope(protocol.EvtLobbyChatHistory, l.chat.Messages()))
	c.Send(protocol.NewEnvelope(protocol.EvtLobbyRoomsList, RoomsListPayload{Rooms: l.publicRooms()}))

	if l.online[id.UserID] == 1 {
		l.broadcastExcept(id.UserID, protocol.NewEnvelope(protocol.EvtPresenceJoin, UserRef{
			UserID:      id.UserID,
			DisplayName: id.DisplayName,
		}))
	}
}

func (l *Lobby) handleLeave(c *transport.Conn) {
	id, ok := l.conns[c]
	if !ok {
		return
	}
	delete(l.conns, c)
	c.RemoveTag(transport.LobbyTag)

	l.online[id.UserID]--
	if l.online[id.UserID] > 0 {
		return
	}
	delete(l.online, id.UserID)
	delete(l.names, id.UserID)
	l.broadcast(protocol.NewEnvelope(protocol.EvtPresenceLeave, UserRef{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
	}))
}

func (l *Lobby) onlineUsers() []UserRef {
	users := make([]UserRef, 0, len(l.online))
	for id := range l.online {
		users = append(users, UserRef{UserID: id, DisplayName: l.names[id]})
	}
	sort.Slice(users, func(i, j int) bool { return users[i].UserID < users[j].UserID })
	return users
}

// ---- fanout ----

func (l *Lobby) broadcast(env protocol.Envelope) {
	l.hub.BroadcastTag(transport.LobbyTag, env)
}

func (l *Lobby) broadcastExcept(userID string, env protocol.Envelope) {
	l.hub.BroadcastTagExcept(transport.LobbyTag, userID, env)
}

// ---- directory ----

func (l *Lobby) handleStatus(s room.Status) {
	l.directory[s.Code] = &directoryEntry{status: s, lastSeen: l.now()}
	if s.Public {
		l.broadcast(protocol.NewEnvelope(protocol.EvtLobbyRoomUpdate, s))
	}
}

func (l *Lobby) handleRemove(code string) {
	if _, ok := l.directory[code]; !ok {
		return
	}
	delete(l.directory, code)
	l.broadcast(protocol.NewEnvelope(protocol.EvtLobbyRoomUpdate, room.Status{
		Code:      code,
		Phase:     "abandoned",
		UpdatedAt: l.now(),
	}))
}

func (l *Lobby) publicRooms() []room.Status {
	rooms := make([]room.Status, 0, len(l.directory))
	for _, e := range l.directory {
		if e.status.Public && e.status.Phase != "abandoned" {
			rooms = append(rooms, e.status)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].Code < rooms[j].Code })
	return rooms
}

// sweep drops stale directory entries and expired invites.
func (l *Lobby) sweep() {
	now := l.now()
	for code, e := range l.directory {
		if now.Sub(e.lastSeen) > l.directoryTTL {
			delete(l.directory, code)
		}
	}
	for id, inv := range l.invites {
		if !now.Before(inv.ExpiresAt) {
			delete(l.invites, id)
			l.hub.SendToUser(inv.TargetID, protocol.NewEnvelope(protocol.EvtInviteCancelled,
				InviteRef{InviteID: inv.ID, RoomCode: inv.RoomCode}))
		}
	}
}

// ---- frames ----

func (l *Lobby) handleFrame(c *transport.Conn, f *protocol.Frame) {
	id, ok := l.conns[c]
	if !ok {
		c.SendError(protocol.EvtLobbyError, protocol.CodeInvalidMessage, "connection is not in the lobby")
		return
	}

	switch f.Type {
	case protocol.CmdLobbyChat:
		l.handleChat(c, id, f)
	case protocol.CmdGetRooms:
		c.Send(protocol.NewEnvelope(protocol.EvtLobbyRoomsList, RoomsListPayload{Rooms: l.publicRooms()}))
	case protocol.CmdGetOnlineUsers:
		c.Send(protocol.NewEnvelope(protocol.EvtLobbyOnlineUsers, PresencePayload{Users: l.onlineUsers()}))
	case protocol.CmdRequestJoin:
		l.handleRequestJoin(c, id, f)
	case protocol.CmdCancelJoinRequest:
		l.handleCancelJoinRequest(c, id, f)
	case protocol.CmdSendInvite:
		l.handleSendInvite(c, id, f)
	case protocol.CmdCancelInvite:
		l.handleCancelInvite(c, id, f)
	default:
		c.SendError(protocol.EvtLobbyError, protocol.CodeInvalidMessage, "command not valid in the lobby")
	}
}

func (l *Lobby) handleChat(c *transport.Conn, id *transport.Identity, f *protocol.Frame) {
	var p protocol.ChatPayload
	if err := f.Decode(&p); err != nil {
		c.SendError(protocol.EvtLobbyError, protocol.CodeInvalidMessage, "bad chat payload")
		return
	}
	msg, err := l.chat.HandleText(id.UserID, id.DisplayName, p.Content)
	if err != nil {
		var ce *chat.Error
		if errors.As(err, &ce) {
			c.SendError(protocol.EvtChatError, ce.Code, ce.Message)
			return
		}
		c.SendError(protocol.EvtChatError, protocol.CodeInvalidMessage, err.Error())
		return
	}
	l.persistChat()
	l.broadcast(protocol.NewEnvelope(protocol.EvtLobbyChatMessage, msg))
}

func (l *Lobby) handleRequestJoin(c *transport.Conn, id *transport.Identity, f *protocol.Frame) {
	var p protocol.RequestJoinPayload
	if err := f.Decode(&p); err != nil || p.RoomCode == "" {
		c.SendError(protocol.EvtJoinRequestError, protocol.CodeInvalidMessage, "bad join request payload")
		return
	}
	actor, err := l.rooms.Get(p.RoomCode)
	if err != nil {
		c.SendError(protocol.EvtJoinRequestError, protocol.CodeRoomNotFound, "no such room")
		return
	}
	actor.SubmitJoinRequest(id.UserID, id.DisplayName, id.AvatarSeed)
}

func (l *Lobby) handleCancelJoinRequest(c *transport.Conn, id *transport.Identity, f *protocol.Frame) {
	var p protocol.CancelJoinRequestPayload
	if err := f.Decode(&p); err != nil || p.RequestID == "" || p.RoomCode == "" {
		c.SendError(protocol.EvtJoinRequestError, protocol.CodeInvalidMessage, "bad cancel payload")
		return
	}
	actor, err := l.rooms.Get(p.RoomCode)
	if err != nil {
		c.SendError(protocol.EvtJoinRequestError, protocol.CodeRoomNotFound, "no such room")
		return
	}
	actor.CancelJoinRequest(p.RequestID, id.UserID)
}

func (l *Lobby) handleSendInvite(c *transport.Conn, id *transport.Identity, f *protocol.Frame) {
	var p protocol.SendInvitePayload
	if err := f.Decode(&p); err != nil || p.TargetUserID == "" || p.RoomCode == "" {
		c.SendError(protocol.EvtLobbyError, protocol.CodeInvalidMessage, "bad invite payload")
		return
	}
	if _, online := l.online[p.TargetUserID]; !online {
		c.SendError(protocol.EvtLobbyError, protocol.CodeUserNotFound, "user is not online")
		return
	}

	now := l.now()
	inv := &Invite{
		ID:        uuid.NewString(),
		FromID:    id.UserID,
		FromName:  id.DisplayName,
		TargetID:  p.TargetUserID,
		RoomCode:  p.RoomCode,
		CreatedAt: now,
		ExpiresAt: now.Add(InviteTTL),
	}
	l.invites[inv.ID] = inv

	l.hub.SendToUser(p.TargetUserID, protocol.NewEnvelope(protocol.EvtInviteReceived, inv))
	c.Send(protocol.NewEnvelope(protocol.EvtLobbyHighlight, InviteRef{
		InviteID: inv.ID,
		RoomCode: inv.RoomCode,
	}))
}

func (l *Lobby) handleCancelInvite(c *transport.Conn, id *transport.Identity, f *protocol.Frame) {
	var p protocol.CancelInvitePayload
	if err := f.Decode(&p); err != nil || p.InviteID == "" {
		c.SendError(protocol.EvtLobbyError, protocol.CodeInvalidMessage, "bad cancel invite payload")
		return
	}
	inv, ok := l.invites[p.InviteID]
	if !ok {
		c.SendError(protocol.EvtLobbyError, protocol.CodeInviteNotFound, "no such invite")
		return
	}
	if inv.FromID != id.UserID {
		c.SendError(protocol.EvtLobbyError, protocol.CodeNotInviteOwner, "not your invite")
		return
	}
	delete(l.invites, p.InviteID)
	l.hub.SendToUser(inv.TargetID, protocol.NewEnvelope(protocol.EvtInviteCancelled, InviteRef{
		InviteID: inv.ID,
		RoomCode: inv.RoomCode,
	}))
	log.Printf("📨 invite %s cancelled by %s", inv.ID, id.UserID)
}

// ---- payloads ----

// UserRef names one lobby user.
type UserRef struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// PresencePayload carries the online-user set.
type PresencePayload struct {
	Users []UserRef `json:"users"`
}

// RoomsListPayload carries the public room directory.
type RoomsListPayload struct {
	Rooms []room.Status `json:"rooms"`
}

// InviteRef identifies an invite in cancel and highlight events.
type InviteRef struct {
	InviteID string `json:"inviteId"`
	RoomCode string `json:"roomCode"`
}
