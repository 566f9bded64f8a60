// Package room implements the per-room authoritative loop: one goroutine per
// room owns all state mutation, driven by an inbox of connection events,
// client frames and alarm fires. Nothing outside the loop touches the room.
package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"

	"dicehall/internal/ai"
	"dicehall/internal/chat"
	"dicehall/internal/game"
	"dicehall/internal/joinreq"
	"dicehall/internal/protocol"
	"dicehall/internal/scoring"
	"dicehall/internal/store"
	"dicehall/internal/transport"
)

// Settings are the room-level tunables handed down from config.
type Settings struct {
	TurnTimeout     time.Duration
	StartCountdown  time.Duration
	ReconnectWindow time.Duration
	IdleTimeout     time.Duration
	AFKWarningLead  time.Duration
}

// DefaultSettings mirror the documented defaults.
func DefaultSettings() Settings {
	return Settings{
		TurnTimeout:     60 * time.Second,
		StartCountdown:  3 * time.Second,
		ReconnectWindow: 5 * time.Minute,
		IdleTimeout:     30 * time.Minute,
		AFKWarningLead:  10 * time.Second,
	}
}

// Status is the snapshot the lobby directory keeps per room.
type Status struct {
	Code        string    `json:"code"`
	Phase       string    `json:"phase"`
	PlayerCount int       `json:"playerCount"`
	MaxSeats    int       `json:"maxSeats"`
	Public      bool      `json:"public"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Fanout is the hub surface the actor uses for selective delivery.
// Satisfied by *transport.Hub.
type Fanout interface {
	BroadcastTag(tag string, env protocol.Envelope)
	BroadcastTagExcept(tag, exceptUserID string, env protocol.Envelope)
	SendToUser(userID string, env protocol.Envelope)
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

// Actor is the single writer for one room.
type Actor struct {
	code string
	ns   store.Namespace
	hub  Fanout
	set  Settings
	rng  *rand.Rand
	now  func() time.Time

	inbox   chan connOp
	alarmCh chan time.Time
	taskCh  chan func()
	stopCh  chan struct{}

	// Everything below is owned by the run loop.
	room     *game.Room
	chat     *chat.Engine
	joinReqs *joinreq.Manager
	profiles map[string]*ai.Profile
	conns    map[*transport.Conn]*Attachment

	lastActivity time.Time
	warnSent     bool
	aiWakeAt     *time.Time
	aiSeq        int

	onStatus func(Status)
	onIdle   func(code string)
}

// NewActor builds a room actor over its namespace. Existing persisted state
// is rehydrated; otherwise a fresh room is created and persisted.
func NewActor(code string, cfg game.Config, set Settings, ns store.Namespace, hub Fanout) *Actor {
	a := &Actor{
		code:     code,
		ns:       ns,
		hub:      hub,
		set:      set,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
		inbox:    make(chan connOp, 128),
		alarmCh:  make(chan time.Time, 8),
		taskCh:   make(chan func(), 16),
		stopCh:   make(chan struct{}),
		chat:     chat.NewEngine(chat.DefaultLimits()),
		joinReqs: joinreq.NewManager(code),
		profiles: ai.BuiltinProfiles(),
		conns:    make(map[*transport.Conn]*Attachment),
	}

	if !a.reloadState() {
		a.room = game.NewRoom(code, cfg, a.now())
		a.persistRoom()
	}
	a.reloadChat()
	a.reloadJoinRequests()
	a.lastActivity = a.now()
	return a
}

// OnStatus registers the lobby directory callback.
func (a *Actor) OnStatus(fn func(Status)) { a.onStatus = fn }

// OnIdle registers the manager callback invoked when the room cleans up.
func (a *Actor) OnIdle(fn func(code string)) { a.onIdle = fn }

// Code returns the room code.
func (a *Actor) Code() string { return a.code }

// Join hands a freshly upgraded connection to the room.
func (a *Actor) Join(c *transport.Conn) {
	select {
	case a.inbox <- connOp{kind: opJoin, conn: c}:
	case <-a.stopCh:
		c.CloseWithCode(websocket.CloseGoingAway, "room closed")
	}
}

// Leave reports a closed connection.
func (a *Actor) Leave(c *transport.Conn) {
	select {
	case a.inbox <- connOp{kind: opLeave, conn: c}:
	case <-a.stopCh:
	}
}

// Deliver feeds one parsed frame into the room.
func (a *Actor) Deliver(c *transport.Conn, f *protocol.Frame) {
	select {
	case a.inbox <- connOp{kind: opFrame, conn: c, frame: f}:
	case <-a.stopCh:
	}
}

// Alarm reports a store alarm fire for this room's namespace.
func (a *Actor) Alarm(at time.Time) {
	select {
	case a.alarmCh <- at:
	case <-a.stopCh:
	}
}

// Do runs fn on the room's writer goroutine. Used by the lobby for
// cross-surface operations like join requests.
func (a *Actor) Do(fn func()) {
	select {
	case a.taskCh <- fn:
	case <-a.stopCh:
	}
}

// Stop ends the loop.
func (a *Actor) Stop() {
	select {
	case <-a.stopCh:
	default:
		close(a.stopCh)
	}
}

// Run is the single-writer loop. Call it on its own goroutine.
func (a *Actor) Run() {
	for {
		select {
		case op := <-a.inbox:
			switch op.kind {
			case opJoin:
				a.handleJoin(op.conn)
			case opLeave:
				a.handleLeave(op.conn)
			case opFrame:
				a.handleFrame(op.conn, op.frame)
			}
		case at := <-a.alarmCh:
			a.handleAlarm(at)
		case fn := <-a.taskCh:
			fn()
		case <-a.stopCh:
			return
		}
	}
}

// ---- persistence ----

func (a *Actor) persistRoom() {
	data, err := json.Marshal(a.room)
	if err != nil {
		log.Printf("⚠️ room %s: marshal state: %v", a.code, err)
		return
	}
	if err := a.ns.Put(store.KeyGameState, data); err != nil {
		log.Printf("⚠️ room %s: persist state: %v", a.code, err)
	}

	info, err := json.Marshal(Status{
		Code:        a.code,
		Phase:       string(a.room.Phase),
		PlayerCount: len(a.room.Seats),
		MaxSeats:    a.room.Config.MaxSeats,
		Public:      a.room.Config.Public,
		UpdatedAt:   a.now(),
	})
	if err == nil {
		a.ns.Put(store.KeyRoom, info)
	}
}

func (a *Actor) persistChat() {
	if data, err := a.chat.MarshalMessages(); err == nil {
		a.ns.Put(store.KeyChatMessages, data)
	}
	if data, err := a.chat.MarshalRateStates(); err == nil {
		a.ns.Put(store.KeyChatRates, data)
	}
}

func (a *Actor) persistJoinRequests() {
	if data, err := a.joinReqs.Marshal(); err == nil {
		a.ns.Put(store.KeyJoinRequests, data)
	}
}

// reloadState re-reads game_state; in-memory caches are never trusted on a
// wake-up. Returns false when nothing is persisted yet.
func (a *Actor) reloadState() bool {
	data, ok, err := a.ns.Get(store.KeyGameState)
	if err != nil || !ok {
		return false
	}
	var r game.Room
	if err := json.Unmarshal(data, &r); err != nil {
		log.Printf("⚠️ room %s: corrupt game_state: %v", a.code, err)
		return false
	}
	a.room = &r
	return true
}

func (a *Actor) reloadChat() {
	if data, ok, _ := a.ns.Get(store.KeyChatMessages); ok {
		a.chat.UnmarshalMessages(data)
	}
	if data, ok, _ := a.ns.Get(store.KeyChatRates); ok {
		a.chat.UnmarshalRateStates(data)
	}
}

func (a *Actor) reloadJoinRequests() {
	if data, ok, _ := a.ns.Get(store.KeyJoinRequests); ok {
		a.joinReqs.Unmarshal(data)
	}
}

// ---- fanout ----

func (a *Actor) broadcast(env protocol.Envelope) {
	a.hub.BroadcastTag(transport.RoomTag(a.code), env)
}

func (a *Actor) broadcastExcept(userID string, env protocol.Envelope) {
	a.hub.BroadcastTagExcept(transport.RoomTag(a.code), userID, env)
}

func (a *Actor) sendToUser(userID string, env protocol.Envelope) {
	a.hub.SendToUser(userID, env)
}

func (a *Actor) systemLine(format string, args ...interface{}) {
	msg := a.chat.CreateSystem(fmt.Sprintf(format, args...))
	a.persistChat()
	a.broadcast(protocol.NewEnvelope(protocol.EvtChatMessage, msg))
}

func (a *Actor) pushStatus() {
	if a.onStatus == nil {
		return
	}
	a.onStatus(Status{
		Code:        a.code,
		Phase:       string(a.room.Phase),
		PlayerCount: len(a.room.Seats),
		MaxSeats:    a.room.Config.MaxSeats,
		Public:      a.room.Config.Public,
		UpdatedAt:   a.now(),
	})
}

func (a *Actor) spectatorCount() int {
	n := 0
	for _, att := range a.conns {
		if att.Role == RoleSpectator {
			n++
		}
	}
	return n
}

// ---- connection lifecycle ----

func (a *Actor) handleJoin(c *transport.Conn) {
	now := a.now()
	a.lastActivity = now
	id := c.Identity()

	// One live connection per user per room: a newer connection supersedes
	// any older one before the seat logic runs, so the older socket never
	// receives another fanout.
	for old, oatt := range a.conns {
		if old == c || oatt.UserID != id.UserID {
			continue
		}
		delete(a.conns, old)
		old.RemoveTag(transport.RoomTag(a.code))
		old.CloseWithCode(websocket.CloseNormalClosure, "superseded by newer connection")
	}

	role := RoleSpectator
	reconnected := false
	seat := a.room.Seat(id.UserID)

	switch {
	case seat != nil && seat.Type == game.PlayerHuman && !seat.Forfeited && !seat.IsConnected && seat.ReconnectDeadline != nil:
		clock := seat.MarkReconnected()
		role = RolePlayer
		reconnected = true
		// A frozen turn clock restarts from where it stopped.
		if clock > 0 && a.room.Game.CurrentPlayerID() == seat.ID && a.room.Phase == game.RoomPlaying {
			restarted := now.Add(clock - a.set.TurnTimeout)
			a.room.Game.TurnStartedAt = &restarted
			a.warnSent = false
		}
	case seat != nil && seat.Type == game.PlayerHuman && !seat.Forfeited && seat.IsConnected:
		// Second connection for an already-seated user.
		role = RolePlayer
	case a.room.Game.Phase == scoring.PhaseWaiting && a.room.FreeSeats() > 0:
		seat = game.NewPlayer(id.UserID, id.DisplayName, id.AvatarSeed)
		if err := a.room.AddSeat(seat); err != nil {
			seat = nil
		} else {
			role = RolePlayer
		}
	}

	if role == RoleSpectator && !a.room.Config.AllowSpectators {
		c.SendError(protocol.EvtError, protocol.CodeRoomFull, "room is not open to spectators")
		c.CloseWithCode(websocket.CloseNormalClosure, "spectators disabled")
		return
	}

	att := &Attachment{
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		AvatarSeed:  id.AvatarSeed,
		Role:        role,
		ConnectedAt: now.UTC().Format(time.RFC3339),
		IsHost:      seat != nil && seat.IsHost,
	}
	if data, err := json.Marshal(att); err == nil {
		if err := c.Attach(data); err != nil {
			log.Printf("⚠️ room %s: attach for %s: %v", a.code, id.UserID, err)
		}
	}
	a.conns[c] = att
	c.AddTag(transport.UserTag(id.UserID))
	c.AddTag(transport.RoomTag(a.code))

	a.persistRoom()

	c.Send(protocol.NewEnvelope(protocol.EvtConnected, ConnectedPayload{
		Room:           a.room,
		You:            id.UserID,
		Role:           role,
		SpectatorCount: a.spectatorCount(),
		ChatHistory:    a.chat.Messages(),
	}))

	switch {
	case reconnected:
		a.broadcastExcept(id.UserID, protocol.NewEnvelope(protocol.EvtPlayerReconnected,
			PlayerReconnectedPayload{PlayerID: id.UserID}))
		a.systemLine("%s reconnected", id.DisplayName)
	case role == RolePlayer && seat != nil:
		a.broadcastExcept(id.UserID, protocol.NewEnvelope(protocol.EvtPlayerJoined,
			PlayerJoinedPayload{Player: seat}))
		a.systemLine("%s joined the table", id.DisplayName)
	default:
		a.broadcastExcept(id.UserID, protocol.NewEnvelope(protocol.EvtSpectatorJoined,
			SpectatorJoinedPayload{DisplayName: id.DisplayName, SpectatorCount: a.spectatorCount()}))
		a.systemLine("%s is watching", id.DisplayName)
	}

	a.pushStatus()
	a.reschedule()
}

func (a *Actor) handleLeave(c *transport.Conn) {
	att, ok := a.conns[c]
	if !ok {
		return
	}
	delete(a.conns, c)
	c.RemoveTag(transport.RoomTag(a.code))

	now := a.now()
	a.lastActivity = now

	a.chat.TypingStop(att.UserID)
	a.broadcast(protocol.NewEnvelope(protocol.EvtTypingUpdate,
		TypingUpdatePayload{Typers: a.chat.ActiveTypers()}))

	seat := a.room.Seat(att.UserID)
	if seat == nil || seat.Type != game.PlayerHuman || !seat.IsConnected || a.userStillConnected(att.UserID) {
		a.reschedule()
		return
	}

	var frozenClock time.Duration
	if a.room.Phase == game.RoomPlaying && a.room.Game.CurrentPlayerID() == seat.ID && a.room.Game.TurnStartedAt != nil {
		deadline := a.room.Game.TurnStartedAt.Add(a.set.TurnTimeout)
		if remaining := deadline.Sub(now); remaining > 0 {
			frozenClock = remaining
		}
	}
	seat.MarkDisconnected(now, a.set.ReconnectWindow, frozenClock)

	a.persistRoom()
	a.broadcast(protocol.NewEnvelope(protocol.EvtPlayerDisconnected, PlayerDisconnectedPayload{
		PlayerID:          seat.ID,
		ReconnectDeadline: seat.ReconnectDeadline.UTC().Format(time.RFC3339),
	}))
	a.systemLine("%s disconnected", seat.DisplayName)
	a.pushStatus()
	a.reschedule()
}

func (a *Actor) userStillConnected(userID string) bool {
	for c, att := range a.conns {
		if att.UserID == userID {
			select {
			case <-c.Done():
			default:
				return true
			}
		}
	}
	return false
}

// ---- frame dispatch ----

func (a *Actor) handleFrame(c *transport.Conn, f *protocol.Frame) {
	att, ok := a.conns[c]
	if !ok {
		// The inbox keeps joins ahead of frames, so this is a frame from a
		// connection the room already let go of.
		c.SendError(protocol.EvtError, protocol.CodeInvalidMessage, "connection is not in this room")
		return
	}
	a.lastActivity = a.now()

	switch f.Type {
	case protocol.CmdChat, protocol.CmdQuickChat, protocol.CmdReaction,
		protocol.CmdTypingStart, protocol.CmdTypingStop:
		a.handleChatFrame(c, att, f)

	case protocol.CmdStartGame:
		a.handleStartGame(c, att)
	case protocol.CmdQuickPlay:
		a.handleQuickPlay(c, att, f)
	case protocol.CmdDiceRoll:
		a.handleDiceRoll(c, att, f)
	case protocol.CmdDiceKeep:
		a.handleDiceKeep(c, att, f)
	case protocol.CmdCategoryScore:
		a.handleCategoryScore(c, att, f)
	case protocol.CmdRematch:
		a.handleRematch(c, att)
	case protocol.CmdAddAIPlayer:
		a.handleAddAI(c, att, f)

	default:
		c.SendError(protocol.EvtError, protocol.CodeInvalidMessage, "command not valid in a room")
	}
}

func (a *Actor) sendRuleError(c *transport.Conn, err error) {
	var re *game.RuleError
	if errors.As(err, &re) {
		c.SendError(protocol.EvtError, re.Code, re.Message)
		return
	}
	c.SendError(protocol.EvtError, protocol.CodeInvalidMessage, err.Error())
}

// ---- chat ----

func (a *Actor) handleChatFrame(c *transport.Conn, att *Attachment, f *protocol.Frame) {
	switch f.Type {
	case protocol.CmdChat:
		var p protocol.ChatPayload
		if err := f.Decode(&p); err != nil {
			c.SendError(protocol.EvtChatError, protocol.CodeInvalidMessage, "bad chat payload")
			return
		}
		msg, err := a.chat.HandleText(att.UserID, att.DisplayName, p.Content)
		if err != nil {
			a.sendChatError(c, err)
			return
		}
		a.persistChat()
		a.broadcast(protocol.NewEnvelope(protocol.EvtChatMessage, msg))

	case protocol.CmdQuickChat:
		var p protocol.QuickChatPayload
		if err := f.Decode(&p); err != nil {
			c.SendError(protocol.EvtChatError, protocol.CodeInvalidMessage, "bad quick chat payload")
			return
		}
		msg, err := a.chat.HandleQuick(att.UserID, att.DisplayName, p.Key)
		if err != nil {
			a.sendChatError(c, err)
			return
		}
		a.persistChat()
		a.broadcast(protocol.NewEnvelope(protocol.EvtChatMessage, msg))

	case protocol.CmdReaction:
		var p protocol.ReactionPayload
		if err := f.Decode(&p); err != nil {
			c.SendError(protocol.EvtChatError, protocol.CodeInvalidMessage, "bad reaction payload")
			return
		}
		msg, err := a.chat.HandleReaction(att.UserID, p.MessageID, p.Token, p.Remove)
		if err != nil {
			a.sendChatError(c, err)
			return
		}
		a.persistChat()
		a.broadcast(protocol.NewEnvelope(protocol.EvtReactionUpdate, msg))

	case protocol.CmdTypingStart:
		if a.chat.TypingStart(att.UserID) {
			a.broadcast(protocol.NewEnvelope(protocol.EvtTypingUpdate,
				TypingUpdatePayload{Typers: a.chat.ActiveTypers()}))
		}

	case protocol.CmdTypingStop:
		a.chat.TypingStop(att.UserID)
		a.broadcast(protocol.NewEnvelope(protocol.EvtTypingUpdate,
			TypingUpdatePayload{Typers: a.chat.ActiveTypers()}))
	}
}

func (a *Actor) sendChatError(c *transport.Conn, err error) {
	var ce *chat.Error
	if errors.As(err, &ce) {
		c.SendError(protocol.EvtChatError, ce.Code, ce.Message)
		return
	}
	c.SendError(protocol.EvtChatError, protocol.CodeInvalidMessage, err.Error())
}

// ---- game commands ----

func (a *Actor) handleStartGame(c *transport.Conn, att *Attachment) {
	if err := a.room.ValidateStartGame(att.UserID); err != nil {
		a.sendRuleError(c, err)
		return
	}
	now := a.now()
	a.room.StartGame(a.rng, now)
	a.persistRoom()

	a.broadcast(protocol.NewEnvelope(protocol.EvtGameStarting, GameStartingPayload{
		CountdownSeconds: int(a.set.StartCountdown / time.Second),
		PlayerOrder:      a.room.Game.PlayerOrder,
	}))
	a.systemLine("game starting")
	a.pushStatus()
	a.reschedule()
}

func (a *Actor) handleQuickPlay(c *transport.Conn, att *Attachment, f *protocol.Frame) {
	var p protocol.QuickPlayPayload
	if err := f.Decode(&p); err != nil {
		c.SendError(protocol.EvtError, protocol.CodeInvalidMessage, "bad quick play payload")
		return
	}
	for _, pid := range p.AIProfiles {
		if _, ok := a.profiles[pid]; !ok {
			a.sendRuleError(c, game.ErrUnknownProfile)
			return
		}
	}
	if err := a.room.ValidateQuickPlay(att.UserID, len(p.AIProfiles)); err != nil {
		a.sendRuleError(c, err)
		return
	}

	for _, pid := range p.AIProfiles {
		a.seatAI(pid)
	}
	now := a.now()
	a.room.QuickPlayStart(att.UserID, now)
	a.persistRoom()

	a.broadcast(protocol.NewEnvelope(protocol.EvtQuickPlayStarted, GameStartedPayload{
		PlayerOrder: a.room.Game.PlayerOrder,
		FirstPlayer: a.room.Game.CurrentPlayerID(),
	}))
	a.broadcastTurnStarted()
	a.pushStatus()
	a.scheduleTurn()
}

func (a *Actor) seatAI(profileID string) *game.Player {
	prof := a.profiles[profileID]
	a.aiSeq++
	seat := game.NewAIPlayer(
		fmt.Sprintf("ai-%s-%d", profileID, a.aiSeq),
		prof.DisplayName,
		prof.AvatarSeed,
		profileID,
	)
	if err := a.room.AddSeat(seat); err != nil {
		return nil
	}
	return seat
}

func (a *Actor) handleDiceRoll(c *transport.Conn, att *Attachment, f *protocol.Frame) {
	var p protocol.DiceRollPayload
	if err := f.Decode(&p); err != nil {
		c.SendError(protocol.EvtError, protocol.CodeInvalidMessage, "bad roll payload")
		return
	}
	if err := a.room.ValidateRoll(att.UserID); err != nil {
		a.sendRuleError(c, err)
		return
	}

	var mask [5]bool
	if p.KeptMask != nil {
		mask = *p.KeptMask
	} else if seat := a.room.Seat(att.UserID); seat != nil {
		mask = seat.KeptMask
	}

	dice, err := a.room.Roll(att.UserID, mask, a.rng)
	if err != nil {
		a.sendRuleError(c, err)
		return
	}
	seat := a.room.Seat(att.UserID)
	a.persistRoom()
	a.broadcast(protocol.NewEnvelope(protocol.EvtDiceRolled, DiceRolledPayload{
		PlayerID:       att.UserID,
		Dice:           dice,
		KeptMask:       seat.KeptMask,
		RollsRemaining: seat.RollsRemaining,
	}))
}

func (a *Actor) handleDiceKeep(c *transport.Conn, att *Attachment, f *protocol.Frame) {
	var p protocol.DiceKeepPayload
	if err := f.Decode(&p); err != nil {
		c.SendError(protocol.EvtError, protocol.CodeInvalidMessage, "bad keep payload")
		return
	}
	mask, ok := protocol.KeepMaskFromIndices(p.Indices)
	if !ok {
		c.SendError(protocol.EvtError, protocol.CodeInvalidMessage, "keep index out of range")
		return
	}
	if err := a.room.ValidateKeep(att.UserID); err != nil {
		a.sendRuleError(c, err)
		return
	}
	if err := a.room.Keep(att.UserID, mask); err != nil {
		a.sendRuleError(c, err)
		return
	}
	a.persistRoom()
	a.broadcast(protocol.NewEnvelope(protocol.EvtDiceKept, DiceKeptPayload{
		PlayerID: att.UserID,
		KeptMask: mask,
	}))
}

func (a *Actor) handleCategoryScore(c *transport.Conn, att *Attachment, f *protocol.Frame) {
	var p protocol.CategoryScorePayload
	if err := f.Decode(&p); err != nil {
		c.SendError(protocol.EvtError, protocol.CodeInvalidMessage, "bad score payload")
		return
	}
	cat := scoring.Category(p.Category)
	if err := a.room.ValidateScore(att.UserID, cat); err != nil {
		a.sendRuleError(c, err)
		return
	}
	res, err := a.room.ScoreCategory(att.UserID, cat, a.now())
	if err != nil {
		a.sendRuleError(c, err)
		return
	}
	a.afterScore(res, "")
}

func (a *Actor) handleRematch(c *transport.Conn, att *Attachment) {
	if err := a.room.ValidateRematch(att.UserID); err != nil {
		a.sendRuleError(c, err)
		return
	}
	a.room.Rematch()
	a.persistRoom()
	a.ns.Delete(store.KeyAITurnData)
	a.aiWakeAt = nil
	a.warnSent = false

	a.broadcast(protocol.NewEnvelope(protocol.EvtRematchStarted, ConnectedPayload{
		Room: a.room,
	}))
	a.systemLine("rematch: scorecards cleared")
	a.pushStatus()
	a.reschedule()
}

func (a *Actor) handleAddAI(c *transport.Conn, att *Attachment, f *protocol.Frame) {
	var p protocol.AddAIPlayerPayload
	if err := f.Decode(&p); err != nil {
		c.SendError(protocol.EvtError, protocol.CodeInvalidMessage, "bad add AI payload")
		return
	}
	_, known := a.profiles[p.ProfileID]
	if err := a.room.ValidateAddAI(att.UserID, known); err != nil {
		a.sendRuleError(c, err)
		return
	}

	seat := a.seatAI(p.ProfileID)
	if seat == nil {
		a.sendRuleError(c, game.ErrRoomFull)
		return
	}
	a.persistRoom()
	a.broadcast(protocol.NewEnvelope(protocol.EvtAIPlayerJoined, PlayerJoinedPayload{Player: seat}))
	a.systemLine("%s joined the table", seat.DisplayName)
	a.pushStatus()
}

// afterScore persists, fans out the scoring events, and schedules the next
// turn. reason is empty for a normal score, "timeout" or "disconnect" for a
// skip.
func (a *Actor) afterScore(res *game.ScoreResult, reason string) {
	a.persistRoom()
	a.ns.Delete(store.KeyAITurnData)
	a.aiWakeAt = nil
	a.warnSent = false

	if reason != "" {
		a.broadcast(protocol.NewEnvelope(protocol.EvtTurnSkipped, TurnSkippedPayload{
			PlayerID:       res.PlayerID,
			Reason:         reason,
			CategoryScored: res.Category,
			Score:          res.Gained,
		}))
	} else {
		a.broadcast(protocol.NewEnvelope(protocol.EvtCategoryScored, CategoryScoredPayload{
			PlayerID:    res.PlayerID,
			Category:    res.Category,
			Score:       res.Gained,
			RepeatBonus: res.RepeatBonus,
			UpperBonus:  res.UpperBonus,
			TotalScore:  res.TotalScore,
		}))
	}

	if res.GameOver {
		a.broadcast(protocol.NewEnvelope(protocol.EvtGameOver, GameOverPayload{
			Rankings: res.Rankings,
		}))
		if len(res.Rankings) > 0 {
			a.systemLine("game over: %s wins with %d", res.Rankings[0].DisplayName, res.Rankings[0].Score)
		}
		a.pushStatus()
		a.reschedule()
		return
	}

	a.broadcast(protocol.NewEnvelope(protocol.EvtTurnChanged, TurnChangedPayload{
		PreviousPlayerID: res.PlayerID,
		PlayerID:         a.room.Game.CurrentPlayerID(),
		Round:            a.room.Game.RoundNumber,
	}))
	a.broadcastTurnStarted()
	a.scheduleTurn()
}

func (a *Actor) broadcastTurnStarted() {
	a.broadcast(protocol.NewEnvelope(protocol.EvtTurnStarted, TurnStartedPayload{
		PlayerID:    a.room.Game.CurrentPlayerID(),
		Round:       a.room.Game.RoundNumber,
		TimeoutSecs: int(a.set.TurnTimeout / time.Second),
	}))
}

// scheduleTurn arms the wake-up for the player whose turn just began.
func (a *Actor) scheduleTurn() {
	p := a.room.CurrentPlayer()
	if p == nil {
		a.reschedule()
		return
	}

	if p.Forfeited || (p.Type == game.PlayerHuman && !p.IsConnected && p.ReconnectDeadline == nil) {
		// Nobody is coming back for this seat: skip it immediately.
		if res, err := a.room.SkipTurn(p.ID, a.now()); err == nil {
			a.afterScore(res, "disconnect")
		} else {
			a.reschedule()
		}
		return
	}

	if p.Type == game.PlayerAI {
		a.scheduleAIStep(p, ai.StepRoll)
		return
	}
	a.reschedule()
}

// ---- alarms ----

func (a *Actor) handleAlarm(at time.Time) {
	// Resumption contract: never trust a cached room on a wake-up.
	a.reloadState()

	d, err := readDescriptor(a.ns)
	if err != nil || d == nil {
		a.reschedule()
		return
	}
	clearDescriptor(a.ns)

	switch d.Type {
	case AlarmGameStart:
		a.fireGameStart()
	case AlarmAFKWarning:
		a.fireAFKWarning()
	case AlarmAFKTimeout, AlarmTurnTimeout:
		a.fireAFKTimeout(d.PlayerID)
	case AlarmAITurn:
		a.fireAITurn()
	case AlarmReconnectDeadline:
		a.fireReconnectDeadlines()
	case AlarmRoomCleanup:
		a.fireCleanup()
	default:
		a.reschedule()
	}
}

func (a *Actor) fireGameStart() {
	if a.room.Phase != game.RoomStarting {
		a.reschedule()
		return
	}
	now := a.now()
	a.room.BeginPlay(now)
	a.persistRoom()

	a.broadcast(protocol.NewEnvelope(protocol.EvtGameStarted, GameStartedPayload{
		PlayerOrder: a.room.Game.PlayerOrder,
		FirstPlayer: a.room.Game.CurrentPlayerID(),
	}))
	a.broadcastTurnStarted()
	a.pushStatus()
	a.scheduleTurn()
}

func (a *Actor) fireAFKWarning() {
	p := a.room.CurrentPlayer()
	if p == nil || p.Type != game.PlayerHuman || !p.IsConnected || a.room.Phase != game.RoomPlaying {
		a.reschedule()
		return
	}
	a.warnSent = true
	a.sendToUser(p.ID, protocol.NewEnvelope(protocol.EvtPlayerAFK, PlayerAFKPayload{
		PlayerID:         p.ID,
		SecondsRemaining: int(a.set.AFKWarningLead / time.Second),
	}))
	a.reschedule()
}

func (a *Actor) fireAFKTimeout(playerID string) {
	p := a.room.CurrentPlayer()
	if p == nil || a.room.Phase != game.RoomPlaying {
		a.reschedule()
		return
	}
	if playerID != "" && p.ID != playerID {
		// Stale descriptor from a turn that already advanced.
		a.reschedule()
		return
	}
	res, err := a.room.SkipTurn(p.ID, a.now())
	if err != nil {
		a.reschedule()
		return
	}
	a.afterScore(res, "timeout")
}

func (a *Actor) fireReconnectDeadlines() {
	now := a.now()
	var skippedCurrent bool

	for _, seat := range a.room.SeatedPlayers() {
		if seat.Type != game.PlayerHuman || seat.IsConnected || seat.Forfeited {
			continue
		}
		if seat.ReconnectDeadline == nil || now.Before(*seat.ReconnectDeadline) {
			continue
		}

		if a.room.Game.Phase == scoring.PhaseWaiting {
			name := seat.DisplayName
			a.room.RemoveSeat(seat.ID)
			a.persistRoom()
			a.broadcast(protocol.NewEnvelope(protocol.EvtPlayerRemoved, PlayerLeftPayload{
				PlayerID: seat.ID,
				NewHost:  a.room.HostID,
			}))
			a.systemLine("%s's seat expired", name)
			continue
		}

		seat.Forfeited = true
		seat.ReconnectDeadline = nil
		seat.TurnClockRemaining = 0
		a.persistRoom()
		a.broadcast(protocol.NewEnvelope(protocol.EvtPlayerLeft, PlayerLeftPayload{PlayerID: seat.ID}))
		a.systemLine("%s forfeited", seat.DisplayName)

		if a.room.Game.CurrentPlayerID() == seat.ID && a.room.Phase == game.RoomPlaying {
			if res, err := a.room.SkipTurn(seat.ID, now); err == nil {
				a.afterScore(res, "disconnect")
				skippedCurrent = true
			}
		}
	}

	a.pushStatus()
	if !skippedCurrent {
		a.reschedule()
	}
}

func (a *Actor) fireCleanup() {
	if len(a.conns) > 0 {
		a.reschedule()
		return
	}
	a.room.Phase = game.RoomAbandoned
	a.persistRoom()
	a.pushStatus()
	a.ns.DeleteAlarm()
	clearDescriptor(a.ns)
	if a.onIdle != nil {
		a.onIdle(a.code)
	}
	a.Stop()
}

// reschedule picks the earliest pending wake-up from the current state and
// arms the room's single alarm for it, replacing whatever was pending.
func (a *Actor) reschedule() {
	now := a.now()
	var best *AlarmDescriptor

	consider := func(kind AlarmKind, playerID string, at time.Time) {
		if best == nil || at.Before(best.ScheduledAt) {
			best = &AlarmDescriptor{Type: kind, PlayerID: playerID, ScheduledAt: at}
		}
	}

	if a.room.Phase == game.RoomStarting && a.room.StartedAt != nil {
		consider(AlarmGameStart, "", a.room.StartedAt.Add(a.set.StartCountdown))
	}

	if a.room.Phase == game.RoomPlaying {
		if p := a.room.CurrentPlayer(); p != nil {
			switch {
			case p.Type == game.PlayerAI:
				if a.aiWakeAt != nil {
					consider(AlarmAITurn, p.ID, *a.aiWakeAt)
				}
			case p.IsConnected && a.room.Game.TurnStartedAt != nil:
				deadline := a.room.Game.TurnStartedAt.Add(a.set.TurnTimeout)
				warnAt := deadline.Add(-a.set.AFKWarningLead)
				if !a.warnSent && warnAt.After(now) {
					consider(AlarmAFKWarning, p.ID, warnAt)
				} else {
					consider(AlarmAFKTimeout, p.ID, deadline)
				}
			}
		}
	}

	for _, seat := range a.room.SeatedPlayers() {
		if seat.Type == game.PlayerHuman && !seat.IsConnected && !seat.Forfeited && seat.ReconnectDeadline != nil {
			consider(AlarmReconnectDeadline, seat.ID, *seat.ReconnectDeadline)
		}
	}

	if len(a.conns) == 0 && a.set.IdleTimeout > 0 {
		consider(AlarmRoomCleanup, "", a.lastActivity.Add(a.set.IdleTimeout))
	}

	if best == nil {
		a.ns.DeleteAlarm()
		clearDescriptor(a.ns)
		return
	}
	if err := writeDescriptor(a.ns, best); err != nil {
		log.Printf("⚠️ room %s: write alarm descriptor: %v", a.code, err)
	}
	if err := a.ns.SetAlarm(best.ScheduledAt); err != nil {
		log.Printf("⚠️ room %s: set alarm: %v", a.code, err)
	}
}
