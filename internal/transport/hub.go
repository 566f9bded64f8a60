package transport

import (
	"sync"

	"dicehall/internal/protocol"
)

// Hub tracks live connections and fans envelopes out by tag. It is shared by
// the lobby and every room; connection registration happens at upgrade time
// and tags are added and removed as users move between surfaces.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*Conn]struct{})}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

// Unregister removes a connection.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

// Len reports the number of registered connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// BroadcastTag sends an envelope to every connection carrying the tag.
func (h *Hub) BroadcastTag(tag string, env protocol.Envelope) {
	for _, c := range h.tagged(tag) {
		c.Send(env)
	}
}

// BroadcastTagExcept sends to every tagged connection except the given user.
func (h *Hub) BroadcastTagExcept(tag, exceptUserID string, env protocol.Envelope) {
	for _, c := range h.tagged(tag) {
		if c.Identity() != nil && c.Identity().UserID == exceptUserID {
			continue
		}
		c.Send(env)
	}
}

// SendToUser sends to every connection tagged "user:<id>".
func (h *Hub) SendToUser(userID string, env protocol.Envelope) {
	h.BroadcastTag(UserTag(userID), env)
}

// CloseTag closes every connection carrying the tag.
func (h *Hub) CloseTag(tag string, code int, reason string) {
	for _, c := range h.tagged(tag) {
		c.CloseWithCode(code, reason)
	}
}

func (h *Hub) tagged(tag string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Conn, 0, 4)
	for c := range h.conns {
		if c.HasTag(tag) {
			out = append(out, c)
		}
	}
	return out
}

// UserTag is the fanout tag for one user's connections.
func UserTag(userID string) string { return "user:" + userID }

// RoomTag is the fanout tag for everyone in a room, spectators included.
func RoomTag(code string) string { return "room:" + code }

// LobbyTag addresses every lobby connection.
const LobbyTag = "lobby"
