// Package handlers wires HTTP to the game: websocket upgrades for the lobby
// and rooms, room creation, QR join links and health checks.
package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/yeqown/go-qrcode/v2"
	"github.com/yeqown/go-qrcode/writer/standard"

	"dicehall/internal/config"
	"dicehall/internal/game"
	"dicehall/internal/lobby"
	"dicehall/internal/room"
	"dicehall/internal/transport"
)

// Handler carries the server-wide collaborators every endpoint needs.
type Handler struct {
	cfg   *config.ServerConfig
	auth  *transport.Authenticator
	hub   *transport.Hub
	rooms *room.Manager
	lobby *lobby.Lobby
}

// New builds the handler set.
func New(cfg *config.ServerConfig, auth *transport.Authenticator, hub *transport.Hub, rooms *room.Manager, l *lobby.Lobby) *Handler {
	return &Handler{cfg: cfg, auth: auth, hub: hub, rooms: rooms, lobby: l}
}

func (h *Handler) connOptions() transport.Options {
	return transport.Options{
		MaxMessageSize:    h.cfg.Server.MaxMessageSize,
		SendBufferSize:    h.cfg.Server.SendBufferSize,
		MaxAttachmentSize: h.cfg.Server.MaxAttachmentSize,
		MessagesPerSecond: h.cfg.Server.RateLimit,
		MessageBurst:      h.cfg.Server.RateLimitBurst,
	}
}

// authenticate verifies the session token and writes the HTTP error itself
// when verification fails.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (*transport.Identity, bool) {
	id, err := h.auth.Verify(transport.TokenFromRequest(r))
	if err != nil {
		http.Error(w, transport.CodeForAuthError(err), transport.StatusForAuthError(err))
		return nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ failed to encode response: %v", err)
	}
}

// GuestToken issues a session token for a guest display name. Deployments
// with a real auth service disable this route.
func (h *Handler) GuestToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DisplayName string `json:"displayName"`
		AvatarSeed  string `json:"avatarSeed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(body.DisplayName)
	if name == "" {
		http.Error(w, "displayName is required", http.StatusBadRequest)
		return
	}
	if len(name) > 32 {
		name = name[:32]
	}

	id := transport.Identity{
		UserID:      "guest-" + uuid.NewString(),
		DisplayName: name,
		AvatarSeed:  body.AvatarSeed,
	}
	token, err := h.auth.GenerateToken(id)
	if err != nil {
		http.Error(w, "token generation failed", transport.StatusForAuthError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token":       token,
		"userId":      id.UserID,
		"displayName": id.DisplayName,
	})
}

// CreateRoom opens a new room and returns its code and shareable join link.
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}

	cfg := game.DefaultConfig()
	cfg.MaxSeats = h.cfg.Game.MaxSeatsPerRoom
	cfg.TurnTimeoutSecs = int(h.cfg.Game.TurnTimeout.Seconds())

	if r.Body != nil {
		var body struct {
			MaxSeats        int   `json:"maxSeats"`
			Public          *bool `json:"public"`
			AllowSpectators *bool `json:"allowSpectators"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			if body.MaxSeats >= 2 && body.MaxSeats <= h.cfg.Game.MaxSeatsPerRoom {
				cfg.MaxSeats = body.MaxSeats
			}
			if body.Public != nil {
				cfg.Public = *body.Public
			}
			if body.AllowSpectators != nil {
				cfg.AllowSpectators = *body.AllowSpectators
			}
		}
	}

	actor := h.rooms.Create(cfg)
	log.Printf("🎲 room %s created (seats=%d public=%v)", actor.Code(), cfg.MaxSeats, cfg.Public)
	writeJSON(w, http.StatusCreated, map[string]string{
		"code":    actor.Code(),
		"joinUrl": h.joinURL(actor.Code()),
	})
}

func (h *Handler) joinURL(code string) string {
	base := strings.TrimRight(h.cfg.Server.PublicBaseURL, "/")
	return base + "/room/" + code
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// RoomQR renders the room's join link as a PNG QR code.
func (h *Handler) RoomQR(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	if _, err := h.rooms.Get(code); err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	qrc, err := qrcode.NewWith(h.joinURL(code),
		qrcode.WithErrorCorrectionLevel(qrcode.ErrorCorrectionMedium),
		qrcode.WithEncodingMode(qrcode.EncModeByte),
	)
	if err != nil {
		http.Error(w, "failed to create QR code", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	qw := standard.NewWithWriter(nopCloser{&buf},
		standard.WithBuiltinImageEncoder(standard.PNG_FORMAT),
		standard.WithQRWidth(8),
	)
	if err := qrc.Save(qw); err != nil {
		http.Error(w, "failed to render QR code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.Write(buf.Bytes())
}

// WSLobby upgrades a lobby websocket and runs it until the client goes away.
func (h *Handler) WSLobby(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if h.hub.Len() >= h.cfg.Server.MaxWSConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	ws, err := transport.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ lobby upgrade failed for %s: %v", id.UserID, err)
		return
	}

	conn := transport.NewConn(ws, id, h.connOptions())
	h.hub.Register(conn)
	go conn.WritePump()

	h.lobby.Join(conn)
	conn.ReadLoop(h.lobby.Deliver)
	h.lobby.Leave(conn)
	h.hub.Unregister(conn)
}

// WSRoom upgrades a room websocket. The room is resolved (and rehydrated if
// hibernated) before the upgrade so a bad code stays a plain HTTP 404.
func (h *Handler) WSRoom(w http.ResponseWriter, r *http.Request) {
	code := strings.ToUpper(chi.URLParam(r, "code"))
	actor, err := h.rooms.Get(code)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}

	id, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if h.hub.Len() >= h.cfg.Server.MaxWSConnections {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	ws, err := transport.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("⚠️ room upgrade failed for %s: %v", id.UserID, err)
		return
	}

	conn := transport.NewConn(ws, id, h.connOptions())
	h.hub.Register(conn)
	go conn.WritePump()

	actor.Join(conn)
	conn.ReadLoop(actor.Deliver)
	actor.Leave(conn)
	h.hub.Unregister(conn)
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// HealthReady reports readiness to accept game traffic.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.rooms == nil || h.lobby == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
