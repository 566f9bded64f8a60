package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dicehall/internal/config"
	"dicehall/internal/game"
	"dicehall/internal/lobby"
	"dicehall/internal/room"
	"dicehall/internal/store"
	"dicehall/internal/transport"
)

type testServer struct {
	ts    *httptest.Server
	auth  *transport.Authenticator
	rooms *room.Manager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Server.Port = "0"
	cfg.Server.Host = "127.0.0.1"
	cfg.Auth.JWTSecret = "test-secret"
	require.NoError(t, cfg.Validate())

	auth := transport.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	hub := transport.NewHub()

	var rooms *room.Manager
	s := store.NewMemoryStore(func(nsID string, at time.Time) {
		if rooms != nil {
			rooms.HandleAlarm(nsID, at)
		}
	})
	t.Cleanup(s.Close)

	rooms = room.NewManager(s, hub, room.DefaultSettings())
	t.Cleanup(rooms.Shutdown)

	hall := lobby.New(s.Open("lobby"), hub, rooms)
	rooms.OnStatus(hall.UpdateRoom)
	rooms.OnRemove(hall.RemoveRoom)
	go hall.Run()
	t.Cleanup(hall.Stop)

	h := New(cfg, auth, hub, rooms, hall)

	r := chi.NewRouter()
	r.Post("/auth/guest", h.GuestToken)
	r.Post("/room/new", h.CreateRoom)
	r.Get("/room/{code}/qr", h.RoomQR)
	r.Get("/ws/lobby", h.WSLobby)
	r.Get("/ws/room/{code}", h.WSRoom)
	r.Get("/health/live", h.HealthLive)
	r.Get("/health/ready", h.HealthReady)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	return &testServer{ts: ts, auth: auth, rooms: rooms}
}

func (s *testServer) token(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := s.auth.GenerateToken(transport.Identity{UserID: userID, DisplayName: name})
	require.NoError(t, err)
	return token
}

func (s *testServer) wsURL(path string) string {
	return strings.Replace(s.ts.URL, "http", "ws", 1) + path
}

// envelope mirrors the wire shape of outbound events for decoding in tests.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func readEvent(t *testing.T, ws *websocket.Conn) envelope {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestGuestToken(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Post(s.ts.URL+"/auth/guest", "application/json",
		bytes.NewBufferString(`{"displayName":"Alice"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Alice", body["displayName"])
	assert.True(t, strings.HasPrefix(body["userId"], "guest-"))

	id, err := s.auth.Verify(body["token"])
	require.NoError(t, err)
	assert.Equal(t, body["userId"], id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)
}

func TestGuestToken_MissingName(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Post(s.ts.URL+"/auth/guest", "application/json",
		bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateRoom_RequiresAuth(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Post(s.ts.URL+"/room/new", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateRoom(t *testing.T) {
	s := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, s.ts.URL+"/room/new",
		bytes.NewBufferString(`{"maxSeats":3,"public":false}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+s.token(t, "u1", "Alice"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Len(t, body["code"], room.CodeLength)
	assert.Contains(t, body["joinUrl"], body["code"])
	assert.Equal(t, 1, s.rooms.Live())
}

func TestRoomQR(t *testing.T) {
	s := newTestServer(t)
	actor := s.rooms.Create(game.DefaultConfig())

	resp, err := http.Get(s.ts.URL + "/room/" + actor.Code() + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "body should be a PNG")
}

func TestRoomQR_UnknownRoom(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.ts.URL + "/room/ZZZZZZ/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp, err := http.Get(s.ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}

func TestWSLobby_ConnectAndList(t *testing.T) {
	s := newTestServer(t)

	ws, _, err := websocket.DefaultDialer.Dial(
		s.wsURL("/ws/lobby")+"?token="+s.token(t, "u1", "Alice"), nil)
	require.NoError(t, err)
	defer ws.Close()

	assert.Equal(t, "PRESENCE_INIT", readEvent(t, ws).Type)
	assert.Equal(t, "LOBBY_CHAT_HISTORY", readEvent(t, ws).Type)
	assert.Equal(t, "LOBBY_ROOMS_LIST", readEvent(t, ws).Type)
}

func TestWSLobby_RejectsBadToken(t *testing.T) {
	s := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(s.wsURL("/ws/lobby")+"?token=garbage", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWSRoom_Connect(t *testing.T) {
	s := newTestServer(t)
	actor := s.rooms.Create(game.DefaultConfig())

	ws, _, err := websocket.DefaultDialer.Dial(
		s.wsURL("/ws/room/"+actor.Code())+"?token="+s.token(t, "u1", "Alice"), nil)
	require.NoError(t, err)
	defer ws.Close()

	env := readEvent(t, ws)
	assert.Equal(t, "CONNECTED", env.Type)
}

func TestWSRoom_UnknownRoom(t *testing.T) {
	s := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(
		s.wsURL("/ws/room/ZZZZZZ")+"?token="+s.token(t, "u1", "Alice"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWSRoom_PingPong(t *testing.T) {
	s := newTestServer(t)
	actor := s.rooms.Create(game.DefaultConfig())

	ws, _, err := websocket.DefaultDialer.Dial(
		s.wsURL("/ws/room/"+actor.Code())+"?token="+s.token(t, "u1", "Alice"), nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Equal(t, "CONNECTED", readEvent(t, ws).Type)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"PING"}`)))
	for {
		env := readEvent(t, ws)
		if env.Type == "PONG" {
			return
		}
	}
}
