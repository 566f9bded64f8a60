package room

import (
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"time"

	"dicehall/internal/game"
	"dicehall/internal/store"
	"dicehall/internal/transport"
)

// Room codes avoid ambiguous characters (no I, L, O, 0, 1).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// CodeLength is the default room code length.
const CodeLength = 6

// ErrRoomNotFound is returned when no live or persisted room matches a code.
var ErrRoomNotFound = errors.New("room not found")

// Manager owns the registry of live room actors, creates codes, and routes
// store alarm fires to the right actor — rehydrating hibernated rooms on
// demand.
type Manager struct {
	mu    sync.Mutex
	rooms map[string]*Actor

	store store.Store
	hub   *transport.Hub
	set   Settings
	rng   *rand.Rand

	statusSink func(Status)
	removeSink func(code string)
}

// NewManager creates a registry over the given store and hub.
func NewManager(s store.Store, hub *transport.Hub, set Settings) *Manager {
	return &Manager{
		rooms: make(map[string]*Actor),
		store: s,
		hub:   hub,
		set:   set,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OnStatus registers the lobby directory sink for room status updates.
func (m *Manager) OnStatus(fn func(Status)) { m.statusSink = fn }

// OnRemove registers the sink notified when a room is destroyed.
func (m *Manager) OnRemove(fn func(code string)) { m.removeSink = fn }

// NewCode generates an unused room code.
func (m *Manager) NewCode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		code := m.randomCodeLocked()
		if _, live := m.rooms[code]; live {
			continue
		}
		ns := m.store.Open(code)
		if _, ok, _ := ns.Get(store.KeyRoom); !ok {
			return code
		}
	}
}

func (m *Manager) randomCodeLocked() string {
	b := make([]byte, CodeLength)
	for i := range b {
		b[i] = codeAlphabet[m.rng.Intn(len(codeAlphabet))]
	}
	return string(b)
}

// Create builds and starts a new room actor under a fresh code.
func (m *Manager) Create(cfg game.Config) *Actor {
	code := m.NewCode()
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(code, cfg)
}

// Get returns the live actor for a code, rehydrating a hibernated room from
// its persisted state when necessary.
func (m *Manager) Get(code string) (*Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.rooms[code]; ok {
		return a, nil
	}

	ns := m.store.Open(code)
	data, ok, err := ns.Get(store.KeyRoom)
	if err != nil || !ok {
		return nil, ErrRoomNotFound
	}
	var st Status
	if err := json.Unmarshal(data, &st); err != nil || st.Phase == string(game.RoomAbandoned) {
		return nil, ErrRoomNotFound
	}
	return m.startLocked(code, game.DefaultConfig()), nil
}

// startLocked wires and launches an actor. The actor rehydrates persisted
// state itself; the config argument only matters for brand-new rooms.
func (m *Manager) startLocked(code string, cfg game.Config) *Actor {
	a := NewActor(code, cfg, m.set, m.store.Open(code), m.hub)
	a.OnStatus(func(s Status) {
		if m.statusSink != nil {
			m.statusSink(s)
		}
	})
	a.OnIdle(m.destroy)
	m.rooms[code] = a
	go a.Run()
	return a
}

// HandleAlarm routes a store alarm fire to its room, waking hibernated rooms.
func (m *Manager) HandleAlarm(nsID string, at time.Time) {
	a, err := m.Get(nsID)
	if err != nil {
		return
	}
	a.Alarm(at)
}

// destroy removes a room from the registry and drops its namespace.
func (m *Manager) destroy(code string) {
	m.mu.Lock()
	a, ok := m.rooms[code]
	if ok {
		delete(m.rooms, code)
	}
	m.mu.Unlock()

	if ok {
		a.Stop()
	}
	m.store.Drop(code)
	m.hub.CloseTag(transport.RoomTag(code), 1000, "room closed")
	if m.removeSink != nil {
		m.removeSink(code)
	}
}

// Shutdown stops every live actor.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	actors := make([]*Actor, 0, len(m.rooms))
	for _, a := range m.rooms {
		actors = append(actors, a)
	}
	m.rooms = make(map[string]*Actor)
	m.mu.Unlock()

	for _, a := range actors {
		a.Stop()
	}
}

// Live reports how many rooms are currently resident.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}
