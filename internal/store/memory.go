package store

import (
	"sync"
	"time"
)

// MemoryStore keeps every namespace in process memory. Alarms ride on
// time.Timer; the configured handler receives fires. Data survives a room
// actor hibernating and restarting because the store outlives the actor.
type MemoryStore struct {
	mu         sync.Mutex
	namespaces map[string]*memNamespace
	handler    AlarmHandler
	closed     bool
}

// NewMemoryStore creates a store whose alarm fires are delivered to handler.
// A nil handler drops fires, which is convenient in tests that only exercise
// the keyspace.
func NewMemoryStore(handler AlarmHandler) *MemoryStore {
	return &MemoryStore{
		namespaces: make(map[string]*memNamespace),
		handler:    handler,
	}
}

// Open returns the namespace for id, creating it if needed.
func (s *MemoryStore) Open(id string) Namespace {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[id]
	if !ok {
		ns = &memNamespace{
			id:    id,
			data:  make(map[string][]byte),
			store: s,
		}
		s.namespaces[id] = ns
	}
	return ns
}

// Drop discards the namespace and cancels its alarm.
func (s *MemoryStore) Drop(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.namespaces[id]; ok {
		ns.stopAlarmLocked()
		delete(s.namespaces, id)
	}
	return nil
}

// Close cancels every pending alarm and stops delivering fires.
func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for _, ns := range s.namespaces {
		ns.stopAlarmLocked()
	}
}

type memNamespace struct {
	id    string
	data  map[string][]byte
	store *MemoryStore

	timer   *time.Timer
	alarmAt time.Time
}

func (n *memNamespace) ID() string { return n.id }

func (n *memNamespace) Get(key string) ([]byte, bool, error) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	v, ok := n.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (n *memNamespace) Put(key string, value []byte) error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	n.data[key] = stored
	return nil
}

func (n *memNamespace) Delete(key string) error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	delete(n.data, key)
	return nil
}

// SetAlarm replaces any pending alarm with one at the given time. A time in
// the past fires immediately.
func (n *memNamespace) SetAlarm(at time.Time) error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	n.stopAlarmLocked()
	n.alarmAt = at

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	n.timer = time.AfterFunc(delay, func() { n.fire(at) })
	return nil
}

func (n *memNamespace) GetAlarm() (time.Time, bool, error) {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	if n.timer == nil {
		return time.Time{}, false, nil
	}
	return n.alarmAt, true, nil
}

func (n *memNamespace) DeleteAlarm() error {
	n.store.mu.Lock()
	defer n.store.mu.Unlock()
	n.stopAlarmLocked()
	return nil
}

func (n *memNamespace) stopAlarmLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
		n.alarmAt = time.Time{}
	}
}

func (n *memNamespace) fire(at time.Time) {
	n.store.mu.Lock()
	// A replaced or cancelled alarm may still get its timer callback in
	// flight; only the alarm that is still current may fire.
	if n.timer == nil || !n.alarmAt.Equal(at) || n.store.closed {
		n.store.mu.Unlock()
		return
	}
	n.timer = nil
	n.alarmAt = time.Time{}
	handler := n.store.handler
	n.store.mu.Unlock()

	if handler != nil {
		handler(n.id, at)
	}
}
