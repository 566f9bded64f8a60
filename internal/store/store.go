// Package store is the persistence boundary for rooms and the lobby: a
// keyed byte store per namespace plus a single schedulable alarm. Room
// actors write through on every mutation, so a namespace can be rehydrated
// after hibernation from its stored keys alone.
package store

import (
	"time"
)

// Well-known keys within a room namespace.
const (
	KeyRoom         = "room"
	KeyGameState    = "game_state"
	KeyChatMessages = "chat:messages"
	KeyChatRates    = "chat:rateLimits"
	KeyJoinRequests = "join_requests"
	KeyAlarmData    = "alarm_data"
	KeyAITurnData   = "ai_turn_data"
)

// Namespace is one isolated keyspace (a room, or the lobby) with at most one
// pending alarm. Setting an alarm replaces any previous one.
type Namespace interface {
	// ID returns the namespace identifier, e.g. a room code.
	ID() string

	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error

	// SetAlarm schedules the namespace's alarm, replacing any pending one.
	SetAlarm(at time.Time) error
	// GetAlarm reports the pending alarm time, if any.
	GetAlarm() (time.Time, bool, error)
	// DeleteAlarm cancels the pending alarm if one is set.
	DeleteAlarm() error
}

// AlarmHandler is invoked when a namespace's alarm fires. It runs on its own
// goroutine; handlers forward into the owning actor's inbox rather than
// touching state directly.
type AlarmHandler func(nsID string, at time.Time)

// Store opens namespaces by id. Opening the same id twice returns the same
// underlying keyspace.
type Store interface {
	Open(id string) Namespace
	// Drop discards a namespace and its pending alarm.
	Drop(id string) error
	// Close cancels all pending alarms.
	Close()
}
