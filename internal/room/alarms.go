package room

import (
	"encoding/json"
	"time"

	"dicehall/internal/store"
)

// AlarmKind names the purpose of the room's single pending alarm.
type AlarmKind string

const (
	AlarmTurnTimeout       AlarmKind = "TURN_TIMEOUT"
	AlarmAFKWarning        AlarmKind = "AFK_WARNING"
	AlarmAFKTimeout        AlarmKind = "AFK_TIMEOUT"
	AlarmGameStart         AlarmKind = "GAME_START"
	AlarmAITurn            AlarmKind = "AI_TURN"
	AlarmReconnectDeadline AlarmKind = "RECONNECT_DEADLINE"
	AlarmRoomCleanup       AlarmKind = "ROOM_CLEANUP"
)

// AlarmDescriptor is written alongside every setAlarm so the handler can
// recover the alarm's purpose on wake, including after hibernation.
type AlarmDescriptor struct {
	Type        AlarmKind `json:"type"`
	PlayerID    string    `json:"playerId,omitempty"`
	ScheduledAt time.Time `json:"scheduledAt"`
}

func writeDescriptor(ns store.Namespace, d *AlarmDescriptor) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return ns.Put(store.KeyAlarmData, data)
}

func readDescriptor(ns store.Namespace) (*AlarmDescriptor, error) {
	data, ok, err := ns.Get(store.KeyAlarmData)
	if err != nil || !ok {
		return nil, err
	}
	var d AlarmDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func clearDescriptor(ns store.Namespace) error {
	return ns.Delete(store.KeyAlarmData)
}
