package room

import (
	"dicehall/internal/chat"
	"dicehall/internal/game"
	"dicehall/internal/scoring"
)

// Role is the capacity a connection was admitted in.
type Role string

const (
	RolePlayer    Role = "player"
	RoleSpectator Role = "spectator"
)

// Attachment is the serializable per-connection context. It is the sole
// source of connection identity after a hibernation resume.
type Attachment struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarSeed  string `json:"avatarSeed"`
	Role        Role   `json:"role"`
	ConnectedAt string `json:"connectedAt"`
	IsHost      bool   `json:"isHost"`
}

// Event payloads.

type ConnectedPayload struct {
	Room           *game.Room      `json:"room"`
	You            string          `json:"you"`
	Role           Role            `json:"role"`
	SpectatorCount int             `json:"spectatorCount"`
	ChatHistory    []*chat.Message `json:"chatHistory"`
}

type PlayerJoinedPayload struct {
	Player *game.Player `json:"player"`
}

type PlayerLeftPayload struct {
	PlayerID string `json:"playerId"`
	NewHost  string `json:"newHostId,omitempty"`
}

type PlayerDisconnectedPayload struct {
	PlayerID          string `json:"playerId"`
	ReconnectDeadline string `json:"reconnectDeadline"`
}

type PlayerReconnectedPayload struct {
	PlayerID string `json:"playerId"`
}

type SpectatorJoinedPayload struct {
	DisplayName    string `json:"displayName"`
	SpectatorCount int    `json:"spectatorCount"`
}

type GameStartingPayload struct {
	CountdownSeconds int      `json:"countdownSeconds"`
	PlayerOrder      []string `json:"playerOrder"`
}

type GameStartedPayload struct {
	PlayerOrder []string `json:"playerOrder"`
	FirstPlayer string   `json:"firstPlayer"`
}

type TurnStartedPayload struct {
	PlayerID    string `json:"playerId"`
	Round       int    `json:"round"`
	TimeoutSecs int    `json:"timeoutSeconds"`
}

type TurnChangedPayload struct {
	PreviousPlayerID string `json:"previousPlayerId"`
	PlayerID         string `json:"playerId"`
	Round            int    `json:"round"`
}

type DiceRolledPayload struct {
	PlayerID       string  `json:"playerId"`
	Dice           [5]int  `json:"dice"`
	KeptMask       [5]bool `json:"keptMask"`
	RollsRemaining int     `json:"rollsRemaining"`
}

type DiceKeptPayload struct {
	PlayerID string  `json:"playerId"`
	KeptMask [5]bool `json:"keptMask"`
}

type CategoryScoredPayload struct {
	PlayerID    string           `json:"playerId"`
	Category    scoring.Category `json:"category"`
	Score       int              `json:"score"`
	RepeatBonus bool             `json:"repeatPatternBonus,omitempty"`
	UpperBonus  int              `json:"upperBonus,omitempty"`
	TotalScore  int              `json:"totalScore"`
}

type TurnSkippedPayload struct {
	PlayerID       string           `json:"playerId"`
	Reason         string           `json:"reason"` // "timeout" or "disconnect"
	CategoryScored scoring.Category `json:"categoryScored"`
	Score          int              `json:"score"`
}

type PlayerAFKPayload struct {
	PlayerID         string `json:"playerId"`
	SecondsRemaining int    `json:"secondsRemaining"`
}

type GameOverPayload struct {
	Rankings []game.Ranking `json:"rankings"`
}

type AIActionPayload struct {
	PlayerID  string `json:"playerId"`
	ProfileID string `json:"profileId"`
}

type TypingUpdatePayload struct {
	Typers []string `json:"typers"`
}

type JoinRequestReceivedPayload struct {
	RequestID     string `json:"requestId"`
	RequesterID   string `json:"requesterId"`
	RequesterName string `json:"requesterName"`
	ExpiresAt     string `json:"expiresAt"`
}
