package game

import (
	"time"

	"dicehall/internal/scoring"
)

// PlayerType distinguishes humans from AI seats.
type PlayerType string

const (
	PlayerHuman PlayerType = "human"
	PlayerAI    PlayerType = "ai"
)

// MaxRolls is the number of rolls a player gets per turn.
const MaxRolls = 3

// Player is a seated participant. A seat persists across disconnects until
// its reconnect deadline elapses.
type Player struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	AvatarSeed  string     `json:"avatarSeed"`
	Type        PlayerType `json:"type"`
	AIProfileID string     `json:"aiProfileId,omitempty"`
	IsHost      bool       `json:"isHost"`
	IsConnected bool       `json:"isConnected"`
	Forfeited   bool       `json:"forfeited"`
	TurnOrder   int        `json:"turnOrder"`

	DisconnectedAt    *time.Time `json:"disconnectedAt,omitempty"`
	ReconnectDeadline *time.Time `json:"reconnectDeadline,omitempty"`

	// TurnClockRemaining holds the frozen turn clock while the player is
	// disconnected mid-turn; zero otherwise.
	TurnClockRemaining time.Duration `json:"turnClockRemaining,omitempty"`

	Scorecard *scoring.Scorecard `json:"scorecard"`

	// Per-turn state.
	Dice           []int   `json:"currentDice,omitempty"` // nil or exactly five d6
	KeptMask       [5]bool `json:"keptMask"`
	RollsRemaining int     `json:"rollsRemaining"`
	TotalScore     int     `json:"totalScore"`
}

// NewPlayer creates a connected human seat.
func NewPlayer(id, displayName, avatarSeed string) *Player {
	return &Player{
		ID:          id,
		DisplayName: displayName,
		AvatarSeed:  avatarSeed,
		Type:        PlayerHuman,
		IsConnected: true,
		Scorecard:   scoring.NewScorecard(),
	}
}

// NewAIPlayer creates an AI seat. AI seats are always "connected".
func NewAIPlayer(id, displayName, avatarSeed, profileID string) *Player {
	p := NewPlayer(id, displayName, avatarSeed)
	p.Type = PlayerAI
	p.AIProfileID = profileID
	return p
}

// ResetTurn clears per-turn state and restores the roll allowance.
func (p *Player) ResetTurn() {
	p.Dice = nil
	p.KeptMask = [5]bool{}
	p.RollsRemaining = MaxRolls
}

// ResetForRematch wipes the scorecard and turn state, keeping the seat.
func (p *Player) ResetForRematch() {
	p.Scorecard = scoring.NewScorecard()
	p.TotalScore = 0
	p.Forfeited = false
	p.ResetTurn()
	p.RollsRemaining = 0
}

// DiceValues returns the current dice as a fixed array. ok is false when the
// player has not rolled this turn.
func (p *Player) DiceValues() (dice [5]int, ok bool) {
	if len(p.Dice) != 5 {
		return dice, false
	}
	copy(dice[:], p.Dice)
	return dice, true
}

// MarkDisconnected freezes the seat: records the disconnect time and the
// reconnect deadline, plus the remaining turn clock when mid-turn.
func (p *Player) MarkDisconnected(now time.Time, window time.Duration, turnClock time.Duration) {
	p.IsConnected = false
	at := now
	deadline := now.Add(window)
	p.DisconnectedAt = &at
	p.ReconnectDeadline = &deadline
	p.TurnClockRemaining = turnClock
}

// MarkReconnected clears the disconnect bookkeeping and returns the frozen
// turn clock, if any.
func (p *Player) MarkReconnected() time.Duration {
	p.IsConnected = true
	p.DisconnectedAt = nil
	p.ReconnectDeadline = nil
	clock := p.TurnClockRemaining
	p.TurnClockRemaining = 0
	return clock
}
