package game

import (
	"time"

	"dicehall/internal/scoring"
)

// TotalRounds is the number of rounds (and turns per player) in a game.
const TotalRounds = 13

// State is the authoritative game progression for one match.
type State struct {
	Phase              scoring.Phase `json:"phase"`
	PlayerOrder        []string      `json:"playerOrder"`
	CurrentPlayerIndex int           `json:"currentPlayerIndex"`
	TurnNumber         int           `json:"turnNumber"`  // 1..13, per player
	RoundNumber        int           `json:"roundNumber"` // 1..13
	TurnStartedAt      *time.Time    `json:"turnStartedAt,omitempty"`
	GameStartedAt      *time.Time    `json:"gameStartedAt,omitempty"`
	GameCompletedAt    *time.Time    `json:"gameCompletedAt,omitempty"`
	Rankings           []Ranking     `json:"rankings,omitempty"`
}

// Ranking is one row of the final standings.
type Ranking struct {
	PlayerID    string `json:"playerId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"`
}

// NewState returns a fresh pre-game state.
func NewState() *State {
	return &State{
		Phase:       scoring.PhaseWaiting,
		TurnNumber:  1,
		RoundNumber: 1,
	}
}

// CurrentPlayerID returns the id of the player whose turn it is, or "" when
// no game is running.
func (s *State) CurrentPlayerID() string {
	if len(s.PlayerOrder) == 0 {
		return ""
	}
	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.PlayerOrder) {
		return ""
	}
	return s.PlayerOrder[s.CurrentPlayerIndex]
}

// NextPlayerIndex returns the index following the current one, wrapping at
// the end of the order. wrapped is true when the cursor returned to index 0,
// which ends a round.
func (s *State) NextPlayerIndex() (next int, wrapped bool) {
	if len(s.PlayerOrder) == 0 {
		return 0, false
	}
	next = (s.CurrentPlayerIndex + 1) % len(s.PlayerOrder)
	return next, next == 0
}

// InProgress reports whether a turn-taking phase is active.
func (s *State) InProgress() bool {
	return s.Phase == scoring.PhaseTurnRoll || s.Phase == scoring.PhaseTurnDecide
}
