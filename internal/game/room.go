package game

import (
	"math/rand"
	"sort"
	"time"

	"dicehall/internal/scoring"
)

// RoomPhase is the room-level lifecycle, distinct from the game phase.
type RoomPhase string

const (
	RoomWaiting   RoomPhase = "waiting"
	RoomStarting  RoomPhase = "starting"
	RoomPlaying   RoomPhase = "playing"
	RoomCompleted RoomPhase = "completed"
	RoomAbandoned RoomPhase = "abandoned"
)

// Config holds the host-chosen room settings.
type Config struct {
	MaxSeats        int  `json:"maxSeats"` // 2..4
	Public          bool `json:"public"`
	TurnTimeoutSecs int  `json:"turnTimeoutSeconds"`
	AllowSpectators bool `json:"allowSpectators"`
}

// DefaultConfig returns the room settings used when the creator specifies none.
func DefaultConfig() Config {
	return Config{
		MaxSeats:        4,
		Public:          true,
		TurnTimeoutSecs: 60,
		AllowSpectators: true,
	}
}

/// Room is the authoritative data model for one room: the seat table, the host,
// the settings and the embedded game state. All mutation goes through the
// owning room actor; Room itself does no locking.
type Room struct {
	Code      string     `json:"code"`
	Phase     RoomPhase  `json:"phase"`
	HostID    string     `json:"hostId"`
	Config    Config     `json:"config"`
	CreatedAt time.Time  `json:"createdAt"`
	StartedAt *time.Time `json:"startedAt,omitempty"`

	Seats     map[string]*Player `json:"seats"`
	SeatOrder []string           `json:"seatOrder"` // join order

	Game *State `json:"game"`
}

// NewRoom creates an empty room in the waiting phase.
func NewRoom(code string, cfg Config, now time.Time) *Room {
	return &Room{
		Code:      code,
		Phase:     RoomWaiting,
		Config:    cfg,
		CreatedAt: now,
		Seats:     make(map[string]*Player),
		Game:      NewState(),
	}
}

// Seat returns the seated player with the given id, or nil.
func (r *Room) Seat(playerID string) *Player {
	return r.Seats[playerID]
}

// SeatedPlayers returns all seats in join order.
func (r *Room) SeatedPlayers() []*Player {
	players := make([]*Player, 0, len(r.SeatOrder))
	for _, id := range r.SeatOrder {
		if p, ok := r.Seats[id]; ok {
			players = append(players, p)
		}
	}
	return players
}

// HumanCount returns the number of seated human players.
func (r *Room) HumanCount() int {
	n := 0
	for _, p := range r.Seats {
		if p.Type == PlayerHuman {
			n++
		}
	}
	return n
}

// FreeSeats returns how many seats are still open.
func (r *Room) FreeSeats() int {
	return r.Config.MaxSeats - len(r.Seats)
}

// AddSeat seats a player. The first seat becomes host.
func (r *Room) AddSeat(p *Player) error {
	if len(r.Seats) >= r.Config.MaxSeats {
		return ErrRoomFull
	}
	if len(r.Seats) == 0 {
		p.IsHost = true
		r.HostID = p.ID
	}
	r.Seats[p.ID] = p
	r.SeatOrder = append(r.SeatOrder, p.ID)
	return nil
}

// RemoveSeat drops a seat entirely. If the host leaves while waiting, the
// oldest remaining seat inherits the host role.
func (r *Room) RemoveSeat(playerID string) {
	if _, ok := r.Seats[playerID]; !ok {
		return
	}
	delete(r.Seats, playerID)
	for i, id := range r.SeatOrder {
		if id == playerID {
			r.SeatOrder = append(r.SeatOrder[:i], r.SeatOrder[i+1:]...)
			break
		}
	}
	if r.HostID == playerID {
		r.HostID = ""
		for _, id := range r.SeatOrder {
			if p := r.Seats[id]; p != nil && p.Type == PlayerHuman {
				p.IsHost = true
				r.HostID = id
				break
			}
		}
	}
}

// CurrentPlayer returns the seat whose turn it is, or nil.
func (r *Room) CurrentPlayer() *Player {
	return r.Seats[r.Game.CurrentPlayerID()]
}

// StartGame moves the room into the starting countdown: player order is
// randomized and every seat's turn state is primed.
func (r *Room) StartGame(rng *rand.Rand, now time.Time) {
	order := append([]string(nil), r.SeatOrder...)
	rng.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	r.startWithOrder(order, scoring.PhaseStarting, now)
	r.Phase = RoomStarting
}

// QuickPlayStart begins play immediately against AI seats, the human first.
func (r *Room) QuickPlayStart(humanID string, now time.Time) {
	order := make([]string, 0, len(r.SeatOrder))
	order = append(order, humanID)
	for _, id := range r.SeatOrder {
		if id != humanID {
			order = append(order, id)
		}
	}
	r.startWithOrder(order, scoring.PhaseTurnRoll, now)
	r.Phase = RoomPlaying
	r.Game.TurnStartedAt = &now
}

func (r *Room) startWithOrder(order []string, phase scoring.Phase, now time.Time) {
	r.Game = NewState()
	r.Game.Phase = phase
	r.Game.PlayerOrder = order
	r.Game.GameStartedAt = &now
	started := now
	r.StartedAt = &started
	for i, id := range order {
		if p := r.Seats[id]; p != nil {
			p.TurnOrder = i
			p.Scorecard = scoring.NewScorecard()
			p.TotalScore = 0
			p.Forfeited = false
			p.ResetTurn()
		}
	}
}

// BeginPlay transitions from the starting countdown into the first turn.
func (r *Room) BeginPlay(now time.Time) {
	r.Phase = RoomPlaying
	r.Game.Phase = scoring.PhaseTurnRoll
	r.Game.TurnStartedAt = &now
	if p := r.CurrentPlayer(); p != nil {
		p.ResetTurn()
	}
}

// Roll re-rolls the dice the mask does not keep, preserving kept values.
// The first roll of a turn ignores the mask entirely.
func (r *Room) Roll(playerID string, kept [5]bool, rng *rand.Rand) ([5]int, error) {
	p := r.Seats[playerID]
	if p == nil {
		return [5]int{}, ErrGameNotStarted
	}

	var dice [5]int
	prev, hadDice := p.DiceValues()
	for i := 0; i < 5; i++ {
		if hadDice && kept[i] {
			dice[i] = prev[i]
		} else {
			dice[i] = rng.Intn(6) + 1
		}
	}

	p.Dice = dice[:]
	if hadDice {
		p.KeptMask = kept
	} else {
		p.KeptMask = [5]bool{}
	}
	p.RollsRemaining--
	r.Game.Phase = scoring.PhaseTurnDecide
	return dice, nil
}

// Keep records which dice the current player is holding for the next roll.
func (r *Room) Keep(playerID string, mask [5]bool) error {
	p := r.Seats[playerID]
	if p == nil {
		return ErrGameNotStarted
	}
	p.KeptMask = mask
	return nil
}

// ScoreResult describes the outcome of scoring a category.
type ScoreResult struct {
	PlayerID     string
	Category     scoring.Category
	Gained       int
	RepeatBonus  bool
	UpperBonus   int
	TotalScore   int
	GameOver     bool
	NextPlayerID string
	Rankings     []Ranking
}

// ScoreCategory writes the current dice into a category, settles bonuses and
// advances the turn. When every scorecard is complete the game ends.
func (r *Room) ScoreCategory(playerID string, c scoring.Category, now time.Time) (*ScoreResult, error) {
	p := r.Seats[playerID]
	if p == nil {
		return nil, ErrGameNotStarted
	}
	dice, ok := p.DiceValues()
	if !ok {
		return nil, ErrInvalidPhase
	}

	gained, repeat, err := scoring.ApplyScore(p.Scorecard, c, dice)
	if err != nil {
		return nil, err
	}
	p.TotalScore = p.Scorecard.Total()

	res := &ScoreResult{
		PlayerID:    playerID,
		Category:    c,
		Gained:      gained,
		RepeatBonus: repeat,
		UpperBonus:  p.Scorecard.UpperBonus,
		TotalScore:  p.TotalScore,
	}
	r.endTurn(res, now)
	return res, nil
}

// SkipTurn zero-scores the first unscored category for a timed-out or
// forfeited player and advances the turn.
func (r *Room) SkipTurn(playerID string, now time.Time) (*ScoreResult, error) {
	p := r.Seats[playerID]
	if p == nil {
		return nil, ErrGameNotStarted
	}
	c, ok := p.Scorecard.FirstUnscored()
	if !ok {
		return nil, ErrCategoryAlreadyScored
	}
	p.Scorecard.Scores[c] = 0
	p.TotalScore = p.Scorecard.Total()

	res := &ScoreResult{
		PlayerID:   playerID,
		Category:   c,
		Gained:     0,
		TotalScore: p.TotalScore,
	}
	r.endTurn(res, now)
	return res, nil
}

func (r *Room) endTurn(res *ScoreResult, now time.Time) {
	if p := r.Seats[res.PlayerID]; p != nil {
		p.Dice = nil
		p.KeptMask = [5]bool{}
		p.RollsRemaining = 0
	}

	if r.allScorecardsComplete() {
		r.finishGame(now)
		res.GameOver = true
		res.Rankings = r.Game.Rankings
		return
	}

	next, wrapped := r.Game.NextPlayerIndex()
	r.Game.CurrentPlayerIndex = next
	if wrapped {
		r.Game.RoundNumber++
	}
	r.Game.TurnNumber = r.Game.RoundNumber
	r.Game.Phase = scoring.PhaseTurnRoll
	r.Game.TurnStartedAt = &now

	if p := r.CurrentPlayer(); p != nil {
		p.ResetTurn()
		res.NextPlayerID = p.ID
	}
}

func (r *Room) allScorecardsComplete() bool {
	for _, id := range r.Game.PlayerOrder {
		p := r.Seats[id]
		if p == nil {
			continue
		}
		if !p.Forfeited && !p.Scorecard.Complete() {
			return false
		}
	}
	return len(r.Game.PlayerOrder) > 0
}

func (r *Room) finishGame(now time.Time) {
	r.Phase = RoomCompleted
	r.Game.Phase = scoring.PhaseGameOver
	r.Game.GameCompletedAt = &now
	r.Game.TurnStartedAt = nil

	rankings := make([]Ranking, 0, len(r.Game.PlayerOrder))
	for _, id := range r.Game.PlayerOrder {
		p := r.Seats[id]
		if p == nil {
			continue
		}
		rankings = append(rankings, Ranking{
			PlayerID:    p.ID,
			DisplayName: p.DisplayName,
			Score:       p.Scorecard.Total(),
		})
	}
	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].Score > rankings[j].Score
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}
	r.Game.Rankings = rankings
}

// Rematch resets scorecards and returns the room to the waiting phase,
// preserving seats.
func (r *Room) Rematch() {
	r.Phase = RoomWaiting
	r.Game = NewState()
	r.StartedAt = nil
	for _, p := range r.Seats {
		p.ResetForRematch()
	}
}
