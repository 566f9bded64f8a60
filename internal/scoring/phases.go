package scoring

// Phase is the game-level phase driven by the room's event handling.
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseStarting   Phase = "starting"
	PhaseTurnRoll   Phase = "turn_roll"
	PhaseTurnDecide Phase = "turn_decide"
	PhaseGameOver   Phase = "game_over"
)

// phaseTransitions enumerates the legal phase adjacencies. Phases are driven
// by specific events, never by clients; this table is checked defensively.
var phaseTransitions = map[Phase][]Phase{
	PhaseWaiting:    {PhaseStarting, PhaseTurnRoll},
	PhaseStarting:   {PhaseTurnRoll, PhaseWaiting},
	PhaseTurnRoll:   {PhaseTurnDecide, PhaseTurnRoll, PhaseGameOver},
	PhaseTurnDecide: {PhaseTurnDecide, PhaseTurnRoll, PhaseGameOver},
	PhaseGameOver:   {PhaseWaiting},
}

// IsValidPhaseTransition reports whether moving from one phase to another is legal.
func IsValidPhaseTransition(from, to Phase) bool {
	for _, next := range phaseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
