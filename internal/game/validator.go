package game

import "dicehall/internal/scoring"

// The validator answers one question per command kind: may this caller run
// this command against the current state? Every rejection is a *RuleError
// from the closed set in errors.go. Validation never mutates.

// ValidateStartGame checks START_GAME: waiting phase, host caller, two seats.
func (r *Room) ValidateStartGame(callerID string) error {
	if r.Game.Phase != scoring.PhaseWaiting {
		return ErrGameInProgress
	}
	if callerID != r.HostID {
		return ErrNotHost
	}
	if len(r.Seats) < 2 {
		return ErrNotEnoughPlayers
	}
	return nil
}

// ValidateQuickPlay checks QUICK_PLAY_START: waiting phase, host caller, no
// other seated humans, and room for at least one AI seat.
func (r *Room) ValidateQuickPlay(callerID string, aiCount int) error {
	if r.Game.Phase != scoring.PhaseWaiting {
		return ErrGameInProgress
	}
	if callerID != r.HostID {
		return ErrNotHost
	}
	if r.HumanCount() > 1 {
		return ErrGameInProgress
	}
	if aiCount < 1 {
		return ErrNotEnoughPlayers
	}
	if len(r.Seats)+aiCount > r.Config.MaxSeats {
		return ErrRoomFull
	}
	return nil
}

// ValidateRoll checks DICE_ROLL: a turn phase, current player, rolls left.
func (r *Room) ValidateRoll(callerID string) error {
	if r.Game.Phase != scoring.PhaseTurnRoll && r.Game.Phase != scoring.PhaseTurnDecide {
		if r.Game.Phase == scoring.PhaseWaiting || r.Game.Phase == scoring.PhaseStarting {
			return ErrGameNotStarted
		}
		return ErrInvalidPhase
	}
	if callerID != r.Game.CurrentPlayerID() {
		return ErrNotYourTurn
	}
	p := r.Seats[callerID]
	if p == nil || p.RollsRemaining <= 0 {
		return ErrNoRollsRemaining
	}
	return nil
}

// ValidateKeep checks DICE_KEEP: decide phase, current player.
func (r *Room) ValidateKeep(callerID string) error {
	if r.Game.Phase != scoring.PhaseTurnDecide {
		return ErrInvalidPhase
	}
	if callerID != r.Game.CurrentPlayerID() {
		return ErrNotYourTurn
	}
	return nil
}

// ValidateScore checks CATEGORY_SCORE: decide phase, current player, category
// known and still open.
func (r *Room) ValidateScore(callerID string, c scoring.Category) error {
	if r.Game.Phase != scoring.PhaseTurnDecide {
		return ErrInvalidPhase
	}
	if callerID != r.Game.CurrentPlayerID() {
		return ErrNotYourTurn
	}
	if !scoring.ValidCategory(c) {
		return ErrUnknownCategory
	}
	p := r.Seats[callerID]
	if p != nil && p.Scorecard.Has(c) {
		return ErrCategoryAlreadyScored
	}
	return nil
}

// ValidateRematch checks REMATCH: game over, host caller.
func (r *Room) ValidateRematch(callerID string) error {
	if r.Game.Phase != scoring.PhaseGameOver {
		return ErrGameNotStarted
	}
	if callerID != r.HostID {
		return ErrNotHost
	}
	return nil
}

// ValidateAddAI checks ADD_AI_PLAYER: waiting phase, host caller, free seat.
func (r *Room) ValidateAddAI(callerID string, profileKnown bool) error {
	if r.Game.Phase != scoring.PhaseWaiting {
		return ErrGameInProgress
	}
	if callerID != r.HostID {
		return ErrNotHost
	}
	if r.FreeSeats() < 1 {
		return ErrRoomFull
	}
	if !profileKnown {
		return ErrUnknownProfile
	}
	return nil
}
