package room

import (
	"encoding/json"

	"dicehall/internal/ai"
	"dicehall/internal/game"
	"dicehall/internal/protocol"
	"dicehall/internal/scoring"
	"dicehall/internal/store"
)

// aiTableTalk is the quick-chat keys the AI roster picks from after scoring.
var aiTableTalk = []string{"nice", "gg", "wow", "ouch", "gl"}

// aiContext builds a fresh decision context from the current room state.
// Callers must have reloaded state already; decisions never read a stale snapshot.
func (a *Actor) aiContext(p *game.Player) *ai.Context {
	dice, has := p.DiceValues()
	bestOpponent := 0
	for _, id := range a.room.Game.PlayerOrder {
		if id == p.ID {
			continue
		}
		if q := a.room.Seat(id); q != nil && q.TotalScore > bestOpponent {
			bestOpponent = q.TotalScore
		}
	}
	return &ai.Context{
		Dice:           dice,
		HasDice:        has,
		RollsRemaining: p.RollsRemaining,
		Scorecard:      p.Scorecard,
		Available:      p.Scorecard.Remaining(),
		OwnScore:       p.TotalScore,
		BestOpponent:   bestOpponent,
		Round:          a.room.Game.RoundNumber,
	}
}

// scheduleAIStep persists the minimal turn descriptor and arms the next
// AI_TURN wake-up after a human-plausible delay.
func (a *Actor) scheduleAIStep(p *game.Player, step ai.Step) {
	prof := a.profiles[p.AIProfileID]
	if prof == nil {
		// Unknown profile on a seated AI: skip its turn rather than stall.
		if res, err := a.room.SkipTurn(p.ID, a.now()); err == nil {
			a.afterScore(res, "timeout")
		}
		return
	}

	ctx := a.aiContext(p)
	an := ai.AnalyzeTurn(ctx)
	delay := ai.StepDelay(ctx, prof, step, an, a.rng)

	state := ai.TurnState{PlayerID: p.ID, Phase: string(step)}
	if data, err := json.Marshal(state); err == nil {
		a.ns.Put(store.KeyAITurnData, data)
	}

	wake := a.now().Add(delay)
	a.aiWakeAt = &wake
	a.broadcast(protocol.NewEnvelope(protocol.EvtAIThinking, AIActionPayload{
		PlayerID:  p.ID,
		ProfileID: p.AIProfileID,
	}))
	a.reschedule()
}

// fireAITurn executes exactly one AI decision, then either re-arms the next
// step or ends the turn.
func (a *Actor) fireAITurn() {
	a.aiWakeAt = nil

	data, ok, err := a.ns.Get(store.KeyAITurnData)
	if err != nil || !ok {
		a.reschedule()
		return
	}
	var state ai.TurnState
	if err := json.Unmarshal(data, &state); err != nil {
		a.ns.Delete(store.KeyAITurnData)
		a.reschedule()
		return
	}

	p := a.room.CurrentPlayer()
	if p == nil || p.ID != state.PlayerID || p.Type != game.PlayerAI || a.room.Phase != game.RoomPlaying {
		// The descriptor outlived the turn it was written for.
		a.ns.Delete(store.KeyAITurnData)
		a.reschedule()
		return
	}

	prof := a.profiles[p.AIProfileID]
	if prof == nil {
		a.ns.Delete(store.KeyAITurnData)
		if res, err := a.room.SkipTurn(p.ID, a.now()); err == nil {
			a.afterScore(res, "timeout")
		}
		return
	}

	ctx := a.aiContext(p)
	decision := ai.Decide(ctx, prof, a.rng)

	switch decision.Kind {
	case ai.DecideRoll:
		if err := a.room.ValidateRoll(p.ID); err != nil {
			// Out of rolls despite the brain's choice: force a score.
			a.aiScore(p, prof, ai.AnalyzeTurn(ctx).BestCategory)
			return
		}
		if state.Phase == string(ai.StepKeep) && decision.Keep != ([5]bool{}) {
			a.broadcast(protocol.NewEnvelope(protocol.EvtAIKeeping, AIActionPayload{
				PlayerID:  p.ID,
				ProfileID: p.AIProfileID,
			}))
			a.broadcast(protocol.NewEnvelope(protocol.EvtDiceKept, DiceKeptPayload{
				PlayerID: p.ID,
				KeptMask: decision.Keep,
			}))
		}
		a.broadcast(protocol.NewEnvelope(protocol.EvtAIRolling, AIActionPayload{
			PlayerID:  p.ID,
			ProfileID: p.AIProfileID,
		}))
		dice, err := a.room.Roll(p.ID, decision.Keep, a.rng)
		if err != nil {
			a.ns.Delete(store.KeyAITurnData)
			a.reschedule()
			return
		}
		a.persistRoom()
		a.broadcast(protocol.NewEnvelope(protocol.EvtDiceRolled, DiceRolledPayload{
			PlayerID:       p.ID,
			Dice:           dice,
			KeptMask:       p.KeptMask,
			RollsRemaining: p.RollsRemaining,
		}))

		next := ai.StepKeep
		if p.RollsRemaining == 0 {
			next = ai.StepScore
		}
		a.scheduleAIStep(p, next)

	case ai.DecideScore:
		a.aiScore(p, prof, decision.Category)
	}
}

func (a *Actor) aiScore(p *game.Player, prof *ai.Profile, category scoring.Category) {
	if err := a.room.ValidateScore(p.ID, category); err != nil {
		// Brain picked a dead category; fall back to the deterministic skip.
		if res, err := a.room.SkipTurn(p.ID, a.now()); err == nil {
			a.afterScore(res, "timeout")
		}
		return
	}

	a.broadcast(protocol.NewEnvelope(protocol.EvtAIScoring, AIActionPayload{
		PlayerID:  p.ID,
		ProfileID: p.AIProfileID,
	}))
	res, err := a.room.ScoreCategory(p.ID, category, a.now())
	if err != nil {
		a.reschedule()
		return
	}

	// Table talk: chatty profiles drop a quick-chat line now and then.
	if prof.Traits.ChatFrequency > 0 && a.rng.Float64() < prof.Traits.ChatFrequency {
		key := aiTableTalk[a.rng.Intn(len(aiTableTalk))]
		if msg, err := a.chat.HandleQuick(p.ID, p.DisplayName, key); err == nil {
			a.persistChat()
			a.broadcast(protocol.NewEnvelope(protocol.EvtChatMessage, msg))
		}
	}

	a.afterScore(res, "")
}
