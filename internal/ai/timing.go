package ai

import (
	"math/rand"
	"time"
)

// Step names the decision about to be taken, so delays can differ between
// rolling, choosing keeps, and scoring.
type Step string

const (
	StepRoll  Step = "roll"
	StepKeep  Step = "keep"
	StepScore Step = "score"
)

// StepDelay returns how long the AI should appear to think before its next
// action. Delays shrink when the AI is comfortably ahead, stretch in the
// final rounds, and gain a hesitation pause when the best action's
// expected-value edge is large enough to make the AI double-check it.
func StepDelay(ctx *Context, p *Profile, step Step, an TurnAnalysis, rng *rand.Rand) time.Duration {
	var min, max time.Duration
	switch step {
	case StepRoll:
		min, max = p.Timing.RollMin, p.Timing.RollMax
	case StepKeep:
		min, max = p.Timing.KeepMin, p.Timing.KeepMax
	case StepScore:
		min, max = p.Timing.ScoreMin, p.Timing.ScoreMax
	default:
		min, max = p.Timing.RollMin, p.Timing.RollMax
	}

	d := sampleRange(min, max, rng)

	if ctx.Winning() && p.Timing.WinningFactor > 0 {
		d = time.Duration(float64(d) * p.Timing.WinningFactor)
	}
	if ctx.FinalRounds() && p.Timing.FinalRoundsFactor > 0 {
		d = time.Duration(float64(d) * p.Timing.FinalRoundsFactor)
	}

	if step != StepRoll && ctx.HasDice && an.EVGap > p.Timing.HesitationEVGap {
		d += sampleRange(p.Timing.HesitationMin, p.Timing.HesitationMax, rng)
	}

	if d < 0 {
		d = 0
	}
	return d
}

func sampleRange(min, max time.Duration, rng *rand.Rand) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}
