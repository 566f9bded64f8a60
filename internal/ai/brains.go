package ai

import (
	"math/rand"

	"dicehall/internal/scoring"
)

// Decide produces the next decision for an AI seat. The same context always
// yields the same analysis; the brain layers its own policy (and, for the
// noisier brains, randomness from rng) on top.
func Decide(ctx *Context, p *Profile, rng *rand.Rand) Decision {
	if !ctx.HasDice {
		return Decision{Kind: DecideRoll}
	}

	switch p.Brain {
	case BrainOptimal:
		return decideOptimal(ctx)
	case BrainProbabilistic:
		return decideProbabilistic(ctx, p, rng)
	case BrainPersonality:
		return decidePersonality(ctx, p, rng)
	case BrainRandom:
		return decideRandom(ctx, p, rng)
	default:
		return decideOptimal(ctx)
	}
}

// decideOptimal always follows the analysis recommendation.
func decideOptimal(ctx *Context) Decision {
	return AnalyzeTurn(ctx).Recommended
}

// decideProbabilistic follows the recommendation most of the time, but with
// probability scaled by (1 - skill) takes the other action when rolls remain.
func decideProbabilistic(ctx *Context, p *Profile, rng *rand.Rand) Decision {
	an := AnalyzeTurn(ctx)
	d := an.Recommended

	if ctx.RollsRemaining > 0 && rng.Float64() < (1-p.SkillLevel)*0.5 {
		if d.Kind == DecideScore {
			d = Decision{Kind: DecideRoll, Keep: an.KeepMask}
		} else {
			d = Decision{Kind: DecideScore, Category: an.BestCategory}
		}
	}
	return d
}

// decidePersonality starts from the optimal line and bends it by traits, then
// adds skill noise to the keep mask.
func decidePersonality(ctx *Context, p *Profile, rng *rand.Rand) Decision {
	an := AnalyzeTurn(ctx)
	d := an.Recommended

	// Risk tolerance: keep rolling on close calls.
	if d.Kind == DecideScore && ctx.RollsRemaining > 0 &&
		an.EVGap < 5 && rng.Float64() < p.Traits.RiskTolerance {
		d = Decision{Kind: DecideRoll, Keep: an.KeepMask}
	}

	if p.Traits.AlwaysUsesAllRolls && ctx.RollsRemaining > 0 {
		d = Decision{Kind: DecideRoll, Keep: an.KeepMask}
	}

	if d.Kind == DecideScore {
		d.Category = biasCategory(ctx, p, d.Category, rng)
	} else {
		d.Keep = noisyKeep(d.Keep, p.SkillLevel, rng)
	}
	return d
}

// decideRandom scores a random open category when out of rolls, otherwise
// rolls behind a random keep mask.
func decideRandom(ctx *Context, p *Profile, rng *rand.Rand) Decision {
	mustScore := ctx.RollsRemaining == 0
	if !mustScore && !p.Traits.AlwaysUsesAllRolls && rng.Float64() < 0.3 {
		mustScore = true
	}

	if mustScore {
		if len(ctx.Available) == 0 {
			return Decision{Kind: DecideScore, Category: scoring.Chance}
		}
		c := ctx.Available[rng.Intn(len(ctx.Available))]
		return Decision{Kind: DecideScore, Category: c}
	}

	var keep [5]bool
	for i := range keep {
		keep[i] = rng.Float64() < 0.5
	}
	return Decision{Kind: DecideRoll, Keep: keep}
}

// biasCategory may swap the analytically-best category for one the profile's
// traits favor, as long as it is worth something.
func biasCategory(ctx *Context, p *Profile, best scoring.Category, rng *rand.Rand) scoring.Category {
	if p.Traits.OvervaluesFullHouse && best != scoring.FullHouse {
		for _, c := range ctx.Available {
			if c != scoring.FullHouse {
				continue
			}
			if s, err := scoring.Score(c, ctx.Dice); err == nil && s > 0 {
				return c
			}
		}
	}

	if p.Traits.UpperSectionFocus > 0 && rng.Float64() < p.Traits.UpperSectionFocus {
		bestUpper := scoring.Category("")
		bestUpperScore := 0
		for _, c := range ctx.Available {
			if !isUpper(c) {
				continue
			}
			if s, err := scoring.Score(c, ctx.Dice); err == nil && s > bestUpperScore {
				bestUpper, bestUpperScore = c, s
			}
		}
		if bestUpperScore > 0 {
			return bestUpper
		}
	}

	if p.Traits.AvoidsEarlyZeros && ctx.Round <= 6 {
		if s, err := scoring.Score(best, ctx.Dice); err == nil && s == 0 {
			for _, c := range ctx.Available {
				if v, err := scoring.Score(c, ctx.Dice); err == nil && v > 0 {
					return c
				}
			}
		}
	}
	return best
}

// noisyKeep flips each mask bit with probability scaled by (1 - skill), so
// weaker players hold the wrong dice now and then.
func noisyKeep(keep [5]bool, skill float64, rng *rand.Rand) [5]bool {
	flip := (1 - skill) * 0.25
	for i := range keep {
		if rng.Float64() < flip {
			keep[i] = !keep[i]
		}
	}
	return keep
}

func isUpper(c scoring.Category) bool {
	for _, u := range scoring.UpperCategories {
		if c == u {
			return true
		}
	}
	return false
}
