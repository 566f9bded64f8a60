package ai

import (
	"dicehall/internal/scoring"
)

// DecisionKind separates the two actions a brain can take.
type DecisionKind string

const (
	DecideRoll  DecisionKind = "roll"
	DecideScore DecisionKind = "score"
)

// Decision is one step of an AI turn: either re-roll with a keep mask or
// score a category.
type Decision struct {
	Kind     DecisionKind
	Keep     [5]bool
	Category scoring.Category
}

// Context is everything a brain may look at. It is built fresh from the
// latest persisted state on every alarm wake-up.
type Context struct {
	Dice           [5]int
	HasDice        bool // false before the first roll of the turn
	RollsRemaining int
	Scorecard      *scoring.Scorecard
	Available      []scoring.Category
	OwnScore       int
	BestOpponent   int
	Round          int
}

// Winning reports whether the AI currently leads.
func (c *Context) Winning() bool { return c.OwnScore > c.BestOpponent }

// FinalRounds reports whether the game is in its last three rounds.
func (c *Context) FinalRounds() bool { return c.Round >= 11 }

// TurnAnalysis is the output of AnalyzeTurn: the recommended action plus the
// expected values that justify it.
type TurnAnalysis struct {
	Recommended  Decision
	BestCategory scoring.Category
	BestScore    int
	KeepMask     [5]bool
	ScoreEV      float64
	RollEV       float64
	// EVGap is the margin between the two candidate actions; a small gap
	// means the decision is close and a human would hesitate.
	EVGap float64
}

// AnalyzeTurn evaluates the current dice against the open categories and
// recommends either scoring the best category or re-rolling behind a keep
// mask. The expected values are heuristic, not exhaustive enumeration.
func AnalyzeTurn(ctx *Context) TurnAnalysis {
	if !ctx.HasDice {
		// Nothing to evaluate yet: roll everything.
		return TurnAnalysis{
			Recommended: Decision{Kind: DecideRoll},
			RollEV:      15, // mean sum of five d6, a neutral baseline
		}
	}

	bestCat, bestScore := bestCategory(ctx)
	keep := recommendKeep(ctx)
	scoreEV := float64(bestScore)
	rollEV := estimateRollEV(ctx, keep, bestScore)

	an := TurnAnalysis{
		BestCategory: bestCat,
		BestScore:    bestScore,
		KeepMask:     keep,
		ScoreEV:      scoreEV,
		RollEV:       rollEV,
	}
	an.EVGap = scoreEV - rollEV
	if an.EVGap < 0 {
		an.EVGap = -an.EVGap
	}

	if ctx.RollsRemaining > 0 && rollEV > scoreEV {
		an.Recommended = Decision{Kind: DecideRoll, Keep: keep}
	} else {
		an.Recommended = Decision{Kind: DecideScore, Category: bestCat}
	}
	return an
}

// bestCategory returns the open category with the highest immediate score.
// Ties go to the earlier category in scorecard order, which keeps the choice
// deterministic.
func bestCategory(ctx *Context) (scoring.Category, int) {
	best := scoring.Category("")
	bestScore := -1
	for _, c := range ctx.Available {
		s, err := scoring.Score(c, ctx.Dice)
		if err != nil {
			continue
		}
		if s > bestScore {
			best, bestScore = c, s
		}
	}
	if bestScore < 0 {
		// No open category; callers guard against this, but stay safe.
		return scoring.Chance, 0
	}
	return best, bestScore
}

// recommendKeep builds a keep mask: hold a straight draw when a straight
// category is open and a 3+ run is showing, otherwise hold the most frequent
// face.
func recommendKeep(ctx *Context) [5]bool {
	var keep [5]bool

	if straightOpen(ctx.Available) {
		if run := longestRunFaces(ctx.Dice); len(run) >= 3 {
			used := map[int]bool{}
			for i, d := range ctx.Dice {
				if run[d] && !used[d] {
					keep[i] = true
					used[d] = true
				}
			}
			return keep
		}
	}

	var counts [7]int
	for _, d := range ctx.Dice {
		counts[d]++
	}
	bestFace, bestCount := 0, 0
	for face := 6; face >= 1; face-- { // prefer high faces on ties
		if counts[face] > bestCount {
			bestFace, bestCount = face, counts[face]
		}
	}
	if bestCount >= 2 {
		for i, d := range ctx.Dice {
			if d == bestFace {
				keep[i] = true
			}
		}
	}
	return keep
}

// estimateRollEV approximates the value of re-rolling the dice the mask does
// not keep. Each re-rolled die is worth a bit more than its mean face value
// because it may extend the kept pattern; the margin shrinks when the best
// immediate score is already strong.
func estimateRollEV(ctx *Context, keep [5]bool, bestScore int) float64 {
	if ctx.RollsRemaining <= 0 {
		return 0
	}
	rerolled := 0
	for _, k := range keep {
		if !k {
			rerolled++
		}
	}
	if rerolled == 0 {
		return 0
	}

	ev := float64(bestScore) + float64(rerolled)*2.0
	// A second spare roll makes chasing patterns cheaper.
	if ctx.RollsRemaining > 1 {
		ev += float64(rerolled) * 0.8
	}
	// Strong hands are worth banking.
	if bestScore >= 25 {
		ev -= float64(bestScore) * 0.35
	}
	return ev
}

func straightOpen(available []scoring.Category) bool {
	for _, c := range available {
		if c == scoring.SmallStraight || c == scoring.LargeStraight {
			return true
		}
	}
	return false
}

// longestRunFaces returns the faces participating in the longest consecutive
// run of the dice, as a set.
func longestRunFaces(dice [5]int) map[int]bool {
	var present [7]bool
	for _, d := range dice {
		present[d] = true
	}

	bestStart, bestLen := 0, 0
	start, length := 0, 0
	for face := 1; face <= 6; face++ {
		if present[face] {
			if length == 0 {
				start = face
			}
			length++
			if length > bestLen {
				bestStart, bestLen = start, length
			}
		} else {
			length = 0
		}
	}

	faces := make(map[int]bool, bestLen)
	for f := bestStart; f < bestStart+bestLen; f++ {
		faces[f] = true
	}
	return faces
}
