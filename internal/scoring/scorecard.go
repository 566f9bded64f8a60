package scoring

import "fmt"

// Scorecard records the categories a player has filled plus earned bonuses.
// A category absent from Scores is still open.
type Scorecard struct {
	Scores      map[Category]int `json:"scores"`
	UpperBonus  int              `json:"upperBonus"`
	RepeatBonus int              `json:"repeatPatternBonus"`
}

// NewScorecard returns an empty scorecard.
func NewScorecard() *Scorecard {
	return &Scorecard{Scores: make(map[Category]int)}
}

// Has reports whether the category has already been scored.
func (sc *Scorecard) Has(c Category) bool {
	_, ok := sc.Scores[c]
	return ok
}

// Remaining returns the still-unscored categories in scorecard order.
func (sc *Scorecard) Remaining() []Category {
	open := make([]Category, 0, len(Categories)-len(sc.Scores))
	for _, c := range Categories {
		if !sc.Has(c) {
			open = append(open, c)
		}
	}
	return open
}

// FirstUnscored returns the first open category in scorecard order.
// Used to auto-score a skipped or forfeited turn deterministically.
func (sc *Scorecard) FirstUnscored() (Category, bool) {
	for _, c := range Categories {
		if !sc.Has(c) {
			return c, true
		}
	}
	return "", false
}

// Complete reports whether all thirteen categories are scored.
func (sc *Scorecard) Complete() bool {
	return len(sc.Scores) == len(Categories)
}

// UpperSum returns the total of the six upper categories scored so far.
func (sc *Scorecard) UpperSum() int {
	sum := 0
	for _, c := range UpperCategories {
		sum += sc.Scores[c]
	}
	return sum
}

// Total returns the grand total including bonuses.
func (sc *Scorecard) Total() int {
	sum := sc.UpperBonus + sc.RepeatBonus
	for _, v := range sc.Scores {
		sum += v
	}
	return sum
}

// ApplyScore writes the category's score for the given dice, then settles
// bonuses: the repeat-pattern bonus when the dice show five of a kind and the
// fiveOfAKind category was already scored non-zero, and the upper bonus on
// crossing the threshold. Returns the points gained for the category and
// whether the repeat bonus was awarded.
func ApplyScore(sc *Scorecard, c Category, dice [5]int) (gained int, repeatBonus bool, err error) {
	if !ValidCategory(c) {
		return 0, false, ErrUnknownCategory
	}
	if sc.Has(c) {
		return 0, false, fmt.Errorf("category %s already scored", c)
	}

	gained, err = Score(c, dice)
	if err != nil {
		return 0, false, err
	}

	if IsFiveOfAKind(dice) && sc.Scores[FiveOfAKind] > 0 && c != FiveOfAKind {
		sc.RepeatBonus += RepeatBonusValue
		repeatBonus = true
	}

	sc.Scores[c] = gained

	if sc.UpperBonus == 0 && sc.UpperSum() >= UpperBonusThreshold {
		sc.UpperBonus = UpperBonusValue
	}

	return gained, repeatBonus, nil
}
