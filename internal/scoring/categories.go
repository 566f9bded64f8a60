package scoring

import "fmt"

// Category identifies one of the thirteen scorecard entries.
type Category string

const (
	Ones          Category = "ones"
	Twos          Category = "twos"
	Threes        Category = "threes"
	Fours         Category = "fours"
	Fives         Category = "fives"
	Sixes         Category = "sixes"
	ThreeOfAKind  Category = "threeOfAKind"
	FourOfAKind   Category = "fourOfAKind"
	FullHouse     Category = "fullHouse"
	SmallStraight Category = "smallStraight"
	LargeStraight Category = "largeStraight"
	FiveOfAKind   Category = "fiveOfAKind"
	Chance        Category = "chance"
)

// Categories lists every category in scorecard order. The order is load-bearing:
// auto-scoring a skipped turn always picks the first unscored entry of this list.
var Categories = []Category{
	Ones, Twos, Threes, Fours, Fives, Sixes,
	ThreeOfAKind, FourOfAKind, FullHouse,
	SmallStraight, LargeStraight, FiveOfAKind, Chance,
}

// UpperCategories are the six face-count categories that feed the upper bonus.
var UpperCategories = []Category{Ones, Twos, Threes, Fours, Fives, Sixes}

// Fixed score values and bonus thresholds.
const (
	FullHouseScore     = 25
	SmallStraightScore = 30
	LargeStraightScore = 40
	FiveOfAKindScore   = 50
	ChanceMax          = 30

	UpperBonusThreshold = 63
	UpperBonusValue     = 35
	RepeatBonusValue    = 100
)

// ErrUnknownCategory is returned when a category name is not one of the thirteen.
var ErrUnknownCategory = fmt.Errorf("unknown category")

var upperFace = map[Category]int{
	Ones: 1, Twos: 2, Threes: 3, Fours: 4, Fives: 5, Sixes: 6,
}

// ValidCategory reports whether c names one of the thirteen categories.
func ValidCategory(c Category) bool {
	for _, cat := range Categories {
		if cat == c {
			return true
		}
	}
	return false
}

// Score computes the value of five dice scored against a category.
// It is pure: identical inputs always produce identical outputs.
func Score(c Category, dice [5]int) (int, error) {
	if face, ok := upperFace[c]; ok {
		sum := 0
		for _, d := range dice {
			if d == face {
				sum += d
			}
		}
		return sum, nil
	}

	counts := faceCounts(dice)

	switch c {
	case ThreeOfAKind:
		if maxCount(counts) >= 3 {
			return sumDice(dice), nil
		}
		return 0, nil
	case FourOfAKind:
		if maxCount(counts) >= 4 {
			return sumDice(dice), nil
		}
		return 0, nil
	case FullHouse:
		if isFullHouse(counts) {
			return FullHouseScore, nil
		}
		return 0, nil
	case SmallStraight:
		if hasRun(counts, 4) {
			return SmallStraightScore, nil
		}
		return 0, nil
	case LargeStraight:
		if hasRun(counts, 5) {
			return LargeStraightScore, nil
		}
		return 0, nil
	case FiveOfAKind:
		if IsFiveOfAKind(dice) {
			return FiveOfAKindScore, nil
		}
		return 0, nil
	case Chance:
		return sumDice(dice), nil
	}

	return 0, ErrUnknownCategory
}

// IsFiveOfAKind reports whether all five dice show the same face.
func IsFiveOfAKind(dice [5]int) bool {
	for _, d := range dice[1:] {
		if d != dice[0] {
			return false
		}
	}
	return true
}

func sumDice(dice [5]int) int {
	sum := 0
	for _, d := range dice {
		sum += d
	}
	return sum
}

// faceCounts returns how many dice show each face, indexed 1..6.
func faceCounts(dice [5]int) [7]int {
	var counts [7]int
	for _, d := range dice {
		if d >= 1 && d <= 6 {
			counts[d]++
		}
	}
	return counts
}

func maxCount(counts [7]int) int {
	max := 0
	for _, n := range counts[1:] {
		if n > max {
			max = n
		}
	}
	return max
}

// isFullHouse requires the exact 3+2 pattern with two distinct faces.
func isFullHouse(counts [7]int) bool {
	hasThree, hasTwo := false, false
	for _, n := range counts[1:] {
		switch n {
		case 3:
			hasThree = true
		case 2:
			hasTwo = true
		}
	}
	return hasThree && hasTwo
}

// hasRun reports whether the dice contain a run of at least length consecutive faces.
func hasRun(counts [7]int, length int) bool {
	run := 0
	for face := 1; face <= 6; face++ {
		if counts[face] > 0 {
			run++
			if run >= length {
				return true
			}
		} else {
			run = 0
		}
	}
	return false
}
