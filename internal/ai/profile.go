// Package ai drives AI seats: each profile pairs a decision brain with
// human-like timing so a turn unfolds across several alarm wake-ups.
package ai

import "time"

// Brain selects the decision policy for a profile.
type Brain string

const (
	BrainOptimal       Brain = "optimal"
	BrainProbabilistic Brain = "probabilistic"
	BrainPersonality   Brain = "personality"
	BrainRandom        Brain = "random"
)

// Traits bias the personality brain away from the optimal line.
type Traits struct {
	RiskTolerance       float64 `json:"riskTolerance"`     // 0..1, high rerolls instead of settling
	UpperSectionFocus   float64 `json:"upperSectionFocus"` // 0..1, prefers upper categories
	OvervaluesFullHouse bool    `json:"overvaluesFullHouse"`
	AvoidsEarlyZeros    bool    `json:"avoidsEarlyZeros"`
	AlwaysUsesAllRolls  bool    `json:"alwaysUsesAllRolls"`
	ChatFrequency       float64 `json:"chatFrequency"` // 0..1, chance of table talk after scoring
}

// Timing shapes the delays between an AI's decisions.
type Timing struct {
	RollMin  time.Duration `json:"rollMin"`
	RollMax  time.Duration `json:"rollMax"`
	KeepMin  time.Duration `json:"keepMin"`
	KeepMax  time.Duration `json:"keepMax"`
	ScoreMin time.Duration `json:"scoreMin"`
	ScoreMax time.Duration `json:"scoreMax"`

	// WinningFactor scales delays when the AI leads; FinalRoundsFactor when
	// the game is in its last three rounds.
	WinningFactor     float64 `json:"winningFactor"`
	FinalRoundsFactor float64 `json:"finalRoundsFactor"`

	// Hesitation adds extra thinking time when the EV gap exceeds the
	// threshold, as if the stakes made the AI double-check itself.
	HesitationMin   time.Duration `json:"hesitationMin"`
	HesitationMax   time.Duration `json:"hesitationMax"`
	HesitationEVGap float64       `json:"hesitationEvGap"`
}

// Profile describes one AI participant.
type Profile struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"displayName"`
	AvatarSeed  string  `json:"avatarSeed"`
	Brain       Brain   `json:"brain"`
	SkillLevel  float64 `json:"skillLevel"` // 0..1
	Traits      Traits  `json:"traits"`
	Timing      Timing  `json:"timing"`
}

// TurnState is the minimal descriptor persisted under ai_turn_data between
// alarm wake-ups.
type TurnState struct {
	PlayerID string `json:"playerId"`
	Phase    string `json:"phase"`
}

func defaultTiming() Timing {
	return Timing{
		RollMin:  800 * time.Millisecond,
		RollMax:  2200 * time.Millisecond,
		KeepMin:  1000 * time.Millisecond,
		KeepMax:  3000 * time.Millisecond,
		ScoreMin: 1200 * time.Millisecond,
		ScoreMax: 3500 * time.Millisecond,

		WinningFactor:     0.8,
		FinalRoundsFactor: 1.4,

		HesitationMin:   500 * time.Millisecond,
		HesitationMax:   2000 * time.Millisecond,
		HesitationEVGap: 6,
	}
}

// BuiltinProfiles returns the default AI roster, keyed by profile id.
func BuiltinProfiles() map[string]*Profile {
	return map[string]*Profile{
		"carmen": {
			ID:          "carmen",
			DisplayName: "Carmen",
			AvatarSeed:  "carmen",
			Brain:       BrainPersonality,
			SkillLevel:  0.75,
			Traits: Traits{
				RiskTolerance:     0.7,
				UpperSectionFocus: 0.4,
				AvoidsEarlyZeros:  true,
				ChatFrequency:     0.3,
			},
			Timing: defaultTiming(),
		},
		"otto": {
			ID:          "otto",
			DisplayName: "Otto",
			AvatarSeed:  "otto",
			Brain:       BrainOptimal,
			SkillLevel:  1.0,
			Timing:      defaultTiming(),
		},
		"vega": {
			ID:          "vega",
			DisplayName: "Vega",
			AvatarSeed:  "vega",
			Brain:       BrainProbabilistic,
			SkillLevel:  0.6,
			Traits: Traits{
				RiskTolerance: 0.5,
				ChatFrequency: 0.1,
			},
			Timing: defaultTiming(),
		},
		"pip": {
			ID:          "pip",
			DisplayName: "Pip",
			AvatarSeed:  "pip",
			Brain:       BrainRandom,
			SkillLevel:  0.2,
			Traits: Traits{
				AlwaysUsesAllRolls: true,
				ChatFrequency:      0.5,
			},
			Timing: defaultTiming(),
		},
	}
}
