package bot

import (
	"math/rand/v2"
	"strings"
	"time"
)

type Difficulty string

const (
	DifficultyTest   Difficulty = "test"
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Profile tunes how often the bot moves and how eagerly it defends.
type Profile struct {
	Name              Difficulty
	MinInterval       time.Duration
	MaxInterval       time.Duration
	FirstMoveDelay    time.Duration
	BlockPlayerChance float64
	// StrategicMaxDifficulty caps the goal difficulty the bot accepts when
	// grabbing the center or a corner.
	StrategicMaxDifficulty int
}

var profiles = map[Difficulty]Profile{
	DifficultyTest: {
		Name:                   DifficultyTest,
		MinInterval:            10 * time.Second,
		MaxInterval:            30 * time.Second,
		FirstMoveDelay:         time.Second,
		BlockPlayerChance:      0.1,
		StrategicMaxDifficulty: 2,
	},
	DifficultyEasy: {
		Name:                   DifficultyEasy,
		MinInterval:            20 * time.Minute,
		MaxInterval:            40 * time.Minute,
		FirstMoveDelay:         15 * time.Minute,
		BlockPlayerChance:      0.2,
		StrategicMaxDifficulty: 1,
	},
	DifficultyMedium: {
		Name:                   DifficultyMedium,
		MinInterval:            15 * time.Minute,
		MaxInterval:            30 * time.Minute,
		FirstMoveDelay:         10 * time.Minute,
		BlockPlayerChance:      0.4,
		StrategicMaxDifficulty: 2,
	},
	DifficultyHard: {
		Name:                   DifficultyHard,
		MinInterval:            10 * time.Minute,
		MaxInterval:            20 * time.Minute,
		FirstMoveDelay:         2 * time.Minute,
		BlockPlayerChance:      0.9,
		StrategicMaxDifficulty: 3,
	},
}

// ProfileFor looks a profile up by name; unknown names get medium.
func ProfileFor(name string) Profile {
	if p, ok := profiles[Difficulty(strings.ToLower(strings.TrimSpace(name)))]; ok {
		return p
	}
	return profiles[DifficultyMedium]
}

// Valid reports whether name is a known difficulty.
func Valid(name string) bool {
	_, ok := profiles[Difficulty(name)]
	return ok
}

// NextDelay is how long the bot waits before its next move. The first move
// of a match uses FirstMoveDelay; later moves are uniform in [Min, Max].
func (p Profile) NextDelay(rng *rand.Rand, firstMove bool) time.Duration {
	if firstMove {
		return p.FirstMoveDelay
	}
	span := p.MaxInterval - p.MinInterval
	if span <= 0 {
		return p.MinInterval
	}
	return p.MinInterval + time.Duration(rng.Int64N(int64(span)+1))
}
