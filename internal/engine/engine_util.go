package engine

import (
	"maps"
	"slices"
	"time"

	"github.com/DoyleJ11/tinybingo-backend/internal/bot"
	"github.com/DoyleJ11/tinybingo-backend/internal/goals"
)

// DefaultQuantityThreshold is the number of cells one token must hold for a
// quantity win on a standard board.
const DefaultQuantityThreshold = 13

func DefaultSettings() Settings {
	return Settings{
		Size:              5,
		Seed:              "seed",
		Mode:              ModeStandard,
		GoalsSource:       goals.BundledSource,
		GoalsSourceType:   goals.SourceLocal,
		GameMode:          GamePvP,
		BotDifficulty:     string(bot.DifficultyMedium),
		BotName:           DefaultBotName,
		QuantityThreshold: DefaultQuantityThreshold,
	}
}

func NewEmptyState() State {
	return State{
		Marks:    map[int][]string{},
		Settings: DefaultSettings(),
		Timer:    Timer{Stage: StageCreate, Value: CreateBudget},
		Players:  map[string]Player{},
	}
}

// Clone deep-copies everything Apply may mutate so snapshots handed to other
// goroutines never alias the live state.
func (s State) Clone() State {
	out := s
	out.Board = slices.Clone(s.Board)
	out.Marks = make(map[int][]string, len(s.Marks))
	for k, v := range s.Marks {
		out.Marks[k] = slices.Clone(v)
	}
	out.Log = slices.Clone(s.Log)
	out.Players = maps.Clone(s.Players)
	if out.Players == nil {
		out.Players = map[string]Player{}
	}
	if s.Timer.StartedAt != nil {
		t := *s.Timer.StartedAt
		out.Timer.StartedAt = &t
	}
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	return out
}

// MarkingOpen reports whether cells may be toggled right now.
func (s State) MarkingOpen() bool {
	return s.Timer.Stage == StagePlay && s.Timer.Running && len(s.Board) > 0
}

func (s State) Paused() bool {
	return s.Timer.Stage == StagePlay && !s.Timer.Running
}

// DisplayStage folds the pause flag into the stage for clients.
func (s State) DisplayStage() Stage {
	if s.Paused() {
		return StagePaused
	}
	return s.Timer.Stage
}

func (s State) FreeCells() []int {
	var out []int
	for i := range s.Board {
		if len(s.Marks[i]) == 0 {
			out = append(out, i)
		}
	}
	return out
}

func (s State) HasFreeCell() bool {
	for i := range s.Board {
		if len(s.Marks[i]) == 0 {
			return true
		}
	}
	return false
}

func (s State) IsHost(token string) bool {
	return token != "" && token == s.HostToken
}

// CountMarks returns how many cells token has marked.
func (s State) CountMarks(token string) int {
	n := 0
	for _, list := range s.Marks {
		if slices.Contains(list, token) {
			n++
		}
	}
	return n
}

func (s *State) displayOf(token string) (string, string) {
	if p, ok := s.Players[token]; ok && p.Name != "" {
		return p.Name, p.Color
	}
	if token == BotToken {
		if s.Settings.BotName != "" {
			return s.Settings.BotName, ""
		}
		return DefaultBotName, ""
	}
	return token, ""
}

func (s *State) appendLog(name, color, desc string, at time.Time) {
	s.Log = append(s.Log, LogEntry{ActorName: name, Description: desc, Timestamp: at, Color: color})
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}
