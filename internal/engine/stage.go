package engine

import "time"

type Stage string

const (
	StageCreate   Stage = "create"
	StageSeed     Stage = "seed"
	StagePlan     Stage = "plan"
	StagePlay     Stage = "play"
	StageFinished Stage = "finished"

	// StagePaused is never stored; see State.DisplayStage.
	StagePaused Stage = "paused"
)

// Countdown budgets in seconds. Play counts up from zero instead.
const (
	CreateBudget = 180
	SeedBudget   = 60
	PlanBudget   = 300
)

var StageOrder = []Stage{StageCreate, StageSeed, StagePlan, StagePlay, StageFinished}

func nextStage(st Stage) (Stage, bool) {
	for i, s := range StageOrder {
		if s == st && i+1 < len(StageOrder) {
			return StageOrder[i+1], true
		}
	}
	return "", false
}

func budgetFor(st Stage) int {
	switch st {
	case StageCreate:
		return CreateBudget
	case StageSeed:
		return SeedBudget
	case StagePlan:
		return PlanBudget
	default:
		return 0
	}
}

// CountsDown reports the timer direction of a stage.
func CountsDown(st Stage) bool {
	return st != StagePlay && st != StageFinished
}

func advanceStage(s State, now time.Time) ([]Event, State, error) {
	to, ok := nextStage(s.Timer.Stage)
	if !ok {
		return nil, s, ErrAlreadyFinished
	}

	next := s.Clone()
	next.Timer.Stage = to
	next.SeedPrompt = to == StageSeed
	events := []Event{{Type: EvtStageAdvanced, Stage: to}}

	switch to {
	case StagePlay:
		next.Timer.Value = 0
		next.Timer.Running = true
		next.Timer.StartedAt = &now
		events = append(events, Event{Type: EvtTimerStarted, Stage: to})
	case StageFinished:
		next.Timer.Running = false
	default:
		next.Timer.Value = budgetFor(to)
	}
	return events, next, nil
}

// tick advances the shared timer by one second.
func tick(s State) ([]Event, State, error) {
	if !s.Timer.Running || s.Timer.Stage == StageFinished {
		return nil, s, nil
	}
	next := s
	if CountsDown(s.Timer.Stage) {
		next.Timer.Value = max(0, s.Timer.Value-1)
	} else {
		next.Timer.Value = s.Timer.Value + 1
	}
	return []Event{{Type: EvtTimerTicked, Stage: next.Timer.Stage}}, next, nil
}
