package engine

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/DoyleJ11/tinybingo-backend/internal/board"
	"github.com/DoyleJ11/tinybingo-backend/internal/bot"
	"github.com/DoyleJ11/tinybingo-backend/internal/goals"
)

var ErrNotHost = errors.New("only the host may do that")
var ErrNoActor = errors.New("command has no actor token")
var ErrMarkingClosed = errors.New("cells can only be marked while the match is running")
var ErrCellOutOfRange = errors.New("cell index out of range")
var ErrBoardSize = errors.New("board does not match configured size")
var ErrInvalidSettings = errors.New("invalid settings")
var ErrAlreadyFinished = errors.New("match already finished")
var ErrUnsupportedCommand = errors.New("unsupported command")
var ErrNeedsRegenerate = errors.New("board shape can only change with a new board")

// BotToken is the reserved token the automated opponent marks with.
const BotToken = bot.Token

const DefaultBotName = "Bot"

type Mode string

const (
	ModeStandard Mode = "standard"
	ModeBlackout Mode = "blackout"
)

type GameMode string

const (
	GamePvP GameMode = "pvp"
	GamePvE GameMode = "pve"
)

type Settings struct {
	Size              int              `json:"size"`
	Seed              string           `json:"seed"`
	FreeCenter        bool             `json:"freeCenter"`
	Mode              Mode             `json:"mode"`
	GoalsSource       string           `json:"goalsSource,omitempty"`
	GoalsSourceType   goals.SourceType `json:"goalsSourceType"`
	GoalsSourceURL    string           `json:"goalsSourceUrl,omitempty"`
	GoalsFallback     bool             `json:"goalsFallback,omitempty"`
	GameMode          GameMode         `json:"gameMode"`
	BotDifficulty     string           `json:"botDifficulty,omitempty"`
	BotName           string           `json:"botName,omitempty"`
	QuantityThreshold int              `json:"quantityThreshold"`
}

// SettingsPatch carries the host-editable settings; nil fields are left alone.
type SettingsPatch struct {
	Size            *int              `json:"size,omitempty"`
	Seed            *string           `json:"seed,omitempty"`
	FreeCenter      *bool             `json:"freeCenter,omitempty"`
	Mode            *Mode             `json:"mode,omitempty"`
	GoalsSource     *string           `json:"goalsSource,omitempty"`
	GoalsSourceType *goals.SourceType `json:"goalsSourceType,omitempty"`
	GoalsSourceURL  *string           `json:"goalsSourceUrl,omitempty"`
	GoalsFallback   *bool             `json:"goalsFallback,omitempty"`
	GameMode        *GameMode         `json:"gameMode,omitempty"`
	BotDifficulty   *string           `json:"botDifficulty,omitempty"`
	BotName         *string           `json:"botName,omitempty"`
}

type Timer struct {
	Stage     Stage      `json:"stage"`
	Value     int        `json:"timerValue"`
	Running   bool       `json:"timerRunning"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

type LogEntry struct {
	ActorName   string    `json:"actorName"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
	Color       string    `json:"color,omitempty"`
}

type Player struct {
	Token string `json:"token"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

type State struct {
	Board      []string          `json:"board"`
	Marks      map[int][]string  `json:"hits"`
	Settings   Settings          `json:"settings"`
	Timer      Timer             `json:"timer"`
	Log        []LogEntry        `json:"log"`
	HostToken  string            `json:"hostToken,omitempty"`
	Players    map[string]Player `json:"players"`
	SeedPrompt bool              `json:"seedPrompt,omitempty"`
	Result     *Result           `json:"result,omitempty"`
}

type CommandType string

const (
	CmdJoin          CommandType = "Join"
	CmdToggleMark    CommandType = "ToggleMark"
	CmdRegenerate    CommandType = "Regenerate"
	CmdPatchSettings CommandType = "PatchSettings"
	CmdStart         CommandType = "Start"
	CmdPause         CommandType = "Pause"
	CmdAdvanceStage  CommandType = "AdvanceStage"
	CmdResetRun      CommandType = "ResetRun"
	CmdTick          CommandType = "Tick"
)

/*
	CmdJoin          -> EvtPlayerJoined (+ EvtHostClaimed for the first joiner)
	CmdToggleMark    -> EvtCellMarked | EvtCellUnmarked -> EvtMatchWon?
	CmdRegenerate    -> EvtBoardRegenerated
	CmdPatchSettings -> EvtSettingsChanged
	CmdStart/Pause   -> EvtTimerStarted | EvtTimerPaused
	CmdAdvanceStage  -> EvtStageAdvanced (+ EvtTimerStarted entering play)
	CmdResetRun      -> EvtRunReset
	CmdTick          -> EvtTimerTicked
*/

type Command struct {
	Type      CommandType
	Actor     string // player token, BotToken for the bot
	ActorName string
	Color     string
	Cell      int
	Label     string   // goal text of Cell, for the log
	Board     []string // CmdRegenerate
	Patch     SettingsPatch
	Now       time.Time
}

type EventType string

const (
	EvtPlayerJoined     EventType = "PlayerJoined"
	EvtHostClaimed      EventType = "HostClaimed"
	EvtCellMarked       EventType = "CellMarked"
	EvtCellUnmarked     EventType = "CellUnmarked"
	EvtBoardRegenerated EventType = "BoardRegenerated"
	EvtSettingsChanged  EventType = "SettingsChanged"
	EvtTimerStarted     EventType = "TimerStarted"
	EvtTimerPaused      EventType = "TimerPaused"
	EvtTimerTicked      EventType = "TimerTicked"
	EvtStageAdvanced    EventType = "StageAdvanced"
	EvtRunReset         EventType = "RunReset"
	EvtMatchWon         EventType = "MatchWon"
)

type Event struct {
	Type  EventType
	Actor string
	Cell  int
	Stage Stage
}

// Apply runs one command against s and returns the resulting state. s is never
// modified; a rejected command returns s unchanged together with the error.
func Apply(s State, cmd Command) ([]Event, State, error) {
	if cmd.Now.IsZero() {
		cmd.Now = time.Now()
	}

	switch cmd.Type {
	case CmdJoin:
		if cmd.Actor == "" {
			return nil, s, ErrNoActor
		}
		next := s.Clone()
		events := []Event{{Type: EvtPlayerJoined, Actor: cmd.Actor}}
		p := next.Players[cmd.Actor]
		p.Token = cmd.Actor
		if cmd.ActorName != "" {
			p.Name = cmd.ActorName
		}
		if cmd.Color != "" {
			p.Color = cmd.Color
		}
		next.Players[cmd.Actor] = p
		if next.HostToken == "" && cmd.Actor != BotToken {
			next.HostToken = cmd.Actor
			events = append(events, Event{Type: EvtHostClaimed, Actor: cmd.Actor})
		}
		return events, next, nil

	case CmdToggleMark:
		return toggleMark(s, cmd)

	case CmdTick:
		return tick(s)
	}

	// Everything below is host-only.
	if cmd.Actor == "" || cmd.Actor != s.HostToken {
		return nil, s, ErrNotHost
	}

	switch cmd.Type {
	case CmdRegenerate:
		next := s.Clone()
		if err := patchSettings(&next.Settings, cmd.Patch); err != nil {
			return nil, s, err
		}
		size := next.Settings.Size
		if len(cmd.Board) != size*size {
			return nil, s, fmt.Errorf("%w: %d cells for size %d", ErrBoardSize, len(cmd.Board), size)
		}
		next.Board = slices.Clone(cmd.Board)
		next.Marks = map[int][]string{}
		next.Log = nil
		next.Result = nil
		next.SeedPrompt = false
		return []Event{{Type: EvtBoardRegenerated, Actor: cmd.Actor}}, next, nil

	case CmdPatchSettings:
		if err := checkShape(s, cmd.Patch); err != nil {
			return nil, s, err
		}
		next := s.Clone()
		if err := patchSettings(&next.Settings, cmd.Patch); err != nil {
			return nil, s, err
		}
		return []Event{{Type: EvtSettingsChanged, Actor: cmd.Actor}}, next, nil

	case CmdStart:
		if s.Timer.Stage == StageFinished {
			return nil, s, ErrAlreadyFinished
		}
		next := s.Clone()
		next.Timer.Running = true
		now := cmd.Now
		next.Timer.StartedAt = &now
		return []Event{{Type: EvtTimerStarted, Stage: next.Timer.Stage}}, next, nil

	case CmdPause:
		next := s.Clone()
		next.Timer.Running = false
		return []Event{{Type: EvtTimerPaused, Stage: next.Timer.Stage}}, next, nil

	case CmdAdvanceStage:
		return advanceStage(s, cmd.Now)

	case CmdResetRun:
		next := s.Clone()
		next.Timer = Timer{Stage: StageCreate, Value: CreateBudget}
		next.SeedPrompt = false
		next.Result = nil
		return []Event{{Type: EvtRunReset, Stage: StageCreate}}, next, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func toggleMark(s State, cmd Command) ([]Event, State, error) {
	if cmd.Actor == "" {
		return nil, s, ErrNoActor
	}
	if !s.MarkingOpen() {
		return nil, s, ErrMarkingClosed
	}
	if cmd.Cell < 0 || cmd.Cell >= len(s.Board) {
		return nil, s, ErrCellOutOfRange
	}

	next := s.Clone()
	list := next.Marks[cmd.Cell]
	label := cmd.Label
	if label == "" {
		label = next.Board[cmd.Cell]
	}
	name, color := next.displayOf(cmd.Actor)
	if cmd.ActorName != "" {
		name = cmd.ActorName
	}

	var events []Event
	if i := slices.Index(list, cmd.Actor); i >= 0 {
		list = slices.Delete(list, i, i+1)
		if len(list) == 0 {
			delete(next.Marks, cmd.Cell)
		} else {
			next.Marks[cmd.Cell] = list
		}
		next.appendLog(name, color, fmt.Sprintf("unmarked «%s»", label), cmd.Now)
		events = append(events, Event{Type: EvtCellUnmarked, Actor: cmd.Actor, Cell: cmd.Cell})
	} else {
		next.Marks[cmd.Cell] = append(list, cmd.Actor)
		next.appendLog(name, color, fmt.Sprintf("marked «%s»", label), cmd.Now)
		events = append(events, Event{Type: EvtCellMarked, Actor: cmd.Actor, Cell: cmd.Cell})
	}

	res := Evaluate(next.Board, next.Marks, next.Settings.Size, next.Settings.Mode, next.Settings.QuantityThreshold)
	if res.Won {
		next.Timer.Stage = StageFinished
		next.Timer.Running = false
		next.Result = &res
		winner, wcolor := next.displayOf(res.Owner)
		next.appendLog(winner, wcolor, res.Describe(), cmd.Now)
		events = append(events, Event{Type: EvtMatchWon, Actor: res.Owner, Stage: StageFinished})
	}
	return events, next, nil
}

// checkShape rejects patches that would leave an existing board out of step
// with Size or FreeCenter.
func checkShape(s State, p SettingsPatch) error {
	if len(s.Board) == 0 {
		return nil
	}
	if p.Size != nil && *p.Size != s.Settings.Size {
		return fmt.Errorf("%w: size", ErrNeedsRegenerate)
	}
	if p.FreeCenter != nil && *p.FreeCenter != s.Settings.FreeCenter {
		return fmt.Errorf("%w: freeCenter", ErrNeedsRegenerate)
	}
	return nil
}

// ApplyTo returns st with the patch applied, failing on the first invalid field.
func (p SettingsPatch) ApplyTo(st Settings) (Settings, error) {
	err := patchSettings(&st, p)
	return st, err
}

func patchSettings(st *Settings, p SettingsPatch) error {
	if p.Size != nil {
		if !board.ValidSize(*p.Size) {
			return fmt.Errorf("%w: size %d", ErrInvalidSettings, *p.Size)
		}
		st.Size = *p.Size
	}
	if p.Mode != nil {
		if *p.Mode != ModeStandard && *p.Mode != ModeBlackout {
			return fmt.Errorf("%w: mode %q", ErrInvalidSettings, *p.Mode)
		}
		st.Mode = *p.Mode
	}
	if p.GameMode != nil {
		if *p.GameMode != GamePvP && *p.GameMode != GamePvE {
			return fmt.Errorf("%w: game mode %q", ErrInvalidSettings, *p.GameMode)
		}
		st.GameMode = *p.GameMode
	}
	if p.GoalsSourceType != nil {
		if *p.GoalsSourceType != goals.SourceLocal && *p.GoalsSourceType != goals.SourceSheets {
			return fmt.Errorf("%w: goals source %q", ErrInvalidSettings, *p.GoalsSourceType)
		}
		st.GoalsSourceType = *p.GoalsSourceType
	}
	if p.Seed != nil {
		if *p.Seed == "" {
			return fmt.Errorf("%w: empty seed", ErrInvalidSettings)
		}
		st.Seed = *p.Seed
	}
	if p.FreeCenter != nil {
		st.FreeCenter = *p.FreeCenter
	}
	if p.GoalsSource != nil {
		st.GoalsSource = *p.GoalsSource
	}
	if p.GoalsSourceURL != nil {
		st.GoalsSourceURL = *p.GoalsSourceURL
	}
	if p.GoalsFallback != nil {
		st.GoalsFallback = *p.GoalsFallback
	}
	if p.BotDifficulty != nil {
		if !bot.Valid(*p.BotDifficulty) {
			return fmt.Errorf("%w: bot difficulty %q", ErrInvalidSettings, *p.BotDifficulty)
		}
		st.BotDifficulty = *p.BotDifficulty
	}
	if p.BotName != nil {
		st.BotName = *p.BotName
	}
	return nil
}
