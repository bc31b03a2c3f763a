package engine

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"
)

const host = "host-token"
const guest = "guest-token"

func testBoard(size int) []string {
	ids := make([]string, size*size)
	for i := range ids {
		ids[i] = fmt.Sprintf("g%02d", i)
	}
	return ids
}

// playingState is a 5x5 match in play with the timer running.
func playingState() State {
	s := NewEmptyState()
	s.HostToken = host
	s.Players[host] = Player{Token: host, Name: "Host", Color: "#ef4444"}
	s.Players[guest] = Player{Token: guest, Name: "Guest", Color: "#3b82f6"}
	s.Board = testBoard(5)
	s.Timer = Timer{Stage: StagePlay, Running: true}
	return s
}

func mustApply(t *testing.T, s State, cmd Command) ([]Event, State) {
	t.Helper()
	events, next, err := Apply(s, cmd)
	if err != nil {
		t.Fatalf("%s: unexpected err %v", cmd.Type, err)
	}
	return events, next
}

func toggle(t *testing.T, s State, actor string, cell int) State {
	t.Helper()
	_, next := mustApply(t, s, Command{Type: CmdToggleMark, Actor: actor, Cell: cell})
	return next
}

func TestFirstJoinerClaimsHost(t *testing.T) {
	s := NewEmptyState()
	events, s := mustApply(t, s, Command{Type: CmdJoin, Actor: "a", ActorName: "Alice"})
	if !ContainsEvent(events, EvtHostClaimed) || s.HostToken != "a" {
		t.Fatalf("expected a to claim host, got %q", s.HostToken)
	}

	events, s = mustApply(t, s, Command{Type: CmdJoin, Actor: "b", ActorName: "Bob"})
	if ContainsEvent(events, EvtHostClaimed) || s.HostToken != "a" {
		t.Fatalf("host must be sticky, got %q", s.HostToken)
	}
	if s.Players["b"].Name != "Bob" {
		t.Fatalf("expected Bob in roster, got %+v", s.Players)
	}
}

func TestToggleIsIdempotent(t *testing.T) {
	before := playingState()
	before = toggle(t, before, guest, 3)

	after := toggle(t, before, host, 7)
	after = toggle(t, after, host, 7)

	if !reflect.DeepEqual(before.Marks, after.Marks) {
		t.Fatalf("mark+unmark changed marks: before %v after %v", before.Marks, after.Marks)
	}
	if len(after.Log) != len(before.Log)+2 {
		t.Fatalf("expected two log entries, got %d", len(after.Log)-len(before.Log))
	}
}

func TestToggleCommutes(t *testing.T) {
	s := playingState()

	ab := toggle(t, toggle(t, s, host, 1), guest, 2)
	ba := toggle(t, toggle(t, s, guest, 2), host, 1)

	if !reflect.DeepEqual(ab.Marks, ba.Marks) {
		t.Fatalf("marks differ by order: %v vs %v", ab.Marks, ba.Marks)
	}
}

func TestToggleKeepsMarkOrder(t *testing.T) {
	s := playingState()
	s = toggle(t, s, guest, 4)
	s = toggle(t, s, host, 4)
	s = toggle(t, s, guest, 4)
	s = toggle(t, s, guest, 4)

	want := []string{host, guest}
	if !reflect.DeepEqual(s.Marks[4], want) {
		t.Fatalf("got %v, want %v", s.Marks[4], want)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := playingState()
	s = toggle(t, s, guest, 0)

	_ = toggle(t, s, host, 0)
	if len(s.Marks[0]) != 1 {
		t.Fatalf("input state was mutated: %v", s.Marks[0])
	}
}

func TestToggleRejected(t *testing.T) {
	cases := []struct {
		name    string
		setup   func() State
		cmd     Command
		wantErr error
	}{
		{
			name:    "not in play",
			setup:   func() State { s := playingState(); s.Timer.Stage = StagePlan; return s },
			cmd:     Command{Type: CmdToggleMark, Actor: guest, Cell: 0},
			wantErr: ErrMarkingClosed,
		},
		{
			name:    "paused",
			setup:   func() State { s := playingState(); s.Timer.Running = false; return s },
			cmd:     Command{Type: CmdToggleMark, Actor: guest, Cell: 0},
			wantErr: ErrMarkingClosed,
		},
		{
			name:    "finished",
			setup:   func() State { s := playingState(); s.Timer.Stage = StageFinished; return s },
			cmd:     Command{Type: CmdToggleMark, Actor: guest, Cell: 0},
			wantErr: ErrMarkingClosed,
		},
		{
			name:    "out of range",
			setup:   playingState,
			cmd:     Command{Type: CmdToggleMark, Actor: guest, Cell: 25},
			wantErr: ErrCellOutOfRange,
		},
		{
			name:    "no actor",
			setup:   playingState,
			cmd:     Command{Type: CmdToggleMark, Cell: 1},
			wantErr: ErrNoActor,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := tc.setup()
			_, next, err := Apply(s, tc.cmd)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
			if !reflect.DeepEqual(s.Marks, next.Marks) {
				t.Fatalf("rejected toggle changed marks")
			}
		})
	}
}

func TestLineWinFinishesMatch(t *testing.T) {
	s := playingState()
	s.Timer.Value = 42
	for c := 0; c < 4; c++ {
		s = toggle(t, s, host, c)
	}
	if s.Timer.Stage != StagePlay {
		t.Fatalf("four cells must not win")
	}

	events, s := mustApply(t, s, Command{Type: CmdToggleMark, Actor: host, Cell: 4})
	if !ContainsEvent(events, EvtMatchWon) {
		t.Fatalf("expected EvtMatchWon")
	}
	if s.Timer.Stage != StageFinished || s.Timer.Running || s.Timer.Value != 42 {
		t.Fatalf("timer not frozen on finish: %+v", s.Timer)
	}
	if s.Result == nil || s.Result.Kind != WinLine || s.Result.Owner != host {
		t.Fatalf("unexpected result %+v", s.Result)
	}
	last := s.Log[len(s.Log)-1]
	if last.ActorName != "Host" {
		t.Fatalf("win log should name the winner, got %+v", last)
	}
}

func TestHostGating(t *testing.T) {
	size := 3
	seed := "changed"
	cmds := []Command{
		{Type: CmdPatchSettings, Actor: guest, Patch: SettingsPatch{Size: &size, Seed: &seed}},
		{Type: CmdRegenerate, Actor: guest, Board: testBoard(5)},
		{Type: CmdAdvanceStage, Actor: guest},
		{Type: CmdStart, Actor: guest},
		{Type: CmdPause, Actor: guest},
		{Type: CmdResetRun, Actor: guest},
		{Type: CmdAdvanceStage},
	}

	for _, cmd := range cmds {
		t.Run(string(cmd.Type), func(t *testing.T) {
			s := playingState()
			s = toggle(t, s, host, 6)
			events, next, err := Apply(s, cmd)
			if !errors.Is(err, ErrNotHost) {
				t.Fatalf("want ErrNotHost, got %v", err)
			}
			if events != nil {
				t.Fatalf("rejected command produced events %v", events)
			}
			if !reflect.DeepEqual(s, next) {
				t.Fatalf("non-host command mutated state")
			}
		})
	}
}

func TestRegenerateResetsBoardMarksAndLog(t *testing.T) {
	s := playingState()
	s = toggle(t, s, guest, 2)
	seed := "fresh"
	size := 3

	_, next := mustApply(t, s, Command{
		Type:  CmdRegenerate,
		Actor: host,
		Board: testBoard(3),
		Patch: SettingsPatch{Seed: &seed, Size: &size},
	})
	if len(next.Board) != 9 || len(next.Marks) != 0 || len(next.Log) != 0 {
		t.Fatalf("regenerate left stale data: board=%d marks=%v log=%d", len(next.Board), next.Marks, len(next.Log))
	}
	if next.Settings.Seed != "fresh" {
		t.Fatalf("seed not applied in the same transaction")
	}

	_, _, err := Apply(s, Command{Type: CmdRegenerate, Actor: host, Board: testBoard(4)})
	if !errors.Is(err, ErrBoardSize) {
		t.Fatalf("want ErrBoardSize, got %v", err)
	}
}

func TestPatchSettingsValidates(t *testing.T) {
	s := playingState()
	bad := 7
	_, _, err := Apply(s, Command{Type: CmdPatchSettings, Actor: host, Patch: SettingsPatch{Size: &bad}})
	if !errors.Is(err, ErrInvalidSettings) {
		t.Fatalf("want ErrInvalidSettings, got %v", err)
	}

	pve := GamePvE
	_, next := mustApply(t, s, Command{Type: CmdPatchSettings, Actor: host, Patch: SettingsPatch{GameMode: &pve}})
	if next.Settings.GameMode != GamePvE {
		t.Fatalf("game mode not patched")
	}
}

func TestPatchSettingsKeepsBoardShape(t *testing.T) {
	s := playingState()
	small := 3
	yes := true
	for _, patch := range []SettingsPatch{{Size: &small}, {FreeCenter: &yes}} {
		_, next, err := Apply(s, Command{Type: CmdPatchSettings, Actor: host, Patch: patch})
		if !errors.Is(err, ErrNeedsRegenerate) {
			t.Fatalf("want ErrNeedsRegenerate, got %v", err)
		}
		if !reflect.DeepEqual(next, s) {
			t.Fatalf("rejected patch changed state")
		}
	}

	same := 5
	mustApply(t, s, Command{Type: CmdPatchSettings, Actor: host, Patch: SettingsPatch{Size: &same}})

	// A line on the original board still wins.
	for c := 0; c < 5; c++ {
		s = toggle(t, s, guest, c)
	}
	if s.Result == nil || s.Timer.Stage != StageFinished {
		t.Fatalf("expected a line win, got stage %s", s.Timer.Stage)
	}
}

func TestRegenerateChangesSize(t *testing.T) {
	s := playingState()
	small := 3
	_, next := mustApply(t, s, Command{Type: CmdRegenerate, Actor: host, Board: testBoard(3), Patch: SettingsPatch{Size: &small}})
	if next.Settings.Size != 3 || len(next.Board) != 9 {
		t.Fatalf("want a 3x3 board, got size %d with %d cells", next.Settings.Size, len(next.Board))
	}
}

func TestStageSequence(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s := NewEmptyState()
	s.HostToken = host

	want := []struct {
		stage   Stage
		value   int
		running bool
	}{
		{StageSeed, SeedBudget, false},
		{StagePlan, PlanBudget, false},
		{StagePlay, 0, true},
		{StageFinished, 0, false},
	}
	for _, w := range want {
		_, s = mustApply(t, s, Command{Type: CmdAdvanceStage, Actor: host, Now: now})
		if s.Timer.Stage != w.stage || s.Timer.Value != w.value || s.Timer.Running != w.running {
			t.Fatalf("after advance: got %+v, want %+v", s.Timer, w)
		}
		if w.stage == StageSeed && !s.SeedPrompt {
			t.Fatalf("seed stage should open the seed prompt")
		}
	}

	_, _, err := Apply(s, Command{Type: CmdAdvanceStage, Actor: host})
	if !errors.Is(err, ErrAlreadyFinished) {
		t.Fatalf("want ErrAlreadyFinished, got %v", err)
	}
}

func TestResetRunReturnsToCreate(t *testing.T) {
	s := NewEmptyState()
	s.HostToken = host
	_, s = mustApply(t, s, Command{Type: CmdAdvanceStage, Actor: host})
	_, s = mustApply(t, s, Command{Type: CmdStart, Actor: host})

	_, s = mustApply(t, s, Command{Type: CmdResetRun, Actor: host})
	if s.Timer.Stage != StageCreate || s.Timer.Value != CreateBudget || s.Timer.Running || s.SeedPrompt {
		t.Fatalf("reset left %+v prompt=%v", s.Timer, s.SeedPrompt)
	}
}

func TestTimerDirection(t *testing.T) {
	cases := []struct {
		name    string
		timer   Timer
		want    int
		wantEvt bool
	}{
		{"create counts down", Timer{Stage: StageCreate, Value: 180, Running: true}, 179, true},
		{"countdown floors at zero", Timer{Stage: StagePlan, Value: 0, Running: true}, 0, true},
		{"play counts up", Timer{Stage: StagePlay, Value: 3600, Running: true}, 3601, true},
		{"stopped timer holds", Timer{Stage: StageSeed, Value: 30}, 30, false},
		{"finished never ticks", Timer{Stage: StageFinished, Value: 99, Running: true}, 99, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewEmptyState()
			s.Timer = tc.timer
			events, next, err := Apply(s, Command{Type: CmdTick})
			if err != nil {
				t.Fatalf("unexpected err %v", err)
			}
			if next.Timer.Value != tc.want {
				t.Fatalf("got %d, want %d", next.Timer.Value, tc.want)
			}
			if ContainsEvent(events, EvtTimerTicked) != tc.wantEvt {
				t.Fatalf("tick event mismatch: %v", events)
			}
		})
	}
}

func TestPausePreservesValue(t *testing.T) {
	s := playingState()
	s.Timer.Value = 77
	_, s = mustApply(t, s, Command{Type: CmdPause, Actor: host})
	if s.Timer.Running || s.Timer.Value != 77 || s.DisplayStage() != StagePaused {
		t.Fatalf("pause should only stop the timer: %+v", s.Timer)
	}
	_, s = mustApply(t, s, Command{Type: CmdStart, Actor: host})
	if !s.Timer.Running || s.Timer.StartedAt == nil || s.DisplayStage() != StagePlay {
		t.Fatalf("start should resume: %+v", s.Timer)
	}
}
