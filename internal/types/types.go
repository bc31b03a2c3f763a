package types

import (
	"cmp"

	"github.com/DoyleJ11/tinybingo-backend/internal/engine"
	"github.com/DoyleJ11/tinybingo-backend/internal/lobby"
	"github.com/DoyleJ11/tinybingo-backend/pkg/types"
)

type ClientMessage struct {
	Type     string                `json:"type"`
	Cell     *int                  `json:"cell,omitempty"`
	Name     string                `json:"name,omitempty"`
	Color    string                `json:"color,omitempty"`
	Settings *engine.SettingsPatch `json:"settings,omitempty"`
}

type ServerMessage struct {
	Type    string          `json:"type"` // "StateSnapshot" | "Error"
	Version int             `json:"version,omitempty"`
	You     string          `json:"you,omitempty"`
	State   *types.Snapshot `json:"state,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
}

const (
	MsgStateSnapshot = "StateSnapshot"
	MsgError         = "Error"
)

// SnapshotOf flattens a lobby snapshot into the wire shape.
func SnapshotOf(room string, snap lobby.Snapshot) types.Snapshot {
	s := snap.State
	st := s.Settings
	out := types.Snapshot{
		Version:      snap.Version,
		Room:         room,
		Stage:        string(s.DisplayStage()),
		TimerValue:   s.Timer.Value,
		TimerRunning: s.Timer.Running,
		StartedAt:    s.Timer.StartedAt,
		SeedPrompt:   s.SeedPrompt,
		Settings: types.Settings{
			Size:              st.Size,
			Seed:              st.Seed,
			FreeCenter:        st.FreeCenter,
			Mode:              string(st.Mode),
			GoalsSource:       st.GoalsSource,
			GoalsSourceType:   string(st.GoalsSourceType),
			GoalsSourceURL:    st.GoalsSourceURL,
			GoalsFallback:     st.GoalsFallback,
			GameMode:          string(st.GameMode),
			BotDifficulty:     st.BotDifficulty,
			BotName:           cmp.Or(st.BotName, engine.DefaultBotName),
			QuantityThreshold: st.QuantityThreshold,
		},
		Cells:     make([]types.Cell, len(s.Board)),
		Log:       make([]types.LogEntry, 0, len(s.Log)),
		HostToken: s.HostToken,
		Presence:  make([]types.Presence, 0, len(snap.Presence)),
	}

	for i, id := range s.Board {
		c := types.Cell{Index: i, GoalID: id, Text: id, Marks: s.Marks[i]}
		if i < len(snap.Cells) {
			c.Text = snap.Cells[i].Text
			c.Difficulty = snap.Cells[i].Difficulty
		}
		if c.Marks == nil {
			c.Marks = []string{}
		}
		out.Cells[i] = c
	}
	for _, e := range s.Log {
		out.Log = append(out.Log, types.LogEntry(e))
	}
	for _, p := range snap.Presence {
		out.Presence = append(out.Presence, types.Presence{
			Token:       p.Token,
			Name:        p.Name,
			Color:       p.Color,
			Role:        string(p.Role),
			Connections: p.Connections,
		})
	}

	if r := s.Result; r != nil && r.Won {
		res := &types.Result{
			Kind:        string(r.Kind),
			Owner:       r.Owner,
			OwnerName:   r.Owner,
			Count:       r.Count,
			Description: r.Describe(),
		}
		if p, ok := s.Players[r.Owner]; ok && p.Name != "" {
			res.OwnerName = p.Name
		} else if r.Owner == engine.BotToken {
			res.OwnerName = out.Settings.BotName
		}
		if r.Line != nil {
			res.Line = r.Line.Cells
		}
		out.Result = res
	}
	return out
}
