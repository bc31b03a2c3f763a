package ws

import (
	"encoding/json"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/tinybingo-backend/internal/engine"
	"github.com/DoyleJ11/tinybingo-backend/internal/types"
)

func decode(t *testing.T, raw string) types.ClientMessage {
	t.Helper()
	var m types.ClientMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestToEngineCommand(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want engine.CommandType
	}{
		{"toggle", `{"type":"ToggleMark","cell":3}`, engine.CmdToggleMark},
		{"regenerate bare", `{"type":"Regenerate"}`, engine.CmdRegenerate},
		{"regenerate with settings", `{"type":"Regenerate","settings":{"seed":"x"}}`, engine.CmdRegenerate},
		{"patch", `{"type":"PatchSettings","settings":{"size":3}}`, engine.CmdPatchSettings},
		{"start", `{"type":"Start"}`, engine.CmdStart},
		{"pause", `{"type":"Pause"}`, engine.CmdPause},
		{"advance", `{"type":"AdvanceStage"}`, engine.CmdAdvanceStage},
		{"reset", `{"type":"ResetRun"}`, engine.CmdResetRun},
		{"rename", `{"type":"SetName","name":" Bea ","color":"#0f0"}`, engine.CmdJoin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ToEngineCommand(decode(t, tt.raw), "tok")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Type)
			assert.Equal(t, "tok", cmd.Actor)
		})
	}
}

func TestToEngineCommandFields(t *testing.T) {
	cmd, err := ToEngineCommand(decode(t, `{"type":"ToggleMark","cell":7}`), "tok")
	require.NoError(t, err)
	assert.Equal(t, 7, cmd.Cell)

	cmd, err = ToEngineCommand(decode(t, `{"type":"SetName","name":" Bea ","color":"#0f0"}`), "tok")
	require.NoError(t, err)
	assert.Equal(t, "Bea", cmd.ActorName)
	assert.Equal(t, "#0f0", cmd.Color)

	cmd, err = ToEngineCommand(decode(t, `{"type":"PatchSettings","settings":{"seed":"abc"}}`), "tok")
	require.NoError(t, err)
	require.NotNil(t, cmd.Patch.Seed)
	assert.Equal(t, "abc", *cmd.Patch.Seed)
}

func TestToEngineCommandRejects(t *testing.T) {
	for _, raw := range []string{
		`{"type":"ToggleMark"}`,
		`{"type":"PatchSettings"}`,
		`{"type":"SetName","name":"   "}`,
		`{"type":"Tick"}`,
		`{"type":""}`,
	} {
		_, err := ToEngineCommand(decode(t, raw), "tok")
		assert.Error(t, err, raw)
	}

	_, err := ToEngineCommand(decode(t, `{"type":"Tick"}`), "tok")
	assert.ErrorIs(t, err, errUnknownType)
	_, err = ToEngineCommand(decode(t, `{"type":"ToggleMark"}`), "tok")
	assert.ErrorIs(t, err, errMissingField)
}

func TestClipNameKeepsWholeRunes(t *testing.T) {
	long := strings.Repeat("€", 40)
	got := clipName(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxNameLen, utf8.RuneCountInString(got))

	// 11 three-byte runes straddle a byte cut at 32.
	got = clipName(strings.Repeat("€", 11))
	assert.Equal(t, strings.Repeat("€", 11), got)

	assert.Equal(t, "Ana", clipName("  Ana  "))
	assert.Empty(t, clipName("   "))

	cmd, err := ToEngineCommand(types.ClientMessage{Type: "SetName", Name: strings.Repeat("ö", 50)}, "p1")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(cmd.ActorName))
	assert.Equal(t, maxNameLen, utf8.RuneCountInString(cmd.ActorName))
}
