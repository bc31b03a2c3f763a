package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tinybingo-backend/internal/engine"
	"github.com/DoyleJ11/tinybingo-backend/internal/hub"
	"github.com/DoyleJ11/tinybingo-backend/internal/lobby"
	"github.com/DoyleJ11/tinybingo-backend/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	pingInterval = 30 * time.Second
	outboxSize   = 16
	maxNameLen   = 32
)

var errUnknownType = errors.New("unknown message type")
var errMissingField = errors.New("missing field")

type Options struct {
	Logger *zap.Logger
	// OriginPatterns is passed to websocket.Accept; empty means same-origin only.
	OriginPatterns []string
}

func Handler(h *hub.Hub, opts Options) http.HandlerFunc {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		code := strings.ToUpper(q.Get("code"))
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		token := q.Get("token")
		if token == "" {
			token = uuid.NewString()
		}
		if token == engine.BotToken {
			http.Error(w, "reserved token", http.StatusBadRequest)
			return
		}
		name := clipName(q.Get("name"))
		if name == "" {
			name = "Player"
		}

		lb := h.Lookup(code)
		if lb == nil {
			http.Error(w, "lobby not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			log.Debug("websocket accept", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		clientID := uuid.NewString()
		log := log.With(zap.String("room", code), zap.String("client", clientID))
		out := make(chan lobby.Snapshot, outboxSize)

		if !post(ctx, lb, lobby.Join{ClientID: clientID, Token: token, Name: name, Color: q.Get("color"), Outbox: out}) {
			return
		}
		defer post(context.Background(), lb, lobby.Leave{ClientID: clientID})

		// Writer goroutine
		go func() {
			defer cancel()
			for {
				select {
				case <-ctx.Done():
					return
				case snap, ok := <-out:
					if !ok {
						// Lobby dropped us or shut down.
						conn.Close(websocket.StatusGoingAway, "room closed")
						return
					}
					dto := types.SnapshotOf(code, snap)
					msg := types.ServerMessage{Type: types.MsgStateSnapshot, Version: snap.Version, You: token, State: &dto}
					if err := write(ctx, conn, msg); err != nil {
						log.Debug("write snapshot", zap.Error(err))
						return
					}
				}
			}
		}()

		go func() {
			t := time.NewTicker(pingInterval)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
					err := conn.Ping(pctx)
					pcancel()
					if err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				_ = write(ctx, conn, types.ServerMessage{Type: types.MsgError, Code: "bad_json", Error: "bad json"})
				continue
			}

			cmd, err := ToEngineCommand(cm, token)
			if err != nil {
				_ = write(ctx, conn, types.ServerMessage{Type: types.MsgError, Code: "unknown_type", Error: err.Error()})
				continue
			}

			reply := make(chan lobby.Ack, 1)
			if !post(ctx, lb, lobby.FromClient{ClientID: clientID, Cmd: cmd, Reply: reply}) {
				return
			}
			select {
			case ack := <-reply:
				if ack.Err != nil {
					_ = write(ctx, conn, types.ServerMessage{Type: types.MsgError, Code: "rejected", Error: ack.Err.Error()})
				}
			case <-ctx.Done():
				return
			case <-lb.Done():
				return
			}
		}
	}
}

func post(ctx context.Context, lb *lobby.Lobby, m lobby.Msg) bool {
	select {
	case lb.Inbox() <- m:
		return true
	case <-lb.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

// ToEngineCommand maps a client message to the command it stands for, acting
// as token. Identity always comes from the connection, never the payload.
func ToEngineCommand(m types.ClientMessage, token string) (engine.Command, error) {
	patch := engine.SettingsPatch{}
	if m.Settings != nil {
		patch = *m.Settings
	}

	switch m.Type {
	case "ToggleMark":
		if m.Cell == nil {
			return engine.Command{}, errors.Join(errMissingField, errors.New("cell"))
		}
		return engine.Command{Type: engine.CmdToggleMark, Actor: token, Cell: *m.Cell}, nil
	case "Regenerate":
		return engine.Command{Type: engine.CmdRegenerate, Actor: token, Patch: patch}, nil
	case "PatchSettings":
		if m.Settings == nil {
			return engine.Command{}, errors.Join(errMissingField, errors.New("settings"))
		}
		return engine.Command{Type: engine.CmdPatchSettings, Actor: token, Patch: patch}, nil
	case "Start":
		return engine.Command{Type: engine.CmdStart, Actor: token}, nil
	case "Pause":
		return engine.Command{Type: engine.CmdPause, Actor: token}, nil
	case "AdvanceStage":
		return engine.Command{Type: engine.CmdAdvanceStage, Actor: token}, nil
	case "ResetRun":
		return engine.Command{Type: engine.CmdResetRun, Actor: token}, nil
	case "SetName":
		name := clipName(m.Name)
		if name == "" {
			return engine.Command{}, errors.Join(errMissingField, errors.New("name"))
		}
		return engine.Command{Type: engine.CmdJoin, Actor: token, ActorName: name, Color: m.Color}, nil
	default:
		return engine.Command{}, errUnknownType
	}
}

// clipName trims name and keeps at most maxNameLen runes of it.
func clipName(name string) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) <= maxNameLen {
		return name
	}
	return strings.TrimSpace(string([]rune(name)[:maxNameLen]))
}
