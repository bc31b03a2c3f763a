package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tinybingo-backend/internal/engine"
	"github.com/DoyleJ11/tinybingo-backend/internal/hub"
	"github.com/DoyleJ11/tinybingo-backend/internal/lobby"
	"github.com/DoyleJ11/tinybingo-backend/internal/store"
	"github.com/DoyleJ11/tinybingo-backend/internal/types"
	pub "github.com/DoyleJ11/tinybingo-backend/pkg/types"
)

const (
	codeLength   = 6
	maxCodeTries = 8
	viewTimeout  = 2 * time.Second
	maxRecent    = 100
)

// Deps is everything the HTTP surface needs from the process.
type Deps struct {
	Hub     *hub.Hub
	Archive store.Archive // nil disables /matches
	Logger  *zap.Logger

	QuantityThreshold int
	// CatalogSource is recorded as GoalsSource on new rooms.
	CatalogSource  string
	OriginPatterns []string
}

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// NewRoomState is the initial state of a room created with patch.
func NewRoomState(d Deps, patch engine.SettingsPatch) (engine.State, error) {
	st := engine.NewEmptyState()
	if d.QuantityThreshold > 0 {
		st.Settings.QuantityThreshold = d.QuantityThreshold
	}
	if d.CatalogSource != "" {
		st.Settings.GoalsSource = d.CatalogSource
	}
	settings, err := patch.ApplyTo(st.Settings)
	if err != nil {
		return engine.State{}, err
	}
	st.Settings = settings
	return st, nil
}

func CreateRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch engine.SettingsPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "bad_json")
			return
		}
		state, err := NewRoomState(d, patch)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		// CreateLobby refuses taken codes, so a collision just draws again.
		var code string
		for range maxCodeTries {
			c, err := GenerateCode()
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to generate code")
				return
			}
			reply := make(chan *lobby.Lobby, 1)
			select {
			case d.Hub.Inbox() <- hub.CreateLobby{Code: c, State: state, Reply: reply}:
			case <-d.Hub.Done():
				writeError(w, http.StatusServiceUnavailable, "shutting down")
				return
			case <-r.Context().Done():
				return
			}
			if <-reply != nil {
				code = c
				break
			}
			d.Logger.Debug("collision on code, regenerating", zap.String("room", c))
		}
		if code == "" {
			writeError(w, http.StatusServiceUnavailable, "no free room code")
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

type roomView struct {
	NumClients int          `json:"numClients"`
	State      pub.Snapshot `json:"state"`
}

func GetRoom(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.ToUpper(chi.URLParam(r, "code"))
		lb := d.Hub.Lookup(code)
		if lb == nil {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), viewTimeout)
		defer cancel()
		reply := make(chan lobby.View, 1)
		select {
		case lb.Inbox() <- lobby.GetState{Reply: reply}:
		case <-lb.Done():
			writeError(w, http.StatusNotFound, "room closed")
			return
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "room busy")
			return
		}

		select {
		case v := <-reply:
			writeJSON(w, http.StatusOK, roomView{
				NumClients: v.NumClients,
				State:      types.SnapshotOf(code, v.Snapshot()),
			})
		case <-lb.Done():
			writeError(w, http.StatusNotFound, "room closed")
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "room busy")
		}
	}
}

func RecentMatches(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := store.DefaultRecentLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxRecent)
		}

		matches, err := d.Archive.Recent(r.Context(), limit)
		if err != nil {
			d.Logger.Error("recent matches", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "archive unavailable")
			return
		}
		if matches == nil {
			matches = []store.Match{}
		}
		writeJSON(w, http.StatusOK, matches)
	}
}

func GetMatch(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad id")
			return
		}
		m, err := d.Archive.Get(r.Context(), id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "match not found")
		case err != nil:
			d.Logger.Error("get match", zap.String("id", id.String()), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "archive unavailable")
		default:
			writeJSON(w, http.StatusOK, m)
		}
	}
}

func Healthz(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := d.Hub.Count()
		if rooms < 0 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "rooms": rooms})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
