package hub

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tinybingo-backend/internal/engine"
	"github.com/DoyleJ11/tinybingo-backend/internal/lobby"
)

type HubMsg interface{ isHubMsg() }

// CreateLobby replies nil when Code is already taken.
type CreateLobby struct {
	Code  string
	State engine.State
	Reply chan *lobby.Lobby
}

type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type EnsureLobby struct {
	Code  string
	State engine.State // only used if creation happens
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	Code string
	// Lobby, when set, must still be the one registered under Code.
	Lobby *lobby.Lobby
}

type CountLobbies struct {
	Reply chan int
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg()  {}
func (GetLobby) isHubMsg()     {}
func (EnsureLobby) isHubMsg()  {}
func (RemoveLobby) isHubMsg()  {}
func (CountLobbies) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	opts    lobby.Options // template for every lobby; Code is filled per room
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, opts lobby.Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		opts:    opts,
		log:     opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	if h.opts.OnIdle == nil {
		h.opts.OnIdle = h.reap
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub has shut down.
func (h *Hub) Done() <-chan struct{} { return h.ctx.Done() }

// Count reports how many rooms are open, or -1 once the hub has stopped.
func (h *Hub) Count() int {
	reply := make(chan int, 1)
	select {
	case h.inbox <- CountLobbies{Reply: reply}:
	case <-h.ctx.Done():
		return -1
	}
	select {
	case n := <-reply:
		return n
	case <-h.ctx.Done():
		return -1
	}
}

// reap closes a room that sat empty for its idle timeout.
func (h *Hub) reap(lb *lobby.Lobby) {
	select {
	case h.inbox <- RemoveLobby{Code: lb.Code(), Lobby: lb}:
	case <-h.ctx.Done():
	}
}

// Lookup is a convenience wrapper around GetLobby.
func (h *Hub) Lookup(code string) *lobby.Lobby {
	reply := make(chan *lobby.Lobby, 1)
	select {
	case h.inbox <- GetLobby{Code: code, Reply: reply}:
	case <-h.ctx.Done():
		return nil
	}
	select {
	case lb := <-reply:
		return lb
	case <-h.ctx.Done():
		return nil
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if h.lobbies[msg.Code] != nil {
					msg.Reply <- nil
					continue
				}
				msg.Reply <- h.ensure(msg.Code, msg.State)

			case GetLobby:
				msg.Reply <- h.lobbies[msg.Code] // May be nil

			case EnsureLobby:
				msg.Reply <- h.ensure(msg.Code, msg.State)

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil && (msg.Lobby == nil || msg.Lobby == lb) {
					stop(lb)
					delete(h.lobbies, msg.Code)
					h.log.Info("room closed", zap.String("room", msg.Code))
				}

			case CountLobbies:
				msg.Reply <- len(h.lobbies)

			case ShutdownHub:
				h.shutdown()
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) ensure(code string, state engine.State) *lobby.Lobby {
	if lb := h.lobbies[code]; lb != nil {
		return lb
	}
	opts := h.opts
	opts.Code = code
	lb := lobby.NewLobby(h.ctx, state, opts)
	h.lobbies[code] = lb
	h.log.Info("room opened", zap.String("room", code))
	return lb
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		stop(lb)
	}
	clear(h.lobbies)
}

func stop(lb *lobby.Lobby) {
	select {
	case lb.Inbox() <- lobby.Shutdown{}:
	case <-lb.Done():
	}
}
