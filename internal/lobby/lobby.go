package lobby

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/tinybingo-backend/internal/board"
	"github.com/DoyleJ11/tinybingo-backend/internal/bot"
	"github.com/DoyleJ11/tinybingo-backend/internal/engine"
	"github.com/DoyleJ11/tinybingo-backend/internal/goals"
	"github.com/DoyleJ11/tinybingo-backend/internal/store"
)

const (
	loadTimeout    = 15 * time.Second
	archiveTimeout = 5 * time.Second
)

type Msg interface{ isLobbyMsg() }

type FromClient struct {
	ClientID string
	Cmd      engine.Command
	Reply    chan<- Ack // optional; must be buffered
}

func (FromClient) isLobbyMsg() {}

// Ack tells the sender what happened to its command. A host-only command from
// anyone else comes back as Applied=false with no error.
type Ack struct {
	Applied bool
	Err     error
}

type Join struct {
	ClientID string
	Token    string
	Name     string
	Color    string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

type botFire struct{ gen uint64 }

func (botFire) isLobbyMsg() {}

type idleFire struct{ gen uint64 }

func (idleFire) isLobbyMsg() {}

type catalogLoaded struct {
	gen   uint64
	key   string
	res   goals.Resolved
	err   error
	cmd   engine.Command
	reply chan<- Ack
}

func (catalogLoaded) isLobbyMsg() {}

type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
	RoleBot    Role = "bot"
)

type Presence struct {
	Token       string `json:"token"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Role        Role   `json:"role"`
	Connections int    `json:"connections"`
}

type Snapshot struct {
	Version  int
	State    engine.State
	Cells    []goals.Goal // board ids resolved against the lobby's catalog
	Presence []Presence
}

type View struct {
	Version    int
	NumClients int
	State      engine.State
	Cells      []goals.Goal
	Presence   []Presence
}

// Snapshot drops the connection count.
func (v View) Snapshot() Snapshot {
	return Snapshot{Version: v.Version, State: v.State, Cells: v.Cells, Presence: v.Presence}
}

// Options wires a lobby to the rest of the server. Zero values are usable:
// no ticker, bundled goals, no archive.
type Options struct {
	Code    string
	Logger  *zap.Logger
	Catalog *goals.Catalog
	// CatalogSource names Catalog in Settings.GoalsSource.
	CatalogSource string
	Fetcher       *goals.Fetcher
	Archive       store.Archive
	TickInterval  time.Duration
	// BotDelay overrides the profile timing, mostly for tests.
	BotDelay func(p bot.Profile, first bool) time.Duration
	Rand     *rand.Rand
	Now      func() time.Time
	// OnIdle is called once the room has had no clients for IdleTimeout.
	// It runs on its own goroutine; zero IdleTimeout or nil OnIdle disables it.
	IdleTimeout time.Duration
	OnIdle      func(l *Lobby)
}

type client struct {
	token string
	out   chan Snapshot
}

type Lobby struct {
	opts    Options
	log     *zap.Logger
	inbox   chan Msg
	state   engine.State
	version int
	clients map[string]client

	catalog    *goals.Catalog
	catalogKey string
	loadGen    uint64

	botGen           uint64
	botTimer         *time.Timer
	lastOpponentMove int

	idleGen   uint64
	idleTimer *time.Timer

	rng    *rand.Rand
	ctx    context.Context
	cancel context.CancelFunc
}

func NewLobby(parent context.Context, initial engine.State, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fetcher == nil {
		opts.Fetcher = goals.NewFetcher(opts.Logger)
	}
	if opts.Catalog == nil {
		cat, err := goals.Bundled()
		if err != nil {
			opts.Logger.Error("bundled goals unusable", zap.Error(err))
		}
		opts.Catalog = cat
		opts.CatalogSource = goals.BundledSource
	}
	if opts.CatalogSource == "" {
		opts.CatalogSource = goals.BundledSource
	}
	rng := opts.Rand
	if rng == nil {
		seed := uint64(opts.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	if initial.Marks == nil || initial.Players == nil {
		initial = initial.Clone()
	}

	l := &Lobby{
		opts:             opts,
		log:              opts.Logger.With(zap.String("room", opts.Code)),
		inbox:            make(chan Msg, 64),
		state:            initial,
		clients:          make(map[string]client),
		catalog:          opts.Catalog,
		catalogKey:       sourceKey(engine.Settings{GoalsSourceType: goals.SourceLocal}),
		lastOpponentMove: -1,
		rng:              rng,
		ctx:              ctx,
		cancel:           cancel,
	}

	if len(l.state.Board) == 0 {
		st := l.state.Settings
		ids, err := board.Build(l.catalog, st.Size, st.Seed, st.FreeCenter)
		if err != nil {
			l.log.Error("initial board", zap.Error(err))
		} else {
			l.state.Board = ids
		}
	}

	l.armIdle()
	go l.loop()
	return l
}

func (l *Lobby) loop() {
	var tick <-chan time.Time
	if l.opts.TickInterval > 0 {
		t := time.NewTicker(l.opts.TickInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-tick:
			if _, err := l.transact(engine.Command{Type: engine.CmdTick}); err != nil {
				l.log.Warn("tick", zap.Error(err))
			}

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				l.clients[msg.ClientID] = client{token: msg.Token, out: msg.Outbox}
				l.disarmIdle()
				cmd := engine.Command{Type: engine.CmdJoin, Actor: msg.Token, ActorName: msg.Name, Color: msg.Color, Now: l.opts.Now()}
				if _, next, err := engine.Apply(l.state, cmd); err == nil {
					l.state = next
				}
				l.log.Debug("client joined", zap.String("client", msg.ClientID), zap.String("token", msg.Token))
				l.commit()

			case Leave:
				if _, ok := l.clients[msg.ClientID]; ok {
					delete(l.clients, msg.ClientID)
					l.commit()
					if len(l.clients) == 0 {
						l.armIdle()
					}
				}

			case FromClient:
				if ack, done := l.handle(msg); done {
					l.reply(msg.Reply, msg.Cmd, ack)
				}

			case botFire:
				l.botMove(msg.gen)

			case idleFire:
				l.idle(msg.gen)

			case catalogLoaded:
				l.reply(msg.reply, msg.cmd, l.catalogLoaded(msg))

			case GetState:
				snap := l.snapshot()
				msg.Reply <- View{
					Version:    snap.Version,
					NumClients: len(l.clients),
					State:      snap.State,
					Cells:      snap.Cells,
					Presence:   snap.Presence,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// handle runs a client command. done is false when the answer is deferred
// until a remote goal source has loaded.
func (l *Lobby) handle(msg FromClient) (ack Ack, done bool) {
	cmd := msg.Cmd
	if cmd.Now.IsZero() {
		cmd.Now = l.opts.Now()
	}
	switch cmd.Type {
	case engine.CmdRegenerate:
		return l.regenerate(cmd, msg.Reply)
	case engine.CmdToggleMark:
		if cmd.Cell >= 0 && cmd.Cell < len(l.state.Board) {
			cmd.Label = l.catalog.Label(l.state.Board[cmd.Cell])
		}
	}
	applied, err := l.transact(cmd)
	return Ack{Applied: applied, Err: err}, true
}

// reply absorbs non-host rejections and answers the sender, if it asked.
func (l *Lobby) reply(to chan<- Ack, cmd engine.Command, ack Ack) {
	if errors.Is(ack.Err, engine.ErrNotHost) {
		l.log.Debug("ignored non-host command", zap.String("type", string(cmd.Type)), zap.String("token", cmd.Actor))
		ack.Err = nil
	} else if ack.Err != nil {
		l.log.Debug("command rejected", zap.String("type", string(cmd.Type)), zap.Error(ack.Err))
	}
	if to != nil {
		to <- ack
	}
}

// transact runs one command through the engine and publishes the result.
// Commands that produce no events (an idle tick) publish nothing.
func (l *Lobby) transact(cmd engine.Command) (bool, error) {
	if cmd.Now.IsZero() {
		cmd.Now = l.opts.Now()
	}
	prev := l.state
	events, next, err := engine.Apply(l.state, cmd)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}
	l.state = next

	for _, ev := range events {
		if ev.Type == engine.EvtCellMarked && ev.Actor != engine.BotToken {
			l.lastOpponentMove = ev.Cell
		}
	}
	if prev.Timer.Stage != engine.StageFinished && next.Timer.Stage == engine.StageFinished {
		l.archive(next)
	}
	if engine.ContainsEvent(events, engine.EvtMatchWon) {
		l.log.Info("match won",
			zap.String("winner", next.Result.Owner),
			zap.String("kind", string(next.Result.Kind)),
			zap.Int("timer", next.Timer.Value))
	}
	if engine.ContainsEvent(events, engine.EvtBoardRegenerated) {
		l.lastOpponentMove = -1
	}

	l.commit()
	return true, nil
}

// commit re-evaluates the bot schedule and broadcasts the current state as a
// new version.
func (l *Lobby) commit() {
	l.syncBot()
	l.version++
	l.broadcast(l.snapshot())
}

func sourceKey(s engine.Settings) string {
	if s.GoalsSourceType != goals.SourceSheets || s.GoalsSourceURL == "" {
		return string(goals.SourceLocal)
	}
	return string(goals.SourceSheets) + " " + s.GoalsSourceURL
}

func (l *Lobby) regenerate(cmd engine.Command, reply chan<- Ack) (Ack, bool) {
	if !l.state.IsHost(cmd.Actor) {
		return Ack{Err: engine.ErrNotHost}, true
	}
	settings, err := cmd.Patch.ApplyTo(l.state.Settings)
	if err != nil {
		return Ack{Err: err}, true
	}

	key := sourceKey(settings)
	cat := l.catalog
	switch {
	case key == string(goals.SourceLocal):
		l.loadGen++ // drop any remote load still in flight
		cat = l.opts.Catalog
		cmd.Patch = withSource(cmd.Patch, l.opts.CatalogSource, false)
		if settings, err = cmd.Patch.ApplyTo(l.state.Settings); err != nil {
			return Ack{Err: err}, true
		}
	case key != l.catalogKey:
		l.loadGen++
		gen := l.loadGen
		l.log.Info("loading remote goals", zap.String("url", settings.GoalsSourceURL))
		go l.load(gen, key, settings, cmd, reply)
		return Ack{}, false
	}
	applied, err := l.build(cmd, settings, cat, key)
	return Ack{Applied: applied, Err: err}, true
}

// build lays out a board from cat and commits it. The lobby switches to cat
// only when the board was built and accepted.
func (l *Lobby) build(cmd engine.Command, settings engine.Settings, cat *goals.Catalog, key string) (bool, error) {
	ids, err := board.Build(cat, settings.Size, settings.Seed, settings.FreeCenter)
	if err != nil {
		return false, err
	}
	prevCat, prevKey := l.catalog, l.catalogKey
	l.useCatalog(cat, key)
	cmd.Board = ids
	applied, err := l.transact(cmd)
	if err != nil {
		l.useCatalog(prevCat, prevKey)
	}
	return applied, err
}

func (l *Lobby) useCatalog(cat *goals.Catalog, key string) {
	l.catalog = cat
	l.catalogKey = key
}

func withSource(p engine.SettingsPatch, source string, fallback bool) engine.SettingsPatch {
	p.GoalsSource = &source
	p.GoalsFallback = &fallback
	return p
}

func (l *Lobby) load(gen uint64, key string, settings engine.Settings, cmd engine.Command, reply chan<- Ack) {
	ctx, cancel := context.WithTimeout(l.ctx, loadTimeout)
	defer cancel()
	res, err := l.opts.Fetcher.Resolve(ctx, settings.GoalsSourceType, settings.GoalsSourceURL)
	l.post(catalogLoaded{gen: gen, key: key, res: res, err: err, cmd: cmd, reply: reply})
}

// catalogLoaded finishes a regenerate that waited on a remote goal source. A
// source that cannot fill the board is rejected and the current board and
// catalog stay in place.
func (l *Lobby) catalogLoaded(msg catalogLoaded) Ack {
	if msg.gen != l.loadGen {
		return Ack{} // superseded by a later regenerate
	}
	if msg.err != nil {
		l.log.Error("goal source unusable", zap.Error(msg.err))
		return Ack{Err: msg.err}
	}
	key := msg.key
	if msg.res.Fallback {
		// Keep the requested source so the next regenerate retries it.
		key = string(goals.SourceLocal)
	}

	cmd := msg.cmd
	cmd.Patch = withSource(cmd.Patch, msg.res.Source, msg.res.Fallback)
	settings, err := cmd.Patch.ApplyTo(l.state.Settings)
	if err != nil {
		return Ack{Err: err}
	}
	applied, err := l.build(cmd, settings, msg.res.Catalog, key)
	if err != nil && !errors.Is(err, engine.ErrNotHost) {
		l.log.Warn("goal source rejected",
			zap.String("url", settings.GoalsSourceURL),
			zap.Int("goals", msg.res.Catalog.Len()),
			zap.Error(err))
		err = fmt.Errorf("goal source %s: %w", settings.GoalsSourceURL, err)
	}
	return Ack{Applied: applied, Err: err}
}

func botActive(s engine.State) bool {
	return s.Settings.GameMode == engine.GamePvE &&
		s.Timer.Stage == engine.StagePlay &&
		s.Timer.Running &&
		s.HasFreeCell()
}

func (l *Lobby) botDelay(first bool) time.Duration {
	p := bot.ProfileFor(l.state.Settings.BotDifficulty)
	if l.opts.BotDelay != nil {
		return l.opts.BotDelay(p, first)
	}
	return p.NextDelay(l.rng, first)
}

// syncBot keeps exactly one pending bot move while the bot may play and none
// otherwise. Every stop bumps the generation so a timer that already fired is
// ignored when its message arrives.
func (l *Lobby) syncBot() {
	if !botActive(l.state) {
		l.stopBot()
		return
	}
	if l.botTimer != nil {
		return
	}
	l.botGen++
	gen := l.botGen
	delay := l.botDelay(l.state.CountMarks(engine.BotToken) == 0)
	l.botTimer = time.AfterFunc(delay, func() { l.post(botFire{gen: gen}) })
	l.log.Debug("bot move scheduled", zap.Duration("in", delay))
}

func (l *Lobby) stopBot() {
	if l.botTimer == nil {
		return
	}
	l.botTimer.Stop()
	l.botTimer = nil
	l.botGen++
}

func (l *Lobby) botMove(gen uint64) {
	if gen != l.botGen {
		return
	}
	l.botTimer = nil
	if !botActive(l.state) {
		l.syncBot()
		return
	}

	s := l.state
	move, err := bot.SelectMove(bot.Input{
		Board:            s.Board,
		Marks:            s.Marks,
		Size:             s.Settings.Size,
		Catalog:          l.catalog,
		Profile:          bot.ProfileFor(s.Settings.BotDifficulty),
		LastOpponentMove: l.lastOpponentMove,
	}, l.rng)
	if err != nil {
		l.log.Error("bot found no move", zap.Error(err))
		return
	}
	l.log.Info("bot move",
		zap.Int("cell", move.Index),
		zap.Stringer("tier", move.Tier),
		zap.String("strategy", string(move.Strategy)),
		zap.String("reason", move.Reason))

	cmd := engine.Command{
		Type:  engine.CmdToggleMark,
		Actor: engine.BotToken,
		Cell:  move.Index,
		Label: l.catalog.Label(s.Board[move.Index]),
	}
	if _, err := l.transact(cmd); err != nil {
		l.log.Error("bot move rejected", zap.Int("cell", move.Index), zap.Error(err))
		l.syncBot()
	}
}

// armIdle starts the empty-room countdown, replacing any earlier one.
func (l *Lobby) armIdle() {
	if l.opts.IdleTimeout <= 0 || l.opts.OnIdle == nil {
		return
	}
	l.disarmIdle()
	gen := l.idleGen
	l.idleTimer = time.AfterFunc(l.opts.IdleTimeout, func() { l.post(idleFire{gen: gen}) })
}

func (l *Lobby) disarmIdle() {
	if l.idleTimer != nil {
		l.idleTimer.Stop()
		l.idleTimer = nil
	}
	l.idleGen++
}

func (l *Lobby) idle(gen uint64) {
	if gen != l.idleGen || len(l.clients) > 0 {
		return
	}
	l.idleTimer = nil
	l.log.Info("room idle", zap.Duration("after", l.opts.IdleTimeout))
	go l.opts.OnIdle(l)
}

func (l *Lobby) archive(s engine.State) {
	if l.opts.Archive == nil {
		return
	}
	counts := map[string]int{}
	for _, list := range s.Marks {
		for _, tok := range list {
			counts[tok]++
		}
	}
	m := store.Match{
		Room:        l.opts.Code,
		Seed:        s.Settings.Seed,
		Size:        s.Settings.Size,
		Mode:        string(s.Settings.Mode),
		GameMode:    string(s.Settings.GameMode),
		DurationSec: s.Timer.Value,
		MarkCounts:  counts,
		FinishedAt:  l.opts.Now().UTC(),
	}
	if s.Settings.GameMode == engine.GamePvE {
		m.BotDifficulty = s.Settings.BotDifficulty
	}
	if s.Result != nil && s.Result.Won {
		m.Winner = s.Result.Owner
		m.WinKind = string(s.Result.Kind)
		m.WinnerName = displayName(s, s.Result.Owner)
	}

	archive, log := l.opts.Archive, l.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()
		if err := archive.Save(ctx, m); err != nil {
			log.Warn("archive match", zap.Error(err))
		}
	}()
}

func displayName(s engine.State, token string) string {
	if p, ok := s.Players[token]; ok && p.Name != "" {
		return p.Name
	}
	if token == engine.BotToken {
		return cmp.Or(s.Settings.BotName, engine.DefaultBotName)
	}
	return token
}

func (l *Lobby) presence() []Presence {
	byToken := map[string]*Presence{}
	for _, c := range l.clients {
		if c.token == "" {
			continue
		}
		p, ok := byToken[c.token]
		if !ok {
			p = &Presence{Token: c.token, Name: displayName(l.state, c.token), Role: RolePlayer}
			if pl, ok := l.state.Players[c.token]; ok {
				p.Color = pl.Color
			}
			if l.state.IsHost(c.token) {
				p.Role = RoleHost
			}
			byToken[c.token] = p
		}
		p.Connections++
	}

	out := make([]Presence, 0, len(byToken)+1)
	for _, p := range byToken {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b Presence) int {
		return cmp.Or(
			cmp.Compare(roleRank(a.Role), roleRank(b.Role)),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Token, b.Token),
		)
	})
	if l.state.Settings.GameMode == engine.GamePvE {
		out = append(out, Presence{Token: engine.BotToken, Name: displayName(l.state, engine.BotToken), Role: RoleBot})
	}
	return out
}

func roleRank(r Role) int {
	if r == RoleHost {
		return 0
	}
	return 1
}

func (l *Lobby) snapshot() Snapshot {
	cells := make([]goals.Goal, len(l.state.Board))
	for i, id := range l.state.Board {
		g, ok := l.catalog.Get(id)
		if !ok {
			g = goals.Goal{ID: id, Text: id}
		}
		cells[i] = g
	}
	return Snapshot{
		Version:  l.version,
		State:    l.state.Clone(),
		Cells:    cells,
		Presence: l.presence(),
	}
}

func (l *Lobby) post(m Msg) {
	select {
	case l.inbox <- m:
	case <-l.ctx.Done():
	}
}

func (l *Lobby) shutdown() {
	l.stopBot()
	l.disarmIdle()
	for id, c := range l.clients {
		close(c.out) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, c := range l.clients {
		select {
		case c.out <- snap:
		default:
			// Client is slow/full - drop them.
			close(c.out)
			delete(l.clients, id)
			l.log.Warn("dropped slow client", zap.String("client", id))
			if len(l.clients) == 0 {
				l.armIdle()
			}
		}
	}
}

// Inbox exposes the inbox so the ws layer and tests can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Code is the room code the lobby was opened under.
func (l *Lobby) Code() string { return l.opts.Code }

// Done is closed once the lobby has stopped.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }
